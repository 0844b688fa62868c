// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and required fields

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "gateway.yaml")

	configContent := `
server:
  host: "127.0.0.1"
  port: 9090
  request_timeout: "45s"

upstream:
  api_key: "sk-test-key"
  endpoint: "https://runtime.example.com"
  model: "claude-sonnet"
  system_prompt: "You are a helpful assistant."

auth:
  jwt_secret: "test-secret"

rate_limit:
  window: "30s"
  max_requests: 100
  chat_max_requests: 10
  health_max_requests: 500

logging:
  level: "debug"
  format: "json"

environment: "development"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr() != "127.0.0.1:9090" {
		t.Errorf("Server.Addr() = %q, want %q", cfg.Server.Addr(), "127.0.0.1:9090")
	}
	if cfg.Server.RequestTimeout != 45*time.Second {
		t.Errorf("RequestTimeout = %v, want 45s", cfg.Server.RequestTimeout)
	}
	if cfg.Upstream.APIKey != "sk-test-key" {
		t.Errorf("Upstream.APIKey = %q, want %q", cfg.Upstream.APIKey, "sk-test-key")
	}
	if cfg.Upstream.Model != "claude-sonnet" {
		t.Errorf("Upstream.Model = %q, want %q", cfg.Upstream.Model, "claude-sonnet")
	}
	if cfg.RateLimit.Window != 30*time.Second {
		t.Errorf("RateLimit.Window = %v, want 30s", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.ChatMaxRequests != 10 {
		t.Errorf("RateLimit.ChatMaxRequests = %d, want 10", cfg.RateLimit.ChatMaxRequests)
	}
	if cfg.IsProduction() {
		t.Error("IsProduction() = true for development environment")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/gateway.yaml")
	if err == nil {
		t.Fatal("Load() should fail for missing file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("error = %v, want reading config file error", err)
	}
}

func TestParse_MissingRequiredSecrets(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing upstream api key",
			content: `
auth:
  jwt_secret: "secret"
`,
			wantErr: "upstream.api_key is required",
		},
		{
			name: "missing jwt secret",
			content: `
upstream:
  api_key: "sk-test"
`,
			wantErr: "auth.jwt_secret is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_EnvVarExpansion(t *testing.T) {
	t.Setenv("LOOM_TEST_API_KEY", "sk-from-env")
	t.Setenv("LOOM_TEST_JWT_SECRET", "secret-from-env")

	content := `
upstream:
  api_key: "${LOOM_TEST_API_KEY}"
auth:
  jwt_secret: "${LOOM_TEST_JWT_SECRET}"
`
	cfg, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Upstream.APIKey != "sk-from-env" {
		t.Errorf("Upstream.APIKey = %q, want %q", cfg.Upstream.APIKey, "sk-from-env")
	}
	if cfg.Auth.JWTSecret != "secret-from-env" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "secret-from-env")
	}
}

func TestParse_UnsetEnvVarFailsValidation(t *testing.T) {
	// An unset variable expands to empty, which must trip the required check.
	content := `
upstream:
  api_key: "${LOOM_TEST_DEFINITELY_UNSET_VAR}"
auth:
  jwt_secret: "secret"
`
	_, err := Parse([]byte(content))
	if err == nil {
		t.Fatal("Parse() should fail when a required env var is unset")
	}
}

func TestParse_Defaults(t *testing.T) {
	content := `
upstream:
  api_key: "sk-test"
auth:
  jwt_secret: "secret"
`
	cfg, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("default Addr() = %q, want 0.0.0.0:8080", cfg.Server.Addr())
	}
	if cfg.Server.RequestTimeout != 60*time.Second {
		t.Errorf("default RequestTimeout = %v, want 60s", cfg.Server.RequestTimeout)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Errorf("default Window = %v, want 1m", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.MaxRequests != 60 {
		t.Errorf("default MaxRequests = %d, want 60", cfg.RateLimit.MaxRequests)
	}
	if cfg.RateLimit.ChatMaxRequests != 20 {
		t.Errorf("default ChatMaxRequests = %d, want 20", cfg.RateLimit.ChatMaxRequests)
	}
	if cfg.RateLimit.HealthMaxRequests != 240 {
		t.Errorf("default HealthMaxRequests = %d, want 240", cfg.RateLimit.HealthMaxRequests)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false, want true by default")
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	content := `
server:
  request_timeout: "not-a-duration"
upstream:
  api_key: "sk-test"
auth:
  jwt_secret: "secret"
`
	_, err := Parse([]byte(content))
	if err == nil {
		t.Fatal("Parse() should fail for invalid duration")
	}
	if !strings.Contains(err.Error(), "request_timeout") {
		t.Errorf("error = %v, want request_timeout parse error", err)
	}
}

func TestParse_InvalidPort(t *testing.T) {
	content := `
server:
  port: 99999
upstream:
  api_key: "sk-test"
auth:
  jwt_secret: "secret"
`
	_, err := Parse([]byte(content))
	if err == nil {
		t.Fatal("Parse() should fail for out-of-range port")
	}
}

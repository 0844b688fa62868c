// ABOUTME: Error taxonomy and the shared JSON failure envelope
// ABOUTME: Maps gateway outcomes to the fixed status-code contract

package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// Error codes surfaced in the envelope's "error" field.
const (
	codeBadRequest       = "bad_request"
	codeUnauthenticated  = "unauthenticated"
	codeRateLimited      = "rate_limited"
	codeTimeout          = "timeout"
	codeUpstreamFailure  = "upstream_failure"
	codeInternal         = "internal_error"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
	codeNotImplemented   = "not_implemented"
)

// errorEnvelope is the one failure shape shared by every error response.
type errorEnvelope struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
	RetryAfter int64  `json:"retryAfter,omitempty"` // milliseconds, 429 only
}

// writeError writes a failure response in the shared envelope shape.
func (g *Gateway) writeError(w http.ResponseWriter, status int, code, message string) {
	g.writeEnvelope(w, errorEnvelope{
		Error:      code,
		Message:    message,
		StatusCode: status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// writeRateLimited writes the 429 envelope carrying the retry hint in
// milliseconds.
func (g *Gateway) writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	g.writeEnvelope(w, errorEnvelope{
		Error:      codeRateLimited,
		Message:    "rate limit exceeded",
		StatusCode: http.StatusTooManyRequests,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RetryAfter: retryAfter.Milliseconds(),
	})
}

func (g *Gateway) writeEnvelope(w http.ResponseWriter, env errorEnvelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.StatusCode)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		g.logger.Error("failed to write error envelope", "error", err)
	}
}

// upstreamMessage picks the message surfaced for a runtime-side failure.
// Production deployments redact the underlying detail; elsewhere it is
// surfaced for diagnosis. Full detail is always logged.
func (g *Gateway) upstreamMessage(err error) string {
	if g.cfg.IsProduction() {
		return "upstream agent runtime failed"
	}
	return err.Error()
}

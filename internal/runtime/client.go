// ABOUTME: HTTP client for the agent runtime's server-sent event stream
// ABOUTME: Translates wire events into the closed Event variant on a channel

package runtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// defaultEndpoint is the agent runtime sidecar address used when no
	// override is configured.
	defaultEndpoint = "http://127.0.0.1:8788/v1/turn"

	// eventBuffer bounds how far the reader can run ahead of the consumer.
	eventBuffer = 16
)

// Config holds the runtime connection settings.
type Config struct {
	// APIKey authenticates the gateway to the runtime. Required.
	APIKey string
	// Endpoint overrides the runtime URL. Optional.
	Endpoint string
	// Model overrides the runtime's default model. Optional.
	Model string
	// SystemPrompt overrides the runtime's default system prompt. Optional.
	SystemPrompt string
}

// Client drives chat turns against the agent runtime over HTTP, consuming its
// SSE response stream. Implements Runner.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a runtime client. The API key is required.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("runtime api key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	return &Client{
		cfg: cfg,
		// No overall timeout: turns are long-lived streams. The per-request
		// deadline comes from ctx; dial/header waits get their own bounds.
		http: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// turnRequest is the JSON body posted to the runtime.
type turnRequest struct {
	Prompt       string `json:"prompt"`
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	EnableTools  bool   `json:"enable_tools"`
	SkillID      string `json:"skill_id,omitempty"`
}

// Run posts one turn to the runtime and returns a channel of its events.
// The channel is closed at end-of-stream. Cancelling ctx aborts the upstream
// call, not just local consumption.
func (c *Client) Run(ctx context.Context, req Request) (<-chan *Event, error) {
	body, err := json.Marshal(turnRequest{
		Prompt:       req.Prompt,
		Model:        c.cfg.Model,
		SystemPrompt: c.cfg.SystemPrompt,
		SessionID:    req.SessionID,
		EnableTools:  req.EnableTools,
		SkillID:      req.SkillID,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding turn request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building turn request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling runtime: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("runtime returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	events := make(chan *Event, eventBuffer)
	go c.readStream(ctx, resp.Body, events)
	return events, nil
}

// readStream parses SSE frames from the response body and forwards them as
// events, closing the channel at end-of-stream.
func (c *Client) readStream(ctx context.Context, body io.ReadCloser, events chan<- *Event) {
	defer close(events)
	defer func() { _ = body.Close() }()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var eventName string
	var dataLines []string

	// send parks until the consumer takes the event or the turn is
	// cancelled, so an abandoned consumer cannot strand this goroutine.
	send := func(ev *Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	flush := func() {
		if eventName == "" && len(dataLines) == 0 {
			return
		}
		if ev := c.parseEvent(eventName, strings.Join(dataLines, "\n")); ev != nil {
			send(ev)
		}
		eventName = ""
		dataLines = nil
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			// Multi-line data joins with a newline, per the SSE format.
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, ":"):
			// SSE comment, used by the runtime as keepalive
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			// Best effort: the consumer usually observed cancellation too.
			select {
			case events <- &Event{Kind: KindError, Err: "context cancelled"}:
			default:
			}
			return
		}
		send(&Event{Kind: KindError, Err: fmt.Sprintf("reading runtime stream: %v", err)})
	}
}

// parseEvent converts one SSE frame into an Event. Unrecognized event names
// are logged and dropped rather than misparsed.
func (c *Client) parseEvent(name, data string) *Event {
	switch name {
	case "text":
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			c.logger.Warn("malformed text event", "error", err)
			return nil
		}
		return &Event{Kind: KindText, Text: payload.Text}

	case "tool_start":
		var payload struct {
			Name  string         `json:"name"`
			Input map[string]any `json:"input"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			c.logger.Warn("malformed tool_start event", "error", err)
			return nil
		}
		return &Event{Kind: KindToolStart, ToolStart: &ToolStart{Name: payload.Name, Input: payload.Input}}

	case "tool_end":
		var payload struct {
			Name    string `json:"name"`
			Output  string `json:"output"`
			IsError bool   `json:"is_error"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			c.logger.Warn("malformed tool_end event", "error", err)
			return nil
		}
		return &Event{Kind: KindToolEnd, ToolEnd: &ToolEnd{Name: payload.Name, Output: payload.Output, IsError: payload.IsError}}

	case "error":
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			c.logger.Warn("malformed error event", "error", err)
			return &Event{Kind: KindError, Err: "runtime error"}
		}
		return &Event{Kind: KindError, Err: payload.Message}

	case "done":
		// End-of-stream marker; the channel close conveys it.
		return nil

	default:
		c.logger.Warn("unrecognized runtime event", "event", name)
		return nil
	}
}

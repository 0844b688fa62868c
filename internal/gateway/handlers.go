// ABOUTME: HTTP handlers for the chat operation and health endpoints
// ABOUTME: Drives the validate, session, prompt, and aggregate pipeline

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	stdruntime "runtime"
	"time"

	"github.com/loomhq/loom-gateway/internal/auth"
	"github.com/loomhq/loom-gateway/internal/chat"
	"github.com/loomhq/loom-gateway/internal/runtime"
	"github.com/loomhq/loom-gateway/internal/session"
)

// handleChat handles POST /api/v1/chat, the primary operation.
//
// Responsibilities:
//  1. Decode and validate the payload - nothing reaches the runtime on
//     invalid input
//  2. Resolve the session id - echo or mint
//  3. Flatten history into the role-tagged prompt
//  4. Drive the runtime's event stream through the aggregator
//  5. Respond with the consolidated ChatResponse
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}

	if err := chat.ValidateRequest(&req); err != nil {
		g.writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	sessionID := session.Resolve(req.SessionID)
	prompt := chat.BuildPrompt(req.Messages)

	logger := g.logger.With("session_id", sessionID)
	if id := auth.IdentityFromContext(r.Context()); id != nil {
		logger = logger.With("subject", id.Subject)
	}

	events, err := g.runner.Run(r.Context(), runtime.Request{
		Prompt:      prompt,
		SessionID:   sessionID,
		EnableTools: req.EnableTools,
		SkillID:     req.SkillID,
	})
	if err != nil {
		logger.Error("runtime call failed", "error", err)
		g.writeError(w, http.StatusBadGateway, codeUpstreamFailure, g.upstreamMessage(err))
		return
	}

	resp, err := chat.Aggregate(r.Context(), prompt, sessionID, events, logger)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			// The timeout middleware owns the 408; a gone client gets nothing.
			logger.Warn("chat aborted", "error", err)
			return
		}
		logger.Error("runtime stream failed mid-turn", "error", err)
		g.writeError(w, http.StatusBadGateway, codeUpstreamFailure, g.upstreamMessage(err))
		return
	}

	logger.Info("chat turn complete",
		"messages", len(req.Messages),
		"tool_calls", len(resp.ToolCalls),
		"output_tokens", resp.Usage.OutputTokens,
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to write chat response", "error", err)
	}
}

// handleChatStream handles POST /api/v1/chat/stream. The route is reserved
// for a streaming transport that is not part of the current contract.
func (g *Gateway) handleChatStream(w http.ResponseWriter, r *http.Request) {
	g.writeError(w, http.StatusNotImplemented, codeNotImplemented, "streaming chat is not implemented")
}

// healthStatus is the liveness summary returned by GET /api/v1/health.
type healthStatus struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// healthDetails extends the summary with process diagnostics.
type healthDetails struct {
	healthStatus
	GoVersion   string `json:"goVersion"`
	Goroutines  int    `json:"goroutines"`
	Environment string `json:"environment"`
}

func (g *Gateway) health() healthStatus {
	return healthStatus{
		Status:    "ok",
		Version:   g.version,
		Uptime:    time.Since(g.startedAt).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, g.health())
}

func (g *Gateway) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, healthDetails{
		healthStatus: g.health(),
		GoVersion:    stdruntime.Version(),
		Goroutines:   stdruntime.NumGoroutine(),
		Environment:  g.cfg.Environment,
	})
}

func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (g *Gateway) handleLive(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to write JSON response", "error", err)
	}
}

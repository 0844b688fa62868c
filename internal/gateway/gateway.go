// ABOUTME: Gateway orchestrator that wires auth, limits, and the chat pipeline
// ABOUTME: Manages the HTTP server lifecycle with graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/loomhq/loom-gateway/internal/auth"
	"github.com/loomhq/loom-gateway/internal/config"
	"github.com/loomhq/loom-gateway/internal/ratelimit"
	"github.com/loomhq/loom-gateway/internal/runtime"
)

// Gateway is the explicit service object for one gateway process. It is
// constructed once at startup and passed by reference into every handler;
// there is no hidden global instance.
type Gateway struct {
	cfg        *config.Config
	runner     runtime.Runner
	verifier   *auth.JWTVerifier
	limiter    *ratelimit.Limiter
	httpServer *http.Server
	logger     *slog.Logger
	startedAt  time.Time
	version    string
}

// New creates a Gateway from validated configuration. Construction fails when
// a required secret is absent, so a misconfigured process never reaches a
// ready state.
func New(cfg *config.Config, version string, logger *slog.Logger) (*Gateway, error) {
	runner, err := runtime.NewClient(runtime.Config{
		APIKey:       cfg.Upstream.APIKey,
		Endpoint:     cfg.Upstream.Endpoint,
		Model:        cfg.Upstream.Model,
		SystemPrompt: cfg.Upstream.SystemPrompt,
	}, logger.With("component", "runtime"))
	if err != nil {
		return nil, fmt.Errorf("creating runtime client: %w", err)
	}

	return newWithRunner(cfg, runner, version, logger)
}

// newWithRunner finishes construction with an injectable runner, so tests can
// substitute the agent runtime.
func newWithRunner(cfg *config.Config, runner runtime.Runner, version string, logger *slog.Logger) (*Gateway, error) {
	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}

	g := &Gateway{
		cfg:      cfg,
		runner:   runner,
		verifier: verifier,
		limiter: ratelimit.New(ratelimit.Config{
			Window:  cfg.RateLimit.Window,
			Default: cfg.RateLimit.MaxRequests,
			Chat:    cfg.RateLimit.ChatMaxRequests,
			Health:  cfg.RateLimit.HealthMaxRequests,
		}),
		logger:    logger.With("component", "gateway"),
		startedAt: time.Now(),
		version:   version,
	}

	g.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           g.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// routes builds the chi router implementing the wire contract.
func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()

	// Rate limiting keys and the loopback bypass trust r.RemoteAddr, so the
	// connection address is used as-is. Forwarded-for headers are spoofable
	// and no trusted proxy is configured, so chi's RealIP must not run here.
	r.Use(middleware.RequestID)
	r.Use(g.recoverMiddleware)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		g.writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		g.writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})

	unauthorized := func(w http.ResponseWriter, req *http.Request, message string) {
		g.writeError(w, http.StatusUnauthorized, codeUnauthenticated, message)
	}
	rateLimited := func(w http.ResponseWriter, req *http.Request, retryAfter time.Duration) {
		g.writeRateLimited(w, retryAfter)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health and probe routes: anonymous allowed, lenient budget. Auth
		// is attempted anyway so known callers are counted by subject.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalMiddleware(g.verifier))
			r.Use(ratelimit.Middleware(g.limiter, ratelimit.ClassHealth, rateLimited))
			r.Get("/health", g.handleHealth)
			r.Get("/health/detailed", g.handleHealthDetailed)
			r.Get("/ready", g.handleReady)
			r.Get("/live", g.handleLive)
		})

		// Chat routes: authenticated, strict budget, hard timeout.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(g.verifier, unauthorized))
			r.Use(ratelimit.Middleware(g.limiter, ratelimit.ClassChat, rateLimited))
			r.Use(g.timeoutMiddleware)
			r.Post("/chat", g.handleChat)
			r.Post("/chat/stream", g.handleChatStream)
		})
	})

	return r
}

// recoverMiddleware converts handler panics into the shared 500 envelope
// instead of chi's bare recoverer output, so every failure path speaks the
// same shape.
func (g *Gateway) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				g.logger.Error("handler panic",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
				)
				g.writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.cfg.Server.Addr(), err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and releases gateway resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	err := g.httpServer.Shutdown(ctx)
	g.limiter.Close()

	if err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

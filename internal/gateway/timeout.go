// ABOUTME: Per-request wall-clock timeout middleware
// ABOUTME: Responds 408 on expiry and suppresses any later handler writes

package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// timeoutWriter guards the underlying ResponseWriter so that once the
// deadline response has been sent, a late handler write is discarded instead
// of corrupting the response.
type timeoutWriter struct {
	mu          sync.Mutex
	w           http.ResponseWriter
	wroteHeader bool
	timedOut    bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.w.Header()
}

func (tw *timeoutWriter) WriteHeader(status int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.wroteHeader = true
	tw.w.WriteHeader(status)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.wroteHeader = true
	}
	return tw.w.Write(b)
}

// markTimedOut flips the writer into suppression mode. Returns true when the
// 408 may still be written, i.e. the handler had not started responding.
func (tw *timeoutWriter) markTimedOut() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.timedOut = true
	return !tw.wroteHeader
}

// timeoutMiddleware applies the hard wall-clock budget to each request. If
// the handler has not answered when it elapses, the caller gets 408 and any
// later write attempt for that request is suppressed. A client disconnect
// cancels the pending timer rather than firing it against a closed
// connection.
func (g *Gateway) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), g.cfg.Server.RequestTimeout)
		defer cancel()

		tw := &timeoutWriter{w: w}
		done := make(chan struct{})

		go func() {
			defer close(done)
			next.ServeHTTP(tw, r.WithContext(ctx))
		}()

		respondTimeout := func() {
			if tw.markTimedOut() {
				g.logger.Warn("request timed out",
					"method", r.Method,
					"path", r.URL.Path,
					"timeout", g.cfg.Server.RequestTimeout,
				)
				g.writeError(w, http.StatusRequestTimeout, codeTimeout, "request timed out")
			}
		}

		select {
		case <-done:
			// The handler may have exited because the deadline already
			// fired; the caller still gets the 408 in that case.
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				respondTimeout()
			}

		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				respondTimeout()
				return
			}
			// Client went away: suppress writes and let the handler's
			// context cancellation tear down any in-flight runtime call.
			tw.markTimedOut()
		}
	})
}

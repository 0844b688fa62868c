// ABOUTME: HTTP middleware applying the request budget per route class.
// ABOUTME: Keys by authenticated subject when present, else by remote address.

package ratelimit

import (
	"net"
	"net/http"
	"time"

	"github.com/loomhq/loom-gateway/internal/auth"
)

// RateLimitedWriter writes a 429 response carrying the retry hint.
// Injected by the HTTP surface so this package does not own the wire shape.
type RateLimitedWriter func(w http.ResponseWriter, r *http.Request, retryAfter time.Duration)

// callerKey identifies the caller for counting: the authenticated subject if
// the request carries an identity, otherwise the network address.
func callerKey(r *http.Request) string {
	if id := auth.IdentityFromContext(r.Context()); id != nil {
		return "sub:" + id.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

// Middleware enforces the limiter for one route class. Requests from
// allow-listed addresses pass through uncounted. Must run after any auth
// middleware so authenticated callers are counted by subject.
func Middleware(l *Limiter, class Class, limited RateLimitedWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsBypassed(r.RemoteAddr) {
				next.ServeHTTP(w, r)
				return
			}

			ok, retryAfter := l.Allow(callerKey(r), class)
			if !ok {
				limited(w, r, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

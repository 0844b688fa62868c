// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Extracts the bearer token and adds the verified identity to context

package auth

import (
	"errors"
	"net/http"
	"strings"
)

// UnauthorizedWriter writes a 401 response in the gateway's error envelope.
// Injected by the HTTP surface so this package does not own the wire shape.
type UnauthorizedWriter func(w http.ResponseWriter, r *http.Request, message string)

// ExtractBearerToken extracts a bearer token from the Authorization header.
// The header must be exactly two space-separated fields with scheme "Bearer";
// any other shape is rejected with a format-specific message.
// Returns the token and an error message (empty if successful).
func ExtractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "invalid authorization header format, expected 'Bearer <token>'"
	}
	if parts[1] == "" {
		return "", "empty bearer token"
	}
	return parts[1], ""
}

// verifyMessage maps a verification failure to the message surfaced to the
// caller, distinguishing expired credentials from invalid ones.
func verifyMessage(err error) string {
	if errors.Is(err, ErrExpiredToken) {
		return "token expired"
	}
	return "invalid token"
}

// Middleware creates an HTTP middleware that extracts and validates bearer
// tokens, attaching the verified Identity to the request context.
func Middleware(verifier TokenVerifier, unauthorized UnauthorizedWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := ExtractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				unauthorized(w, r, errMsg)
				return
			}

			id, err := verifier.Verify(token)
			if err != nil {
				unauthorized(w, r, verifyMessage(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// OptionalMiddleware creates an HTTP middleware that attempts bearer auth but
// allows unauthenticated requests through with no identity attached. Useful
// for endpoints that tolerate anonymous callers.
func OptionalMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := ExtractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				next.ServeHTTP(w, r) // Continue as anonymous
				return
			}

			id, err := verifier.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

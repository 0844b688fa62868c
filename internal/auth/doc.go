// Package auth provides bearer-token authentication for loom-gateway.
//
// Callers present an HS256-signed JWT in the Authorization header:
//
//	Authorization: Bearer <token>
//
// The token's "sub" claim names the caller and becomes the Identity attached
// to the request context. Verification distinguishes expired tokens from
// otherwise invalid ones so clients can tell a refresh apart from a
// re-authentication.
//
// Two middleware variants exist: Middleware rejects unauthenticated requests
// with 401, OptionalMiddleware silently continues without an identity for
// routes that tolerate anonymous callers.
//
// Tokens are minted with JWTVerifier.Generate, exposed through the gateway's
// "token" CLI subcommand.
package auth

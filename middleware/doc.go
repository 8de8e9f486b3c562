// Package middleware exposes the net/http adapters that put a goSession.Manager in front of
// page handlers.
//
// # Chain
//
//   - [RequestID]: correlation id from X-Request-ID or a fresh UUID.
//   - [ClientIP]: caller address for login throttling and audit records.
//   - [Session]: resolves the request's user, exposes it through the context and applies
//     cookie writes before the response headers are committed.
//   - [Gatekeeper]: redirects anonymous requests for protected paths to the login page.
//
// Session must run before Gatekeeper.
//
// # What this package must NOT do
//
//   - Decode credentials or call the backend (the Manager does).
//   - Write cookies directly to the response (all writes go through the request jar).
package middleware

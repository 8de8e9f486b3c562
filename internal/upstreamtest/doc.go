// Package upstreamtest is an in-process backend authority for tests and local development.
//
// It implements the login, refresh and logout endpoints plus a bearer-protected profile
// endpoint, issuing HS256 credentials with the backend's claim layout
// (user_uuid, token_uuid, exp, iat, nbf).
package upstreamtest

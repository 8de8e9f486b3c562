// Package goSession is the server-side session layer of a storefront that sits in front of a
// token-issuing backend authority.
//
// Identity lives entirely in three HTTP-only cookies: a small JSON user record ("session"), the
// access credential ("access_token") and the refresh credential ("refresh_token"). On every
// inbound request the [Manager] resolves who the caller is, renews credentials that are missing
// or about to expire, and exposes the result to handlers through the request context.
// Outbound calls made with [Manager.HTTPClient] carry the bearer credential and retry once after
// a transparent renewal when the backend answers 401.
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Manager], [Builder], [Config], [Locals] and the
// interceptor [Transport]. Credential decoding lives in jwt/, the session record codec in
// session/, cookie policy and the per-request jar in cookie/, and the backend client in
// upstream/. Login throttling and audit dispatch live under internal/.
//
// # What this package must NOT do
//
//   - Verify credential signatures (the backend authority owns trust).
//   - Persist sessions server-side (cookies are the only session store).
//   - Return errors from request resolution; a failed renewal clears the auth cookies.
package goSession

// Package cookie provides the request-scoped cookie store used by the session manager.
//
// A [Jar] reads the cookies of one inbound request and buffers every write until the
// response headers are committed. Reads observe earlier writes from the same request, and
// only the last write per cookie name reaches the browser, so a renewal always lands as one
// consistent set of Set-Cookie headers.
//
// # What this package must NOT do
//
//   - Interpret cookie values (session records and credentials are opaque here).
//   - Share state across requests.
package cookie

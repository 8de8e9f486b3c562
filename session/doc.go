// Package session encodes the session record carried in the "session" cookie.
//
// # Cookie encoding
//
// The record is JSON wrapped in unpadded base64url so the value survives cookie sanitizing
// and stays opaque to the browser. Values above the configured size cap are discarded, not
// repaired.
//
// # What this package must NOT do
//
//   - Store credentials in the record (access and refresh tokens have their own cookies).
//   - Trust a record whose user has no id.
//   - Import goSession, cookie, or upstream.
package session

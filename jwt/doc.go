// Package jwt reads bearer credentials issued by the upstream authority without verifying
// them. The frontend never mints or trusts tokens for authorization; it only needs the
// expiration claim to plan renewals and the identity claims to rebuild a lost session record.
//
// # What this package must NOT do
//
//   - Verify signatures or make authorization decisions (the upstream does).
//   - Panic or return errors on malformed input: every reader degrades to "claim absent".
//   - Import goSession, cookie, or upstream.
package jwt

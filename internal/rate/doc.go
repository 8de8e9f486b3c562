// Package rate provides the Redis-backed login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - gs:login:u:<username> counts failed logins per username
//   - gs:login:ip:<ip> counts failed logins per client IP
//
// # What this package must NOT do
//
//   - Decide what a failed login is (the session manager reports failures).
//   - Be imported outside the goSession module.
package rate

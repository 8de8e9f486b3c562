// Package upstream is the HTTP client for the backend authority.
//
// Every backend response is wrapped in the envelope {code, status, message, data, errors}.
// Non-2xx responses become [*APIError] carrying the HTTP status and the best-effort message
// from the body; transport failures become [*APIError] with status 500 and a
// "Network error during <operation>" message.
//
// # What this package must NOT do
//
//   - Read or write cookies (the session manager owns cookie policy).
//   - Retry requests.
package upstream

// Package audit implements async event dispatching for session lifecycle events.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured record with timestamp, type, user, request id, IP, path, metadata.
//
// # What this package must NOT do
//
//   - Decide which events to emit (the session manager does that).
//   - Import goSession or any sibling internal package.
package audit

package goSession

import (
	"context"
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
)

// AuditEvent is one session lifecycle record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers audit events in a channel, mostly for tests.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs audit events through a structured logger.
type SlogSink = internalaudit.SlogSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

// Audit event types.
const (
	AuditLoginSuccess      = "login_success"
	AuditLoginFailure      = "login_failure"
	AuditLoginRateLimited  = "login_rate_limited"
	AuditRefreshSuccess    = "refresh_success"
	AuditRefreshFailure    = "refresh_failure"
	AuditRefreshMalformed  = "refresh_malformed"
	AuditSessionOversize   = "session_oversize"
	AuditLogout            = "logout"
	AuditLogoutUpstreamErr = "logout_upstream_error"
)

func (m *Manager) emitAudit(ctx context.Context, eventType string, success bool, userID string, err error, metadata map[string]string) {
	if m == nil || m.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: m.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		RequestID: RequestIDFromContext(ctx),
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}

	m.audit.Emit(ctx, event)
}

// AuditTally is the per-event-type count of delivered and dropped audit events.
type AuditTally = internalaudit.Tally

// AuditTally reports delivered and dropped audit events per event type.
func (m *Manager) AuditTally() AuditTally {
	if m == nil {
		return internalaudit.Tally{}
	}
	return m.audit.Tally()
}

// AuditPending reports audit events buffered but not yet delivered.
func (m *Manager) AuditPending() int {
	if m == nil {
		return 0
	}
	return m.audit.Pending()
}

// AuditDropped reports how many audit events were dropped under backpressure.
func (m *Manager) AuditDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.audit.Dropped()
}


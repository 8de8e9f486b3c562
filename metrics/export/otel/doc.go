// Package otel publishes goSession activity through OpenTelemetry observable
// instruments.
//
// Lifecycle counters share one instrument, gosession.flow.events, labeled by
// flow (login, refresh, session, logout, gate, intercept) and outcome. The
// upstream latency histogram is reported as cumulative bucket counts labeled
// by le. Audit delivery is reported per event type and disposition. Callers
// own the MeterProvider.
package otel

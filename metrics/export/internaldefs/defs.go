package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one in-process counter for exporters. Flow and Outcome
// place it on the session lifecycle for exporters that label by attribute.
type CounterDef struct {
	ID      goSession.MetricID
	Name    string
	Help    string
	Flow    string
	Outcome string
}

// HistogramDef names one in-process histogram for exporters.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to a full buffer.
const (
	AuditDroppedName = "gosession_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful login attempts.", Flow: "login", Outcome: "success"},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Failed login attempts.", Flow: "login", Outcome: "failure"},
	{ID: goSession.MetricLoginRateLimited, Name: "gosession_login_rate_limited_total", Help: "Login attempts rejected by the throttle.", Flow: "login", Outcome: "rate_limited"},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful token renewals.", Flow: "refresh", Outcome: "success"},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Failed token renewals.", Flow: "refresh", Outcome: "failure"},
	{ID: goSession.MetricRefreshSkippedMalformed, Name: "gosession_refresh_skipped_malformed_total", Help: "Malformed refresh cookies purged without a backend call.", Flow: "refresh", Outcome: "skipped_malformed"},
	{ID: goSession.MetricSessionDiscardedOversize, Name: "gosession_session_discarded_oversize_total", Help: "Session cookies discarded for exceeding the size cap.", Flow: "session", Outcome: "discarded_oversize"},
	{ID: goSession.MetricSessionCookiePurged, Name: "gosession_session_cookie_purged_total", Help: "Requests whose auth cookies were purged.", Flow: "session", Outcome: "purged"},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logout operations.", Flow: "logout", Outcome: "success"},
	{ID: goSession.MetricGateRedirect, Name: "gosession_gate_redirect_total", Help: "Anonymous requests redirected to the login page.", Flow: "gate", Outcome: "redirect"},
	{ID: goSession.MetricInterceptRetry, Name: "gosession_intercept_retry_total", Help: "Outbound requests retried after renewal.", Flow: "intercept", Outcome: "retry"},
	{ID: goSession.MetricInterceptUnauthorized, Name: "gosession_intercept_unauthorized_total", Help: "Outbound 401 responses returned to callers.", Flow: "intercept", Outcome: "unauthorized"},
}

var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricUpstreamLatency, Name: "gosession_upstream_latency_seconds", Help: "Upstream auth call latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// in-process bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket for exporters without native histograms.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

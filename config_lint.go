package goSession

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// LintSeverity ranks configuration warnings.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is a configuration choice that is valid but probably unintended.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of warnings produced by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins the warnings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	var errs []error
	for _, w := range r.BySeverity(min) {
		errs = append(errs, errors.New(w.Severity.String()+" "+w.Code+": "+w.Message))
	}
	return errors.Join(errs...)
}

// Lint reports suspicious but valid settings. It never fails; use
// [LintResult.AsError] to turn selected severities into a startup error.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Production {
		if u, err := url.Parse(c.Upstream.BaseURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
			add("upstream_plaintext", LintHigh, "credentials are sent to a non-loopback upstream over plain http")
		}
		if !c.LoginThrottle.Enabled {
			add("login_throttle_disabled", LintWarn, "production without a login throttle allows unbounded password guessing")
		}
		if len(c.Gate.DevPrefixes) > 0 {
			add("dev_prefixes_ignored", LintInfo, "Gate DevPrefixes are ignored in production")
		}
	}

	if c.Session.RenewWindow == 0 {
		add("renew_window_disabled", LintInfo, "proactive renewal only happens once the access cookie is gone")
	}
	if c.Session.RenewWindow > 5*time.Minute {
		add("renew_window_large", LintWarn, "a renew window above 5m renews on most requests")
	}
	if c.Session.MaxBytes > 4096 {
		add("session_cap_above_browser_limit", LintWarn, "browsers drop cookies larger than about 4KB")
	}
	if c.Session.RefreshFallback < c.Session.AccessFallback {
		add("refresh_fallback_shorter_than_access", LintWarn, "refresh cookie would expire before the access cookie")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "session lifecycle events are not recorded")
	}
	for _, p := range c.Gate.PublicPrefixes {
		if p == "/" {
			add("gate_open", LintHigh, "public prefix / disables the gatekeeper")
		}
	}

	return ws
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "::1" || strings.HasPrefix(host, "127.")
}

package goSession

import (
	"testing"
	"time"
)

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func TestLint_DefaultConfigHasNoHighWarnings(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Lint().AsError(LintHigh); err != nil {
		t.Fatalf("default config should not fail AsError(LintHigh): %v", err)
	}
	if !containsCode(cfg.Lint().Codes(), "audit_disabled") {
		t.Error("expected audit_disabled info")
	}
}

func TestLint_ProductionPlaintextUpstream(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Production = true
	cfg.Upstream.BaseURL = "http://api.internal:8080"
	ws := cfg.Lint()
	if !containsCode(ws.Codes(), "upstream_plaintext") {
		t.Fatal("expected upstream_plaintext warning")
	}
	if ws.AsError(LintHigh) == nil {
		t.Fatal("expected AsError(LintHigh) to fail")
	}

	cfg.Upstream.BaseURL = "http://127.0.0.1:8080"
	if containsCode(cfg.Lint().Codes(), "upstream_plaintext") {
		t.Fatal("loopback upstream should not warn")
	}
}

func TestLint_ProductionThrottleDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Production = true
	cfg.LoginThrottle.Enabled = false
	if !containsCode(cfg.Lint().Codes(), "login_throttle_disabled") {
		t.Fatal("expected login_throttle_disabled")
	}
}

func TestLint_RenewWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.RenewWindow = 0
	if !containsCode(cfg.Lint().Codes(), "renew_window_disabled") {
		t.Error("expected renew_window_disabled")
	}
	cfg.Session.RenewWindow = 10 * time.Minute
	if !containsCode(cfg.Lint().Codes(), "renew_window_large") {
		t.Error("expected renew_window_large")
	}
}

func TestLint_GateOpen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gate.PublicPrefixes = append(cfg.Gate.PublicPrefixes, "/")
	ws := cfg.Lint()
	for _, w := range ws {
		if w.Code == "gate_open" && w.Severity != LintHigh {
			t.Fatalf("gate_open should be HIGH, got %s", w.Severity)
		}
	}
	if !containsCode(ws.Codes(), "gate_open") {
		t.Fatal("expected gate_open")
	}
}

func TestLint_BySeverity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.MaxBytes = 8192
	ws := cfg.Lint()
	for _, w := range ws.BySeverity(LintWarn) {
		if w.Severity < LintWarn {
			t.Fatalf("BySeverity returned %s", w.Severity)
		}
	}
	if !containsCode(ws.BySeverity(LintWarn).Codes(), "session_cap_above_browser_limit") {
		t.Fatal("expected session_cap_above_browser_limit in WARN set")
	}
}

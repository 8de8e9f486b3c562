package goSession

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Session.MaxBytes != 2048 || cfg.Session.RenewWindow != 60*time.Second {
		t.Fatalf("unexpected session defaults %+v", cfg.Session)
	}
	if cfg.Session.AccessFallback != 15*time.Minute || cfg.Session.RefreshFallback != 60*time.Minute {
		t.Fatalf("unexpected fallback lifetimes %+v", cfg.Session)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "https upstream valid",
			mutate:    func(c *Config) { c.Upstream.BaseURL = "https://api.example.com" },
			wantValid: true,
		},
		{
			name:      "empty upstream invalid",
			mutate:    func(c *Config) { c.Upstream.BaseURL = " " },
			wantValid: false,
		},
		{
			name:      "relative upstream invalid",
			mutate:    func(c *Config) { c.Upstream.BaseURL = "/api" },
			wantValid: false,
		},
		{
			name:      "ftp upstream invalid",
			mutate:    func(c *Config) { c.Upstream.BaseURL = "ftp://example.com" },
			wantValid: false,
		},
		{
			name:      "zero max bytes invalid",
			mutate:    func(c *Config) { c.Session.MaxBytes = 0 },
			wantValid: false,
		},
		{
			name:      "negative renew window invalid",
			mutate:    func(c *Config) { c.Session.RenewWindow = -time.Second },
			wantValid: false,
		},
		{
			name:      "zero renew window valid",
			mutate:    func(c *Config) { c.Session.RenewWindow = 0 },
			wantValid: true,
		},
		{
			name:      "zero access fallback invalid",
			mutate:    func(c *Config) { c.Session.AccessFallback = 0 },
			wantValid: false,
		},
		{
			name:      "login path not public invalid",
			mutate:    func(c *Config) { c.Gate.LoginPath = "/signin" },
			wantValid: false,
		},
		{
			name:      "relative prefix invalid",
			mutate:    func(c *Config) { c.Gate.DevPrefixes = []string{"master"} },
			wantValid: false,
		},
		{
			name:      "dotted extension invalid",
			mutate:    func(c *Config) { c.Gate.AssetExtensions = []string{".css"} },
			wantValid: false,
		},
		{
			name: "throttle without attempts invalid",
			mutate: func(c *Config) {
				c.LoginThrottle.Enabled = true
				c.LoginThrottle.MaxAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "disabled throttle ignores attempts",
			mutate: func(c *Config) {
				c.LoginThrottle.Enabled = false
				c.LoginThrottle.MaxAttempts = 0
			},
			wantValid: true,
		},
		{
			name: "audit without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.wantValid {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
			}
		})
	}
}

func TestSecureCookies(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SecureCookies() {
		t.Fatal("development cookies must not be Secure")
	}
	cfg.Production = true
	if !cfg.SecureCookies() {
		t.Fatal("production cookies must be Secure")
	}
	cfg.Production = false
	cfg.Cookie.ForceSecure = true
	if !cfg.SecureCookies() {
		t.Fatal("ForceSecure must set Secure")
	}
}

func TestBuildConfigImmutabilityAgainstExternalMutation(t *testing.T) {
	cfg := DefaultConfig()
	m, err := New().WithConfig(cfg).WithLogger(discardLogger()).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer m.Close()

	cfg.Gate.PublicPrefixes[0] = "/"
	if got := m.Config().Gate.PublicPrefixes[0]; got != "/login" {
		t.Fatalf("manager config mutated through caller slice: %q", got)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithLogger(discardLogger())
	m, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer m.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderProductionThrottleRequiresRedis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Production = true
	cfg.Upstream.BaseURL = "https://api.example.com"
	if _, err := New().WithConfig(cfg).WithLogger(discardLogger()).Build(); err == nil {
		t.Fatal("expected production build without redis to fail")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Upstream.BaseURL = ""
	if _, err := New().WithConfig(cfg).Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

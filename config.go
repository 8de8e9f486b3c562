package goSession

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/session"
)

// Config is the complete session manager configuration.
//
// Config instances are configured during initialization and treated as immutable once
// passed to [Builder.WithConfig].
type Config struct {
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Session       SessionConfig       `yaml:"session"`
	Cookie        CookieConfig        `yaml:"cookie"`
	Gate          GateConfig          `yaml:"gate"`
	LoginThrottle LoginThrottleConfig `yaml:"login_throttle"`
	Audit         AuditConfig         `yaml:"audit"`
	Metrics       MetricsConfig       `yaml:"metrics"`

	// Production enables Secure cookies and disables the development route bypass.
	Production bool `yaml:"production"`
}

/*
====================================
UPSTREAM CONFIG
====================================
*/

// UpstreamConfig locates the backend authority.
type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes session resolution and renewal.
type SessionConfig struct {
	// MaxBytes caps the session cookie value; larger values are discarded.
	MaxBytes int `yaml:"max_bytes"`
	// RenewWindow is the remaining access validity at or below which the
	// resolver renews proactively.
	RenewWindow time.Duration `yaml:"renew_window"`
	// AccessFallback is the access cookie lifetime when the credential has no readable exp.
	AccessFallback time.Duration `yaml:"access_fallback"`
	// RefreshFallback is the refresh cookie lifetime when the credential has no readable exp.
	RefreshFallback time.Duration `yaml:"refresh_fallback"`
}

// CookieConfig adjusts cookie attributes beyond the fixed policy
// (HttpOnly, SameSite=Lax, Path=/).
type CookieConfig struct {
	// ForceSecure sets Secure outside production too, for TLS-terminated staging hosts.
	ForceSecure bool `yaml:"force_secure"`
}

/*
====================================
GATE CONFIG
====================================
*/

// GateConfig drives the request gatekeeper.
type GateConfig struct {
	LoginPath       string   `yaml:"login_path"`
	PublicPrefixes  []string `yaml:"public_prefixes"`
	AssetPrefixes   []string `yaml:"asset_prefixes"`
	AssetExtensions []string `yaml:"asset_extensions"`
	// DevPrefixes bypass authentication in non-production builds only.
	DevPrefixes []string `yaml:"dev_prefixes"`
}

// LoginThrottleConfig defines the Redis-backed failed-login budget.
type LoginThrottleConfig struct {
	Enabled          bool          `yaml:"enabled"`
	EnableIPThrottle bool          `yaml:"enable_ip_throttle"`
	MaxAttempts      int           `yaml:"max_attempts"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
	// KeepFailures makes failed outcomes wait for buffer space even with
	// DropIfFull set.
	KeepFailures bool `yaml:"keep_failures"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Upstream: UpstreamConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 10 * time.Second,
		},
		Session: SessionConfig{
			MaxBytes:        session.DefaultMaxBytes,
			RenewWindow:     60 * time.Second,
			AccessFallback:  15 * time.Minute,
			RefreshFallback: 60 * time.Minute,
		},
		Gate: GateConfig{
			LoginPath:       "/login",
			PublicPrefixes:  []string{"/login", "/auth", "/coming-soon", "/maintenance", "/pages"},
			AssetPrefixes:   []string{"/assets", "/build"},
			AssetExtensions: []string{"png", "jpg", "jpeg", "svg", "ico", "css", "js", "map", "webp", "woff", "woff2"},
			DevPrefixes: []string{
				"/master/categories",
				"/master/category-products",
				"/master/ingredient-catalog",
				"/master/ingredient-stock-moves",
				"/master/ingredient-stocks",
				"/master/ingredients",
				"/master/products",
				"/master/recipes",
				"/master/units-of-measurements",
			},
		},
		LoginThrottle: LoginThrottleConfig{
			Enabled:          true,
			EnableIPThrottle: true,
			MaxAttempts:      5,
			Cooldown:         15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize:   1024,
			DropIfFull:   true,
			KeepFailures: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Gate.PublicPrefixes = cloneStrings(cfg.Gate.PublicPrefixes)
	out.Gate.AssetPrefixes = cloneStrings(cfg.Gate.AssetPrefixes)
	out.Gate.AssetExtensions = cloneStrings(cfg.Gate.AssetExtensions)
	out.Gate.DevPrefixes = cloneStrings(cfg.Gate.DevPrefixes)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// SecureCookies reports whether auth cookies carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return c.Production || c.Cookie.ForceSecure
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks structural correctness. Every returned error wraps [ErrInvalidConfig].
func (c *Config) Validate() error {
	// Upstream
	base := strings.TrimSpace(c.Upstream.BaseURL)
	if base == "" {
		return invalid("Upstream BaseURL is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid("Upstream BaseURL must be an absolute http(s) URL")
	}
	if c.Upstream.Timeout < 0 {
		return invalid("Upstream Timeout must be >= 0")
	}

	// Session
	if c.Session.MaxBytes <= 0 {
		return invalid("Session MaxBytes must be > 0")
	}
	if c.Session.RenewWindow < 0 {
		return invalid("Session RenewWindow must be >= 0")
	}
	if c.Session.AccessFallback <= 0 {
		return invalid("Session AccessFallback must be > 0")
	}
	if c.Session.RefreshFallback <= 0 {
		return invalid("Session RefreshFallback must be > 0")
	}

	// Gate
	if !strings.HasPrefix(c.Gate.LoginPath, "/") {
		return invalid("Gate LoginPath must start with /")
	}
	if !hasPrefixCovering(c.Gate.PublicPrefixes, c.Gate.LoginPath) {
		return invalid("Gate PublicPrefixes must cover LoginPath")
	}
	for _, groups := range [][]string{c.Gate.PublicPrefixes, c.Gate.AssetPrefixes, c.Gate.DevPrefixes} {
		for _, p := range groups {
			if !strings.HasPrefix(p, "/") {
				return invalid(fmt.Sprintf("Gate prefix %q must start with /", p))
			}
		}
	}
	for _, ext := range c.Gate.AssetExtensions {
		if ext == "" || strings.ContainsAny(ext, "./") {
			return invalid(fmt.Sprintf("Gate asset extension %q must be a bare extension", ext))
		}
	}

	// Login throttle
	if c.LoginThrottle.Enabled {
		if c.LoginThrottle.MaxAttempts <= 0 {
			return invalid("LoginThrottle MaxAttempts must be > 0")
		}
		if c.LoginThrottle.Cooldown <= 0 {
			return invalid("LoginThrottle Cooldown must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalid("Audit BufferSize must be > 0")
	}

	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}

func hasPrefixCovering(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

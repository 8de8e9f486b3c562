package goSession

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/cookie"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/upstream"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// Builder assembles a [Manager]. A Builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	logger     *slog.Logger
	auditSink  AuditSink
	httpClient *http.Client
	transport  http.RoundTripper
	tracer     trace.Tracer
	clock      func() time.Time

	built bool
}

// New starts a builder from [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables the login throttle backed by client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithHTTPClient sets the client used for login, refresh and logout calls.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithTransport sets the base transport wrapped by [Manager.HTTPClient].
func (b *Builder) WithTransport(rt http.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithTracer sets the tracer used for upstream spans.
func (b *Builder) WithTracer(t trace.Tracer) *Builder {
	b.tracer = t
	return b
}

// WithClock overrides the time source used for credential lifetimes.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and returns a ready [Manager].
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.LoginThrottle.Enabled && b.redis == nil && cfg.Production {
		return nil, errors.New("LoginThrottle requires redis client in production")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	base := b.transport
	if base == nil {
		base = http.DefaultTransport
	}

	m := &Manager{
		config:    cfg,
		policy:    cookie.Policy{Secure: cfg.SecureCookies()},
		logger:    logger,
		metrics:   NewMetrics(cfg.Metrics),
		audit:     internalaudit.NewDispatcher(internalaudit.Config(cfg.Audit), b.auditSink),
		transport: base,
		now:       clock,
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Upstream.Timeout}
	}
	opts := []upstream.Option{
		upstream.WithHTTPClient(httpClient),
		upstream.WithObserver(func(_ string, _ int, elapsed time.Duration) {
			m.metrics.Observe(MetricUpstreamLatency, elapsed)
		}),
	}
	if b.tracer != nil {
		opts = append(opts, upstream.WithTracer(b.tracer))
	}
	m.upstream = upstream.New(cfg.Upstream.BaseURL, opts...)

	if cfg.LoginThrottle.Enabled && b.redis != nil {
		m.limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:      cfg.LoginThrottle.EnableIPThrottle,
			MaxLoginAttempts:      cfg.LoginThrottle.MaxAttempts,
			LoginCooldownDuration: cfg.LoginThrottle.Cooldown,
		})
	} else if cfg.LoginThrottle.Enabled {
		logger.Warn("login throttle enabled without redis client; throttling disabled")
	}

	for _, w := range cfg.Lint().BySeverity(LintWarn) {
		logger.Warn("config lint", "code", w.Code, "severity", w.Severity.String(), "message", w.Message)
	}

	b.built = true

	return m, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/cmd/storefront/internal/config"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the storefront session server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, root)
		},
	}

	cmd.Flags().String("listen", "", "Listen address (overrides LISTEN_ADDR)")
	cmd.Flags().String("api-base-url", "", "Backend base URL (overrides API_BASE_URL)")
	cmd.Flags().String("redis-addr", "", "Redis address for the login throttle (overrides REDIS_ADDR)")
	cmd.Flags().Bool("dev-redis", false, "Run an in-process miniredis for the login throttle")
	cmd.Flags().Bool("production", false, "Force production mode")
	cmd.Flags().Bool("metrics", true, "Expose Prometheus metrics on /metrics")
	cmd.Flags().Bool("otel-metrics", false, "Expose OpenTelemetry instruments as JSON on /otel-metrics")
	cmd.Flags().Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	return cmd
}

func loadServeConfig(cmd *cobra.Command, root *rootOptions) (config.File, error) {
	cfg, err := config.Load(root.configPath, root.envFile)
	if err != nil {
		return config.File{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen, _ = flags.GetString("listen")
	}
	if flags.Changed("api-base-url") {
		cfg.Upstream.BaseURL, _ = flags.GetString("api-base-url")
	}
	if flags.Changed("redis-addr") {
		cfg.RedisAddr, _ = flags.GetString("redis-addr")
	}
	if flags.Changed("production") {
		cfg.Production, _ = flags.GetBool("production")
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled, _ = flags.GetBool("metrics")
	} else {
		cfg.Metrics.Enabled = true
	}
	cfg.Metrics.EnableLatencyHistograms = cfg.Metrics.Enabled
	if root.logFormat != "" {
		cfg.LogFormat = root.logFormat
	}
	if root.logLevel != "" {
		cfg.LogLevel = root.logLevel
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, root *rootOptions) error {
	cfg, err := loadServeConfig(cmd, root)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}
	devRedis, _ := cmd.Flags().GetBool("dev-redis")
	otelEnabled, _ := cmd.Flags().GetBool("otel-metrics")
	shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")

	builder := goSession.New().
		WithConfig(cfg.Config).
		WithLogger(logger).
		WithAuditSink(goSession.NewSlogSink(logger))

	switch {
	case devRedis:
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer func() { _ = client.Close() }()
		builder = builder.WithRedis(client)
		logger.Info("using in-process redis", "addr", mr.Addr())
	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = client.Close() }()
		if err := client.Ping(cmd.Context()).Err(); err != nil {
			logger.Warn("redis ping failed; login throttle fails open", "addr", cfg.RedisAddr, "error", err)
		}
		builder = builder.WithRedis(client)
	}

	m, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build session manager: %w", err)
	}
	defer m.Close()

	var metricsHandler, otelHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = promexport.NewCollector(m).Handler()
	}
	if otelEnabled {
		om, err := newOTelMetrics(m)
		if err != nil {
			return err
		}
		defer func() {
			if err := om.Shutdown(context.Background()); err != nil {
				logger.Warn("otel metrics shutdown", "error", err)
			}
		}()
		otelHandler = om.Handler()
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(m, metricsHandler, otelHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("storefront listening",
			"addr", cfg.Listen,
			"upstream", cfg.Upstream.BaseURL,
			"production", cfg.Production,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newRouter(m *goSession.Manager, metricsHandler, otelHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP)

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	if otelHandler != nil {
		r.Method(http.MethodGet, "/otel-metrics", otelHandler)
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(m))
		r.Use(middleware.Gatekeeper(m))

		h := &handlers{manager: m, logger: m.Logger()}
		loginPath := m.Config().Gate.LoginPath
		r.Get(loginPath, h.loginPage)
		r.Post(loginPath, h.login)
		r.Post("/logout", h.logout)
		r.Get("/*", h.appShell)
	})

	return r
}

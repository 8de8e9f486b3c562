package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/cookie"
	"github.com/MrEthical07/goSession/internal/upstreamtest"
	"github.com/MrEthical07/goSession/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type loadtestOptions struct {
	users       int
	concurrency int
	ops         int
	redisAddr   string
}

type userState struct {
	username string
	access   string
	refresh  string
	session  string
}

func newLoadtestCmd() *cobra.Command {
	opts := &loadtestOptions{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure resolve, renew and login latency against an in-process backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.users, "users", 1000, "number of distinct users to seed")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 20000, "operations per phase (resolve + renew + login)")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")

	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, opts *loadtestOptions) error {
	if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return fmt.Errorf("users, concurrency, and ops must be > 0")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	addr := opts.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Fprintf(out, "using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}
	defer cleanup()
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer func() { _ = client.Close() }()

	backendOpts := make([]upstreamtest.Option, 0, opts.users)
	for i := 0; i < opts.users; i++ {
		backendOpts = append(backendOpts, upstreamtest.WithUser(loadtestUser(i), "password"))
	}
	backend := upstreamtest.New(backendOpts...)
	srv := backend.Start()
	defer srv.Close()

	cfg := goSession.DefaultConfig()
	cfg.Upstream.BaseURL = srv.URL
	cfg.LoginThrottle.MaxAttempts = 1 << 30
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	m, err := goSession.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		return err
	}
	defer m.Close()

	states := make([]userState, opts.users)
	fmt.Fprintf(out, "seeding %d users...\n", opts.users)
	startSeed := time.Now()
	for i := range states {
		username := loadtestUser(i)
		raw, err := session.Encode(session.Record{User: &session.User{ID: upstreamtest.UserUUID(username), Email: username}})
		if err != nil {
			return err
		}
		states[i] = userState{
			username: username,
			access:   backend.IssueAccess(username, time.Hour),
			refresh:  backend.IssueRefresh(username, 24*time.Hour),
			session:  raw,
		}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	resolveStats := runPhase(opts.ops, opts.concurrency, len(states), func(idx int) error {
		s := states[idx]
		jar := jarFor(map[string]string{
			cookie.SessionName: s.session,
			cookie.AccessName:  s.access,
			cookie.RefreshName: s.refresh,
		})
		if !m.Resolve(ctx, jar).Authenticated() {
			return fmt.Errorf("resolve: anonymous")
		}
		return nil
	})
	renewStats := runPhase(opts.ops, opts.concurrency, len(states), func(idx int) error {
		jar := jarFor(map[string]string{cookie.RefreshName: states[idx].refresh})
		if !m.Resolve(ctx, jar).Authenticated() {
			return fmt.Errorf("renew: anonymous")
		}
		return nil
	})
	loginStats := runPhase(opts.ops, opts.concurrency, len(states), func(idx int) error {
		jar := jarFor(nil)
		_, err := m.Login(ctx, jar, states[idx].username, "password")
		return err
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "resolve", resolveStats)
	printStats(out, "renew", renewStats)
	printStats(out, "login", loginStats)
	return nil
}

func loadtestUser(i int) string {
	return fmt.Sprintf("user-%d@example.com", i)
}

func jarFor(values map[string]string) *cookie.Jar {
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	for name, value := range values {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return cookie.NewJar(req)
}

func runPhase(ops, concurrency, population int, op func(idx int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r.Intn(population))
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

package goSession

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/cookie"
	"github.com/MrEthical07/goSession/internal/upstreamtest"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/upstream"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testUser = "alice@example.com"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.Upstream.BaseURL = baseURL
	cfg.LoginThrottle.Enabled = false
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestManager(t *testing.T, cfg Config, b *Builder) *Manager {
	t.Helper()
	if b == nil {
		b = New()
	}
	m, err := b.WithConfig(cfg).WithLogger(discardLogger()).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func startBackend(t *testing.T, opts ...upstreamtest.Option) (*upstreamtest.Backend, *httptest.Server) {
	t.Helper()
	backend := upstreamtest.New(append([]upstreamtest.Option{upstreamtest.WithUser(testUser, "secret")}, opts...)...)
	srv := backend.Start()
	t.Cleanup(srv.Close)
	return backend, srv
}

func jarWith(cookies map[string]string) *cookie.Jar {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return cookie.NewJar(req)
}

func encodedSession(t testing.TB, u *User) string {
	t.Helper()
	raw, err := session.Encode(session.Record{User: u})
	if err != nil {
		t.Fatalf("encode session: %v", err)
	}
	return raw
}

func writesByName(jar *cookie.Jar) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range jar.Cookies() {
		out[c.Name] = c
	}
	return out
}

func assertPurged(t *testing.T, jar *cookie.Jar) {
	t.Helper()
	writes := writesByName(jar)
	for _, name := range cookie.AuthNames {
		c, ok := writes[name]
		if !ok || c.MaxAge >= 0 {
			t.Fatalf("expected %s to be deleted, got %+v", name, c)
		}
	}
}

func TestResolveOversizedSessionIsDiscarded(t *testing.T) {
	_, srv := startBackend(t)
	m := newTestManager(t, testConfig(srv.URL), nil)

	jar := jarWith(map[string]string{cookie.SessionName: strings.Repeat("a", 2049)})
	locals := m.Resolve(context.Background(), jar)

	if locals.User != nil {
		t.Fatalf("expected anonymous, got %+v", locals.User)
	}
	c := writesByName(jar)[cookie.SessionName]
	if c == nil || c.MaxAge >= 0 {
		t.Fatalf("expected session cookie deletion, got %+v", c)
	}
	if got := m.metrics.Value(MetricSessionDiscardedOversize); got != 1 {
		t.Fatalf("expected oversize metric 1, got %d", got)
	}
}

func TestResolveValidSessionWithoutRefreshKeepsUser(t *testing.T) {
	backend, srv := startBackend(t)
	m := newTestManager(t, testConfig(srv.URL), nil)

	u := &User{ID: "u1", Email: testUser}
	jar := jarWith(map[string]string{cookie.SessionName: encodedSession(t, u)})
	locals := m.Resolve(context.Background(), jar)

	if locals.User == nil || locals.User.ID != "u1" {
		t.Fatalf("expected user u1, got %+v", locals.User)
	}
	if locals.GetSession() != locals.User {
		t.Fatal("GetSession must return the resolved user")
	}
	if backend.Calls(upstream.RefreshPath) != 0 {
		t.Fatal("no backend call expected")
	}
	if len(jar.Cookies()) != 0 {
		t.Fatalf("expected no cookie writes, got %v", jar.Cookies())
	}
}

func TestResolveMissingAccessRenewsExactlyOnce(t *testing.T) {
	backend, srv := startBackend(t)
	m := newTestManager(t, testConfig(srv.URL), nil)

	refresh := backend.IssueRefresh(testUser, 2*time.Hour)
	jar := jarWith(map[string]string{cookie.RefreshName: refresh})
	locals := m.Resolve(context.Background(), jar)

	if got := backend.Calls(upstream.RefreshPath); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
	if locals.User == nil || locals.User.ID != upstreamtest.UserUUID(testUser) {
		t.Fatalf("expected user rebuilt from claims, got %+v", locals.User)
	}
	if locals.User.Email != testUser {
		t.Fatalf("expected email claim, got %q", locals.User.Email)
	}

	writes := writesByName(jar)
	for _, name := range cookie.AuthNames {
		c := writes[name]
		if c == nil || c.MaxAge <= 0 || c.Value == "" {
			t.Fatalf("expected %s populated, got %+v", name, c)
		}
		if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.Path != "/" || c.Secure {
			t.Fatalf("unexpected cookie attributes for %s: %+v", name, c)
		}
	}
	if writes[cookie.RefreshName].Value != refresh {
		t.Fatal("non-rotating backend must keep the caller's refresh credential")
	}
	if !jwt.WellFormed(writes[cookie.AccessName].Value) {
		t.Fatal("expected new access credential")
	}
	sessionAge := writes[cookie.SessionName].MaxAge
	accessAge := writes[cookie.AccessName].MaxAge
	refreshAge := writes[cookie.RefreshName].MaxAge
	if refreshAge <= accessAge {
		t.Fatalf("expected refresh (%d) to outlive access (%d)", refreshAge, accessAge)
	}
	if sessionAge != max(accessAge, refreshAge) {
		t.Fatalf("session max-age %d, want max(%d, %d)", sessionAge, accessAge, refreshAge)
	}
	if got := m.metrics.Value(MetricRefreshSuccess); got != 1 {
		t.Fatalf("expected refresh success metric 1, got %d", got)
	}
}

func farFutureToken(t *testing.T, claims string) string {
	t.Helper()
	return "eyJhbGciOiJIUzI1NiJ9." + base64.RawURLEncoding.EncodeToString([]byte(claims)) + ".sig"
}

func TestResolveFarFutureExpiryDoesNotRenew(t *testing.T) {
	backend, srv := startBackend(t)
	m := newTestManager(t, testConfig(srv.URL), nil)

	access := farFutureToken(t, `{"user_uuid":"u1","exp":253402300799}`)
	refresh := farFutureToken(t, `{"exp":253402300799}`)
	u := &User{ID: "u1", Email: testUser}
	jar := jarWith(map[string]string{
		cookie.AccessName:  access,
		cookie.RefreshName: refresh,
		cookie.SessionName: encodedSession(t, u),
	})

	locals := m.Resolve(context.Background(), jar)
	if locals.User == nil || locals.User.ID != "u1" {
		t.Fatalf("expected user u1, got %+v", locals.User)
	}
	if got := backend.Calls(upstream.RefreshPath); got != 0 {
		t.Fatalf("expected no refresh call, got %d", got)
	}
	if len(jar.Cookies()) != 0 {
		t.Fatalf("expected no cookie writes, got %v", jar.Cookies())
	}

	out := jarWith(nil)
	if m.writeCredentials(out, access, refresh, u) == nil {
		t.Fatal("expected session user to be stored")
	}
	want := int(jwt.MaxLifetime / time.Second)
	for name, c := range writesByName(out) {
		if c.MaxAge != want {
			t.Fatalf("%s max-age %d, want %d", name, c.MaxAge, want)
		}
	}
}

func TestResolveRenewWindowBoundary(t *testing.T) {
	cases := []struct {
		name      string
		remaining time.Duration
		renew     bool
	}{
		{name: "expired", remaining: 0, renew: true},
		{name: "thirty seconds", remaining: 30 * time.Second, renew: true},
		{name: "two minutes", remaining: 2 * time.Minute, renew: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend, srv := startBackend(t)
			m := newTestManager(t, testConfig(srv.URL), nil)

			jar := jarWith(map[string]string{
				cookie.SessionName: encodedSession(t, &User{ID: "u1", Email: testUser}),
				cookie.AccessName:  backend.IssueAccess(testUser, tc.remaining),
				cookie.RefreshName: backend.IssueRefresh(testUser, time.Hour),
			})
			locals := m.Resolve(context.Background(), jar)

			calls := backend.Calls(upstream.RefreshPath)
			if tc.renew && calls != 1 {
				t.Fatalf("expected one renewal, got %d", calls)
			}
			if !tc.renew && calls != 0 {
				t.Fatalf("expected no renewal, got %d", calls)
			}
			if locals.User == nil || locals.User.ID != "u1" {
				t.Fatalf("expected existing user kept, got %+v", locals.User)
			}
		})
	}
}

func TestResolveUndecodableAccessDoesNotRenew(t *testing.T) {
	backend, srv := startBackend(t)
	m := newTestManager(t, testConfig(srv.URL), nil)

	jar := jarWith(map[string]string{
		cookie.SessionName: encodedSession(t, &User{ID: "u1"}),
		cookie.AccessName:  "opaque-access",
		cookie.RefreshName: backend.IssueRefresh(testUser, time.Hour),
	})
	locals := m.Resolve(context.Background(), jar)

	if backend.Calls(upstream.RefreshPath) != 0 {
		t.Fatal("undecodable access credential must not trigger renewal")
	}
	if locals.User == nil {
		t.Fatal("expected user")
	}
}

func TestResolveMissingUserWithValidTokensRenews(t *testing.T) {
	backend, srv := startBackend(t)
	m := newTestManager(t, testConfig(srv.URL), nil)

	jar := jarWith(map[string]string{
		cookie.SessionName: "not-base64!",
		cookie.AccessName:  backend.IssueAccess(testUser, 10*time.Minute),
		cookie.RefreshName: backend.IssueRefresh(testUser, time.Hour),
	})
	locals := m.Resolve(context.Background(), jar)

	if backend.Calls(upstream.RefreshPath) != 1 {
		t.Fatalf("expected renewal for missing user, got %d", backend.Calls(upstream.RefreshPath))
	}
	if locals.User == nil || locals.User.ID != upstreamtest.UserUUID(testUser) {
		t.Fatalf("expected user after renewal, got %+v", locals.User)
	}
}

func TestResolveMalformedRefreshPurgesWithoutBackendCall(t *testing.T) {
	backend, srv := startBackend(t)
	m := newTestManager(t, testConfig(srv.URL), nil)

	jar := jarWith(map[string]string{
		cookie.SessionName: encodedSession(t, &User{ID: "u1"}),
		cookie.RefreshName: "bad_token",
	})
	locals := m.Resolve(context.Background(), jar)

	if locals.User != nil {
		t.Fatalf("expected anonymous, got %+v", locals.User)
	}
	if backend.Calls(upstream.RefreshPath) != 0 {
		t.Fatal("malformed refresh must not reach the backend")
	}
	assertPurged(t, jar)
	if got := m.metrics.Value(MetricRefreshSkippedMalformed); got != 1 {
		t.Fatalf("expected malformed metric 1, got %d", got)
	}
}

func TestResolveRenewalFailurePurgesAndContinues(t *testing.T) {
	backend, srv := startBackend(t)
	backend.FailRefresh(http.StatusUnauthorized)
	m := newTestManager(t, testConfig(srv.URL), nil)

	jar := jarWith(map[string]string{
		cookie.SessionName: encodedSession(t, &User{ID: "u1"}),
		cookie.RefreshName: backend.IssueRefresh(testUser, time.Hour),
	})
	locals := m.Resolve(context.Background(), jar)

	if locals.User != nil {
		t.Fatalf("expected anonymous after failed renewal, got %+v", locals.User)
	}
	if got := backend.Calls(upstream.RefreshPath); got != 1 {
		t.Fatalf("expected a single backend call, got %d", got)
	}
	assertPurged(t, jar)
	if got := m.metrics.Value(MetricRefreshFailure); got != 1 {
		t.Fatalf("expected refresh failure metric 1, got %d", got)
	}
}

func TestResolveBackendDownIsAbsorbed(t *testing.T) {
	backend, srv := startBackend(t)
	refresh := backend.IssueRefresh(testUser, time.Hour)
	srv.Close()

	m := newTestManager(t, testConfig(srv.URL), nil)
	jar := jarWith(map[string]string{cookie.RefreshName: refresh})

	locals := m.Resolve(context.Background(), jar)
	if locals.User != nil {
		t.Fatal("expected anonymous")
	}
	assertPurged(t, jar)
}

func TestRenewPrefersRotatedRefresh(t *testing.T) {
	backend, srv := startBackend(t, upstreamtest.WithRotation())
	m := newTestManager(t, testConfig(srv.URL), nil)

	refresh := backend.IssueRefresh(testUser, time.Hour)
	jar := jarWith(map[string]string{
		cookie.SessionName: encodedSession(t, &User{ID: "u1"}),
		cookie.RefreshName: refresh,
	})
	if !m.Renew(context.Background(), jar) {
		t.Fatal("expected renewal")
	}
	got, _ := jar.Get(cookie.RefreshName)
	if got == refresh || !jwt.WellFormed(got) {
		t.Fatalf("expected rotated refresh credential, got %q", got)
	}
	raw, _ := jar.Get(cookie.SessionName)
	rec, err := session.Decode(raw, 0)
	if err != nil || rec.User.ID != "u1" {
		t.Fatalf("expected current user kept, got %+v %v", rec, err)
	}
}

func TestRenewWithoutRefreshSkipsBackend(t *testing.T) {
	backend, srv := startBackend(t)
	m := newTestManager(t, testConfig(srv.URL), nil)

	if m.Renew(context.Background(), jarWith(nil)) {
		t.Fatal("expected no renewal")
	}
	if backend.Calls(upstream.RefreshPath) != 0 {
		t.Fatal("expected no backend call")
	}
}

func TestLoginWritesCookiesWithAccessFallback(t *testing.T) {
	_, srv := startBackend(t, upstreamtest.WithoutRefreshToken())
	m := newTestManager(t, testConfig(srv.URL), nil)

	jar := jarWith(nil)
	user, err := m.Login(context.Background(), jar, testUser, "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != testUser || user.Email != testUser || user.Name != testUser {
		t.Fatalf("unexpected user %+v", user)
	}

	access, _ := jar.Get(cookie.AccessName)
	refresh, _ := jar.Get(cookie.RefreshName)
	if access == "" || refresh != access {
		t.Fatalf("expected refresh to fall back to access, got %q / %q", access, refresh)
	}

	locals := m.Resolve(context.Background(), jar)
	if locals.User == nil || locals.User.ID != testUser {
		t.Fatalf("expected logged in user on the same jar, got %+v", locals.User)
	}
	if got := m.metrics.Value(MetricLoginSuccess); got != 1 {
		t.Fatalf("expected login success metric 1, got %d", got)
	}
}

func TestLoginFailureSurfacesAPIError(t *testing.T) {
	_, srv := startBackend(t)
	m := newTestManager(t, testConfig(srv.URL), nil)

	jar := jarWith(nil)
	_, err := m.Login(context.Background(), jar, testUser, "wrong")
	var apiErr *upstream.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if apiErr.Message != "Invalid username or password" {
		t.Fatalf("expected backend message, got %q", apiErr.Message)
	}
	if len(jar.Cookies()) != 0 {
		t.Fatal("failed login must not write cookies")
	}
}

func TestLoginMissingCredentials(t *testing.T) {
	_, srv := startBackend(t)
	m := newTestManager(t, testConfig(srv.URL), nil)

	if _, err := m.Login(context.Background(), jarWith(nil), "  ", "x"); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if _, err := m.Login(context.Background(), jarWith(nil), "bob", ""); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestLoginThrottle(t *testing.T) {
	backend, srv := startBackend(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig(srv.URL)
	cfg.LoginThrottle = LoginThrottleConfig{Enabled: true, EnableIPThrottle: true, MaxAttempts: 2, Cooldown: time.Minute}
	m := newTestManager(t, cfg, New().WithRedis(rdb))

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	for i := 0; i < 2; i++ {
		if _, err := m.Login(ctx, jarWith(nil), testUser, "wrong"); upstream.StatusOf(err) != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %v", i, err)
		}
	}

	before := backend.Calls(upstream.LoginPath)
	if _, err := m.Login(ctx, jarWith(nil), testUser, "secret"); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
	if backend.Calls(upstream.LoginPath) != before {
		t.Fatal("throttled login must not reach the backend")
	}
	if got := m.metrics.Value(MetricLoginRateLimited); got != 1 {
		t.Fatalf("expected rate limited metric 1, got %d", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := m.Login(ctx, jarWith(nil), testUser, "secret"); err != nil {
		t.Fatalf("expected login after cooldown, got %v", err)
	}
}

func TestLogoutPurgesEvenWhenBackendFails(t *testing.T) {
	backend, srv := startBackend(t)
	m := newTestManager(t, testConfig(srv.URL), nil)

	jar := jarWith(map[string]string{
		cookie.SessionName: encodedSession(t, &User{ID: "u1"}),
		cookie.AccessName:  backend.IssueAccess(testUser, time.Minute),
		cookie.RefreshName: backend.IssueRefresh(testUser, time.Hour),
	})
	m.Logout(context.Background(), jar)
	if backend.Calls(upstream.LogoutPath) != 1 {
		t.Fatal("expected upstream logout call")
	}
	assertPurged(t, jar)

	srv.Close()
	jar = jarWith(map[string]string{cookie.SessionName: encodedSession(t, &User{ID: "u1"})})
	m.Logout(context.Background(), jar)
	assertPurged(t, jar)
	if got := m.metrics.Value(MetricLogout); got != 2 {
		t.Fatalf("expected logout metric 2, got %d", got)
	}
}

func TestAuditEventsCarryRequestID(t *testing.T) {
	backend, srv := startBackend(t)
	sink := NewChannelSink(8)
	cfg := testConfig(srv.URL)
	cfg.Audit = AuditConfig{Enabled: true, BufferSize: 8}
	m := newTestManager(t, cfg, New().WithAuditSink(sink))

	ctx := WithRequestID(context.Background(), "req-1")
	jar := jarWith(map[string]string{cookie.RefreshName: backend.IssueRefresh(testUser, time.Hour)})
	m.Resolve(ctx, jar)

	select {
	case ev := <-sink.Events():
		if ev.EventType != AuditRefreshSuccess || ev.RequestID != "req-1" || !ev.Success {
			t.Fatalf("unexpected audit event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected audit event")
	}

	m.Close()
	tally := m.AuditTally()
	if tally.Delivered[AuditRefreshSuccess] != 1 || len(tally.Dropped) != 0 {
		t.Fatalf("unexpected audit tally %+v", tally)
	}
}

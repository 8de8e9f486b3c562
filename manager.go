package goSession

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/cookie"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/upstream"
)

// Manager resolves, renews and ends cookie sessions. It holds no per-user
// state and is safe for concurrent use once built.
type Manager struct {
	config    Config
	policy    cookie.Policy
	upstream  *upstream.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	transport http.RoundTripper
	now       func() time.Time
}

// Config returns a copy of the effective configuration.
func (m *Manager) Config() Config {
	return cloneConfig(m.config)
}

// Logger returns the manager's structured logger.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

// Upstream returns the backend client.
func (m *Manager) Upstream() *upstream.Client {
	return m.upstream
}

// MetricsSnapshot returns the current counters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil {
		return NewMetrics(MetricsConfig{}).Snapshot()
	}
	return m.metrics.Snapshot()
}

// Metrics returns the live metrics set for components that record on the
// manager's behalf.
func (m *Manager) Metrics() *Metrics {
	if m == nil {
		return nil
	}
	return m.metrics
}

// Close flushes pending audit events.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.audit.Close()
}

// Resolve determines the user of the current request from its cookies,
// renewing credentials when needed. Every write goes through jar. Resolve
// never fails: renewal problems purge the auth cookies and yield an
// anonymous [Locals].
func (m *Manager) Resolve(ctx context.Context, jar cookie.Store) *Locals {
	if m == nil || jar == nil {
		return newLocals(nil)
	}

	user := m.loadUser(ctx, jar)

	access, hasAccess := jar.Get(cookie.AccessName)
	refresh, hasRefresh := jar.Get(cookie.RefreshName)
	validRefresh := hasRefresh && jwt.WellFormed(refresh)

	if hasRefresh && !validRefresh {
		m.dropMalformedRefresh(ctx, jar)
		return newLocals(nil)
	}
	if !validRefresh {
		return newLocals(user)
	}

	renewed := false
	attempt := func(reason string) {
		current, ok := m.renew(ctx, jar, user, reason)
		if !ok {
			user = nil
			return
		}
		renewed = true
		if user == nil {
			user = current
		}
	}

	// Order matters: a failed first attempt purges the jar, which turns the
	// later checks into cookie-only no-ops.
	if !hasAccess {
		attempt("access_missing")
	}
	if !renewed && hasAccess {
		if remain, ok := jwt.Remaining(access, m.now()); ok && remain <= int64(m.config.Session.RenewWindow/time.Second) {
			attempt("access_expiring")
		}
	}
	if !renewed && user == nil {
		attempt("session_missing")
	}

	return newLocals(user)
}

// Renew exchanges the refresh cookie for a new credential pair and rewrites
// all three auth cookies. It reports false, without calling the backend,
// when no refresh cookie is present. A malformed refresh cookie or a failed
// backend call purges the auth cookies.
func (m *Manager) Renew(ctx context.Context, jar cookie.Store) bool {
	if m == nil || jar == nil {
		return false
	}
	_, ok := m.renew(ctx, jar, m.peekUser(jar), "interceptor")
	return ok
}

func (m *Manager) renew(ctx context.Context, jar cookie.Store, current *User, reason string) (*User, bool) {
	refresh, ok := jar.Get(cookie.RefreshName)
	if !ok || strings.TrimSpace(refresh) == "" {
		return nil, false
	}
	if !jwt.WellFormed(refresh) {
		m.dropMalformedRefresh(ctx, jar)
		return nil, false
	}

	resp, err := m.upstream.Refresh(ctx, refresh)
	if err != nil {
		m.metrics.Inc(MetricRefreshFailure)
		m.logger.WarnContext(ctx, "token refresh failed",
			"reason", reason,
			"status", upstream.StatusOf(err),
			"error", err,
			"request_id", RequestIDFromContext(ctx),
		)
		m.purge(jar)
		m.emitAudit(ctx, AuditRefreshFailure, false, userID(current), err, map[string]string{"reason": reason})
		return nil, false
	}

	next := resp.RefreshToken
	if next == "" {
		next = refresh
	}
	user := m.writeCredentials(jar, resp.AccessToken, next, current)

	m.metrics.Inc(MetricRefreshSuccess)
	m.logger.DebugContext(ctx, "token refreshed", "reason", reason, "request_id", RequestIDFromContext(ctx))
	m.emitAudit(ctx, AuditRefreshSuccess, true, userID(user), nil, map[string]string{"reason": reason})
	return user, true
}

// writeCredentials stores access, refresh and a session record in one pass.
// The record keeps current when it is valid, otherwise it is rebuilt from
// the access credential's identity claims. The returned user is the one now
// stored in the session cookie, nil when none could be built.
func (m *Manager) writeCredentials(jar cookie.Store, access, refresh string, current *User) *User {
	now := m.now()
	accessAge := jwt.Lifetime(access, m.config.Session.AccessFallback, now)
	refreshAge := jwt.Lifetime(refresh, m.config.Session.RefreshFallback, now)
	sessionAge := max(accessAge, refreshAge)

	user := current
	if user == nil || user.ID == "" {
		user = nil
		if id, ok := jwt.ReadIdentity(access); ok {
			user = &User{ID: id.Subject, Email: id.Email, Name: id.Name}
		}
	}

	if user != nil {
		encoded, err := session.Encode(session.Record{User: user})
		if err == nil && len(encoded) <= m.config.Session.MaxBytes {
			jar.Set(cookie.SessionName, encoded, m.policy.Options(sessionAge))
		} else {
			user = nil
		}
	}
	if user == nil {
		jar.Delete(cookie.SessionName, m.policy.Deletion())
	}

	jar.Set(cookie.AccessName, access, m.policy.Options(accessAge))
	jar.Set(cookie.RefreshName, refresh, m.policy.Options(refreshAge))
	return user
}

// loadUser decodes the session cookie, deleting it when it exceeds the cap.
// A malformed value yields nil and is left in place.
func (m *Manager) loadUser(ctx context.Context, jar cookie.Store) *User {
	raw, ok := jar.Get(cookie.SessionName)
	if !ok {
		return nil
	}

	rec, err := session.Decode(raw, m.config.Session.MaxBytes)
	switch {
	case errors.Is(err, session.ErrOversized):
		jar.Delete(cookie.SessionName, m.policy.Deletion())
		m.metrics.Inc(MetricSessionDiscardedOversize)
		m.logger.DebugContext(ctx, "session cookie discarded", "bytes", len(raw), "limit", m.config.Session.MaxBytes)
		m.emitAudit(ctx, AuditSessionOversize, false, "", err, nil)
		return nil
	case err != nil:
		return nil
	}
	return rec.User
}

func (m *Manager) peekUser(jar cookie.Store) *User {
	raw, ok := jar.Get(cookie.SessionName)
	if !ok {
		return nil
	}
	rec, err := session.Decode(raw, m.config.Session.MaxBytes)
	if err != nil {
		return nil
	}
	return rec.User
}

func (m *Manager) dropMalformedRefresh(ctx context.Context, jar cookie.Store) {
	m.metrics.Inc(MetricRefreshSkippedMalformed)
	m.logger.DebugContext(ctx, "malformed refresh cookie purged", "request_id", RequestIDFromContext(ctx))
	m.purge(jar)
	m.emitAudit(ctx, AuditRefreshMalformed, false, "", nil, nil)
}

func (m *Manager) purge(jar cookie.Store) {
	cookie.PurgeAuth(jar, m.policy)
	m.metrics.Inc(MetricSessionCookiePurged)
}

/*
====================================
LOGIN / LOGOUT
====================================
*/

// Login authenticates username and password against the backend and writes
// the three auth cookies. Backend failures are returned as *upstream.APIError.
func (m *Manager) Login(ctx context.Context, jar cookie.Store, username, password string) (*User, error) {
	if m == nil || jar == nil {
		return nil, ErrManagerNotReady
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	ip := ClientIPFromContext(ctx)

	if m.limiter != nil {
		if err := m.limiter.CheckLogin(ctx, username, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				m.metrics.Inc(MetricLoginRateLimited)
				m.emitAudit(ctx, AuditLoginRateLimited, false, username, err, nil)
				return nil, ErrLoginRateLimited
			}
			m.logger.WarnContext(ctx, "login throttle unavailable", "error", err)
		}
	}

	resp, err := m.upstream.Login(ctx, username, password)
	if err != nil {
		m.metrics.Inc(MetricLoginFailure)
		m.emitAudit(ctx, AuditLoginFailure, false, username, err, nil)
		if status := upstream.StatusOf(err); m.limiter != nil && status >= 400 && status < 500 {
			if lErr := m.limiter.IncrementLogin(ctx, username, ip); lErr != nil && !errors.Is(lErr, rate.ErrRateLimited) {
				m.logger.WarnContext(ctx, "login throttle unavailable", "error", lErr)
			}
		}
		return nil, err
	}

	if m.limiter != nil {
		if err := m.limiter.ResetLogin(ctx, username, ip); err != nil {
			m.logger.WarnContext(ctx, "login throttle reset failed", "error", err)
		}
	}

	user := &User{ID: username, Name: username}
	if resp.User != nil {
		user = &User{ID: resp.User.ID, Email: resp.User.Email, Name: resp.User.Name}
	}
	if user.Email == "" && strings.Contains(username, "@") {
		user.Email = username
	}
	stored := m.writeCredentials(jar, resp.AccessToken, resp.RefreshToken, user)

	m.metrics.Inc(MetricLoginSuccess)
	m.logger.InfoContext(ctx, "login succeeded", "user_id", user.ID, "request_id", RequestIDFromContext(ctx))
	m.emitAudit(ctx, AuditLoginSuccess, true, user.ID, nil, nil)
	if stored == nil {
		return user, nil
	}
	return stored, nil
}

// Logout invalidates the credentials upstream on a best-effort basis and
// always purges the auth cookies.
func (m *Manager) Logout(ctx context.Context, jar cookie.Store) {
	if m == nil || jar == nil {
		return
	}
	user := m.peekUser(jar)
	access, _ := jar.Get(cookie.AccessName)

	if err := m.upstream.Logout(ctx, access); err != nil {
		m.logger.WarnContext(ctx, "logout upstream call failed", "status", upstream.StatusOf(err), "error", err)
		m.emitAudit(ctx, AuditLogoutUpstreamErr, false, userID(user), err, nil)
	}

	m.purge(jar)
	m.metrics.Inc(MetricLogout)
	m.emitAudit(ctx, AuditLogout, true, userID(user), nil, nil)
}

func userID(u *User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

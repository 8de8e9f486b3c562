package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/cookie"
)

type clientIPContextKey struct{}
type requestIDContextKey struct{}
type requestSessionContextKey struct{}

// requestSession is the per-request state shared by the resolver, page
// handlers and the outbound interceptor.
type requestSession struct {
	jar    cookie.Store
	locals *Locals
}

// WithClientIP attaches the caller's IP address to ctx. The Manager uses it
// for login throttling and audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// ClientIPFromContext returns the IP attached by [WithClientIP].
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// WithRequestID attaches a correlation id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the id attached by [WithRequestID].
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// WithSession attaches the request cookie store and the resolved locals to ctx.
func WithSession(ctx context.Context, jar cookie.Store, locals *Locals) context.Context {
	return context.WithValue(ctx, requestSessionContextKey{}, &requestSession{jar: jar, locals: locals})
}

// LocalsFromContext returns the locals resolved for the current request.
func LocalsFromContext(ctx context.Context) (*Locals, bool) {
	rs := requestSessionFromContext(ctx)
	if rs == nil || rs.locals == nil {
		return nil, false
	}
	return rs.locals, true
}

// JarFromContext returns the cookie store of the current request.
func JarFromContext(ctx context.Context) (cookie.Store, bool) {
	rs := requestSessionFromContext(ctx)
	if rs == nil || rs.jar == nil {
		return nil, false
	}
	return rs.jar, true
}

// CurrentUser returns the authenticated user of the current request, or nil.
func CurrentUser(ctx context.Context) *User {
	locals, ok := LocalsFromContext(ctx)
	if !ok {
		return nil
	}
	return locals.User
}

func requestSessionFromContext(ctx context.Context) *requestSession {
	if ctx == nil {
		return nil
	}
	rs, _ := ctx.Value(requestSessionContextKey{}).(*requestSession)
	return rs
}

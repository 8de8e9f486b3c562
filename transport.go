package goSession

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/goSession/cookie"
	"github.com/MrEthical07/goSession/upstream"
)

// Transport is the outbound interceptor used by page code to call the backend
// on behalf of the current request.
//
// Requests to the backend base URL get the access cookie as a bearer
// credential. A 401 answer with a refresh cookie present triggers
// [Manager.Renew] and exactly one retry; the retry's response is returned
// as-is. Requests to other hosts, to the refresh endpoint, or without a
// resolved request session in their context pass through untouched.
type Transport struct {
	manager *Manager
	base    http.RoundTripper
	target  *url.URL
}

// Transport returns the interceptor over the manager's base transport.
func (m *Manager) Transport() *Transport {
	t := &Transport{manager: m, base: m.transport}
	if target, err := url.Parse(m.upstream.BaseURL()); err == nil && target.Host != "" {
		t.target = target
	}
	return t
}

// HTTPClient returns a client whose requests are intercepted. Build requests
// with the inbound request's context so the interceptor finds its cookies.
func (m *Manager) HTTPClient() *http.Client {
	return &http.Client{
		Transport: m.Transport(),
		Timeout:   m.config.Upstream.Timeout,
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if !t.intercepts(req) {
		return base.RoundTrip(req)
	}
	jar, ok := JarFromContext(req.Context())
	if !ok {
		return base.RoundTrip(req)
	}

	body, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	callerAuth := req.Header.Get("Authorization") != ""
	first := prepare(req, body)
	if !callerAuth {
		attachBearer(first, jar)
	}

	resp, err := base.RoundTrip(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	return t.renewAndRetry(req, body, jar, resp)
}

// renewAndRetry is the second half of attempt, renew, retry.
func (t *Transport) renewAndRetry(req *http.Request, body func() io.ReadCloser, jar cookie.Store, unauthorized *http.Response) (*http.Response, error) {
	m := t.manager
	if _, ok := jar.Get(cookie.RefreshName); !ok || !m.Renew(req.Context(), jar) {
		m.metrics.Inc(MetricInterceptUnauthorized)
		return unauthorized, nil
	}

	drain(unauthorized)

	retry := prepare(req, body)
	if access, ok := jar.Get(cookie.AccessName); ok {
		retry.Header.Set("Authorization", "Bearer "+access)
	}

	m.metrics.Inc(MetricInterceptRetry)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(retry)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		m.metrics.Inc(MetricInterceptUnauthorized)
	}
	return resp, err
}

func (t *Transport) intercepts(req *http.Request) bool {
	if t.manager == nil || t.target == nil || req.URL == nil {
		return false
	}
	if !strings.EqualFold(req.URL.Scheme, t.target.Scheme) || !strings.EqualFold(req.URL.Host, t.target.Host) {
		return false
	}
	basePath := strings.TrimSuffix(t.target.Path, "/")
	if basePath != "" && req.URL.Path != basePath && !strings.HasPrefix(req.URL.Path, basePath+"/") {
		return false
	}
	return !strings.Contains(req.URL.Path, upstream.RefreshPath)
}

// replayableBody returns a constructor for fresh copies of the request body,
// or nil when the request has none.
func replayableBody(req *http.Request) (func() io.ReadCloser, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		_ = req.Body.Close()
		return func() io.ReadCloser {
			rc, err := req.GetBody()
			if err != nil {
				return io.NopCloser(errReader{err})
			}
			return rc
		}, nil
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	return func() io.ReadCloser { return io.NopCloser(bytes.NewReader(data)) }, nil
}

func prepare(req *http.Request, body func() io.ReadCloser) *http.Request {
	out := req.Clone(req.Context())
	if body != nil {
		out.Body = body()
		out.GetBody = func() (io.ReadCloser, error) { return body(), nil }
	}
	return out
}

func attachBearer(req *http.Request, jar cookie.Store) {
	if access, ok := jar.Get(cookie.AccessName); ok {
		req.Header.Set("Authorization", "Bearer "+access)
	}
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

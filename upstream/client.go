package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	LoginPath   = "/api/v1/auth/login"
	RefreshPath = "/api/v1/auth/refresh"
	LogoutPath  = "/api/v1/auth/logout"

	tracerName = "github.com/MrEthical07/goSession/upstream"

	// maxErrorBody bounds how much of a failed response is read for its message.
	maxErrorBody = 64 << 10
)

// Client talks to the backend authority.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
	observe func(op string, status int, elapsed time.Duration)
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for backend calls.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTracer sets the tracer used for per-call spans.
func WithTracer(t trace.Tracer) Option {
	return func(cl *Client) {
		if t != nil {
			cl.tracer = t
		}
	}
}

// WithObserver registers a callback invoked after every call with the
// operation name, the response status (0 on transport failure) and the latency.
func WithObserver(fn func(op string, status int, elapsed time.Duration)) Option {
	return func(cl *Client) {
		cl.observe = fn
	}
}

// New returns a client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges username and password for a credential pair.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	var env Envelope[TokenPair]
	err := c.call(ctx, call{
		op:       "login",
		network:  "login",
		fallback: "Login failed",
		method:   http.MethodPost,
		path:     LoginPath,
		body:     credentials{Username: username, Password: password},
		out:      &env,
	})
	if err != nil {
		return nil, err
	}
	if env.Data.AccessToken == "" {
		return nil, &APIError{Status: http.StatusBadGateway, Message: "Login response missing access token"}
	}

	refresh := env.Data.AccessToken
	if env.Data.RefreshToken != nil {
		refresh = *env.Data.RefreshToken
	}
	return &AuthResponse{
		AccessToken:  env.Data.AccessToken,
		RefreshToken: refresh,
		User: &UserInfo{
			ID:       username,
			Username: username,
			Name:     username,
		},
	}, nil
}

// Refresh requests a new access credential. refreshToken is sent as a bearer
// when non-empty. The rotated refresh credential is preferred over the caller's.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var env Envelope[TokenPair]
	err := c.call(ctx, call{
		op:       "refresh",
		network:  "token refresh",
		fallback: "Token refresh failed",
		method:   http.MethodGet,
		path:     RefreshPath,
		bearer:   refreshToken,
		out:      &env,
	})
	if err != nil {
		return nil, err
	}
	if env.Data.AccessToken == "" {
		return nil, &APIError{Status: http.StatusBadGateway, Message: "Refresh response missing access token"}
	}

	refresh := refreshToken
	if env.Data.RefreshToken != nil {
		refresh = *env.Data.RefreshToken
	}
	return &AuthResponse{AccessToken: env.Data.AccessToken, RefreshToken: refresh}, nil
}

// Logout invalidates the credentials server-side.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.call(ctx, call{
		op:       "logout",
		network:  "logout",
		fallback: "Logout failed",
		method:   http.MethodPost,
		path:     LogoutPath,
		bearer:   accessToken,
	})
}

// Do performs an arbitrary envelope call against the backend. body, when
// non-nil, is encoded as JSON; out, when non-nil, receives the decoded response.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	return c.call(ctx, call{
		op:       "request",
		network:  "request",
		fallback: "Request failed",
		method:   method,
		path:     path,
		body:     body,
		out:      out,
	})
}

type call struct {
	op       string
	network  string
	fallback string
	method   string
	path     string
	bearer   string
	body     any
	out      any
}

func (c *Client) call(ctx context.Context, in call) (err error) {
	ctx, span := c.tracer.Start(ctx, "upstream."+in.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", in.method),
			attribute.String("http.route", in.path),
		),
	)
	start := time.Now()
	status := 0
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if status != 0 {
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
		span.End()
		if c.observe != nil {
			c.observe(in.op, status, time.Since(start))
		}
	}()

	var reader io.Reader
	if in.body != nil {
		raw, mErr := json.Marshal(in.body)
		if mErr != nil {
			return &APIError{Status: http.StatusInternalServerError, Message: in.fallback, Err: mErr}
		}
		reader = bytes.NewReader(raw)
	}

	req, rErr := http.NewRequestWithContext(ctx, in.method, c.baseURL+in.path, reader)
	if rErr != nil {
		return networkError(in.network, rErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if in.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+in.bearer)
	}

	resp, dErr := c.http.Do(req)
	if dErr != nil {
		return networkError(in.network, dErr)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp.Body, in.fallback)}
	}

	if in.out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}
	if dErr := json.NewDecoder(resp.Body).Decode(in.out); dErr != nil {
		if errors.Is(dErr, io.EOF) {
			dErr = fmt.Errorf("empty response body: %w", dErr)
		}
		return &APIError{Status: http.StatusBadGateway, Message: in.fallback, Err: dErr}
	}
	return nil
}

func errorMessage(body io.Reader, fallback string) string {
	var parsed errorBody
	if err := json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&parsed); err != nil {
		return fallback
	}
	if parsed.Message == "" {
		return fallback
	}
	return parsed.Message
}

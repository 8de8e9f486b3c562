package upstreamtest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	LoginPath   = "/api/v1/auth/login"
	RefreshPath = "/api/v1/auth/refresh"
	LogoutPath  = "/api/v1/auth/logout"
	ProfilePath = "/api/v1/profile"

	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Backend is a fake authority. All methods are safe for concurrent use.
type Backend struct {
	mu         sync.Mutex
	secret     []byte
	users      map[string]string
	accessTTL  time.Duration
	refreshTTL time.Duration
	rotate     bool
	omit       bool
	refreshErr int
	now        func() time.Time
	revoked    map[string]bool
	calls      map[string]int
}

// Option configures a [Backend].
type Option func(*Backend)

// WithUser registers a username/password pair.
func WithUser(username, password string) Option {
	return func(b *Backend) { b.users[username] = password }
}

func WithAccessTTL(d time.Duration) Option {
	return func(b *Backend) { b.accessTTL = d }
}

func WithRefreshTTL(d time.Duration) Option {
	return func(b *Backend) { b.refreshTTL = d }
}

// WithRotation makes refresh return a new refresh credential.
func WithRotation() Option {
	return func(b *Backend) { b.rotate = true }
}

// WithoutRefreshToken makes login omit the refresh credential.
func WithoutRefreshToken() Option {
	return func(b *Backend) { b.omit = true }
}

func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

func WithSecret(secret []byte) Option {
	return func(b *Backend) { b.secret = secret }
}

// New returns a backend with default TTLs of 5 minutes (access) and 24 hours (refresh).
func New(opts ...Option) *Backend {
	b := &Backend{
		secret:     []byte("upstreamtest-secret-0123456789abcdef"),
		users:      make(map[string]string),
		accessTTL:  5 * time.Minute,
		refreshTTL: 24 * time.Hour,
		now:        time.Now,
		revoked:    make(map[string]bool),
		calls:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start serves the backend on a loopback listener. Callers close the server.
func (b *Backend) Start() *httptest.Server {
	return httptest.NewServer(b.Handler())
}

// Handler returns the backend routes.
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(b.count)
	r.Post(LoginPath, b.handleLogin)
	r.Get(RefreshPath, b.handleRefresh)
	r.Post(LogoutPath, b.handleLogout)
	r.Get(ProfilePath, b.handleProfile)
	return r
}

// Calls returns how many requests path has received.
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// FailRefresh makes every refresh answer status until called with 0.
func (b *Backend) FailRefresh(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshErr = status
}

// IssueAccess signs an access credential for username living ttl.
func (b *Backend) IssueAccess(username string, ttl time.Duration) string {
	return b.issue(username, typeAccess, ttl)
}

// IssueRefresh signs a refresh credential for username living ttl.
func (b *Backend) IssueRefresh(username string, ttl time.Duration) string {
	return b.issue(username, typeRefresh, ttl)
}

// UserUUID is the stable user_uuid claim issued for username.
func UserUUID(username string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(username)).String()
}

func (b *Backend) issue(username, typ string, ttl time.Duration) string {
	b.mu.Lock()
	secret := b.secret
	now := b.now()
	b.mu.Unlock()

	claims := jwt.MapClaims{
		"user_uuid":  UserUUID(username),
		"token_uuid": uuid.NewString(),
		"typ":        typ,
		"name":       username,
		"iat":        now.Unix(),
		"nbf":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	if strings.Contains(username, "@") {
		claims["email"] = username
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		panic("upstreamtest: sign: " + err.Error())
	}
	return signed
}

func (b *Backend) verify(token, typ string) (jwt.MapClaims, error) {
	b.mu.Lock()
	secret := b.secret
	now := b.now
	b.mu.Unlock()

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims["typ"] != typ {
		return nil, errors.New("wrong token type")
	}
	id, _ := claims["token_uuid"].(string)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revoked[id] {
		return nil, errors.New("token revoked")
	}
	return claims, nil
}

func (b *Backend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.URL.Path]++
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	want, ok := b.users[req.Username]
	omit := b.omit
	accessTTL, refreshTTL := b.accessTTL, b.refreshTTL
	b.mu.Unlock()

	if !ok || want != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	data := map[string]string{"access_token": b.IssueAccess(req.Username, accessTTL)}
	if !omit {
		data["refresh_token"] = b.IssueRefresh(req.Username, refreshTTL)
	}
	writeData(w, http.StatusOK, "Login successful", data)
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	forced := b.refreshErr
	rotate := b.rotate
	accessTTL, refreshTTL := b.accessTTL, b.refreshTTL
	b.mu.Unlock()

	if forced != 0 {
		writeError(w, forced, "Refresh unavailable")
		return
	}

	token, ok := bearer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing refresh token")
		return
	}
	claims, err := b.verify(token, typeRefresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	username, _ := claims["name"].(string)

	data := map[string]string{"access_token": b.IssueAccess(username, accessTTL)}
	if rotate {
		b.revoke(claims)
		data["refresh_token"] = b.IssueRefresh(username, refreshTTL)
	}
	writeData(w, http.StatusOK, "Token refreshed", data)
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := bearer(r); ok {
		if claims, err := b.verify(token, typeAccess); err == nil {
			b.revoke(claims)
		}
	}
	writeData(w, http.StatusOK, "Logged out", nil)
}

func (b *Backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	token, ok := bearer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing access token")
		return
	}
	claims, err := b.verify(token, typeAccess)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid access token")
		return
	}
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	writeData(w, http.StatusOK, "ok", map[string]string{
		"id":    claims["user_uuid"].(string),
		"name":  name,
		"email": email,
	})
}

func (b *Backend) revoke(claims jwt.MapClaims) {
	id, _ := claims["token_uuid"].(string)
	b.mu.Lock()
	b.revoked[id] = true
	b.mu.Unlock()
}

func bearer(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	v := r.Header.Get("Authorization")
	if !strings.HasPrefix(v, prefix) || len(v) == len(prefix) {
		return "", false
	}
	return v[len(prefix):], true
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, map[string]any{
		"code":    status,
		"status":  "success",
		"message": message,
		"data":    data,
		"errors":  nil,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"code":    status,
		"status":  "error",
		"message": message,
		"data":    nil,
		"errors":  nil,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

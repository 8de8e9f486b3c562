package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/upstream"
)

// profilePath is the backend endpoint the app shell loads for the signed-in user.
const profilePath = "/api/v1/profile"

type handlers struct {
	manager *goSession.Manager
	logger  *slog.Logger
}

type messageResponse struct {
	Message string `json:"message"`
}

type shellResponse struct {
	User    *goSession.User `json:"user"`
	Path    string          `json:"path"`
	Profile json.RawMessage `json:"profile,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// safeRedirect accepts only a local absolute path and falls back to "/".
func safeRedirect(from string) string {
	if from == "" || !strings.HasPrefix(from, "/") {
		return "/"
	}
	if strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		return "/"
	}
	if strings.ContainsAny(from, "\r\n") {
		return "/"
	}
	return from
}

func (h *handlers) loginPage(w http.ResponseWriter, r *http.Request) {
	if goSession.CurrentUser(r.Context()) != nil {
		http.Redirect(w, r, safeRedirect(r.URL.Query().Get("from")), http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Sign in required"})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid form body"})
		return
	}
	jar, ok := goSession.JarFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Session unavailable"})
		return
	}

	_, err := h.manager.Login(r.Context(), jar, r.PostForm.Get("email"), r.PostForm.Get("password"))
	if err != nil {
		status, message := loginFailure(err)
		writeJSON(w, status, messageResponse{Message: message})
		return
	}

	http.Redirect(w, r, safeRedirect(r.URL.Query().Get("from")), http.StatusSeeOther)
}

func loginFailure(err error) (int, string) {
	var apiErr *upstream.APIError
	switch {
	case errors.Is(err, goSession.ErrMissingCredentials):
		return http.StatusBadRequest, "Username and password are required"
	case errors.Is(err, goSession.ErrLoginRateLimited):
		return http.StatusTooManyRequests, "Too many login attempts. Please try again later."
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return http.StatusBadRequest, apiErr.Message
	default:
		return http.StatusBadRequest, "Login failed. Please try again."
	}
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if jar, ok := goSession.JarFromContext(r.Context()); ok {
		h.manager.Logout(r.Context(), jar)
	}
	http.Redirect(w, r, h.manager.Config().Gate.LoginPath, http.StatusSeeOther)
}

// appShell stands in for page rendering: it loads the profile through the
// intercepting client and returns it alongside the resolved user.
func (h *handlers) appShell(w http.ResponseWriter, r *http.Request) {
	out := shellResponse{
		User: goSession.CurrentUser(r.Context()),
		Path: r.URL.Path,
	}

	profile, err := h.fetchProfile(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "profile load failed",
			"error", err,
			"request_id", goSession.RequestIDFromContext(r.Context()),
		)
		out.Error = err.Error()
	} else {
		out.Profile = profile
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) fetchProfile(r *http.Request) (json.RawMessage, error) {
	target := h.manager.Upstream().BaseURL() + profilePath
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.manager.HTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("profile status %d", resp.StatusCode)
	}

	var env upstream.Envelope[json.RawMessage]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return env.Data, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

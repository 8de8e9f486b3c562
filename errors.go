package goSession

import "errors"

var (
	// ErrLoginRateLimited is returned by Login when the throttle budget is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrMissingCredentials is returned by Login when username or password is empty.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrManagerNotReady is returned when a nil or unbuilt Manager is used.
	ErrManagerNotReady = errors.New("session manager not ready")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid config")
)

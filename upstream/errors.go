package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is returned for every failed backend call.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %d: %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Unauthorized reports whether the backend rejected the credentials.
func (e *APIError) Unauthorized() bool {
	return e != nil && e.Status == http.StatusUnauthorized
}

// StatusOf returns the status carried by err, or 0 when err is not an [*APIError].
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func networkError(op string, err error) *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Message: "Network error during " + op,
		Err:     err,
	}
}

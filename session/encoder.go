package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrOversized is returned when a cookie value exceeds the size cap.
	ErrOversized = errors.New("session cookie oversized")
	// ErrMalformed is returned when a cookie value does not decode into a valid record.
	ErrMalformed = errors.New("session cookie malformed")
)

// Encode serializes r into a cookie-safe string.
func Encode(r Record) (string, error) {
	if !r.Valid() {
		return "", ErrMalformed
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a cookie value produced by [Encode]. maxBytes <= 0 selects
// [DefaultMaxBytes].
func Decode(raw string, maxBytes int) (*Record, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(raw) > maxBytes {
		return nil, ErrOversized
	}
	if raw == "" {
		return nil, ErrMalformed
	}

	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrMalformed
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, ErrMalformed
	}
	if !r.Valid() {
		return nil, ErrMalformed
	}
	return &r, nil
}

package jwt

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var wellFormed = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)

var segmentParser = gjwt.NewParser(gjwt.WithPaddingAllowed())

// MaxLifetime caps cookie lifetimes derived from exp claims. Browsers clamp Max-Age to
// 400 days anyway, and larger remaining values would overflow a time.Duration.
const MaxLifetime = 400 * 24 * time.Hour

// Identity is the subset of identity claims the frontend can use to rebuild a session user.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// WellFormed reports whether token has the three dot-delimited base64url segments of a
// compact JWS. It is the only check applied before a refresh credential is sent upstream.
func WellFormed(token string) bool {
	return wellFormed.MatchString(token)
}

// ExpiresAt returns the numeric exp claim of token in UNIX seconds.
func ExpiresAt(token string) (int64, bool) {
	claims, ok := payload(token)
	if !ok {
		return 0, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}
	return exp.Unix(), true
}

// SecondsUntil returns the seconds between now and exp, floored at zero.
func SecondsUntil(exp int64, now time.Time) int64 {
	remain := exp - now.Unix()
	if remain < 0 {
		return 0
	}
	return remain
}

// Remaining returns the remaining validity of token, or false when it carries no readable
// exp claim.
func Remaining(token string, now time.Time) (int64, bool) {
	exp, ok := ExpiresAt(token)
	if !ok {
		return 0, false
	}
	return SecondsUntil(exp, now), true
}

// Lifetime is the cookie lifetime for token: its remaining validity when readable, fallback
// otherwise. The result never exceeds MaxLifetime.
func Lifetime(token string, fallback time.Duration, now time.Time) time.Duration {
	remain, ok := Remaining(token, now)
	if !ok {
		return fallback
	}
	if remain > int64(MaxLifetime/time.Second) {
		return MaxLifetime
	}
	return time.Duration(remain) * time.Second
}

// ReadIdentity extracts identity claims from token. The upstream issues user_uuid; sub and
// uid are accepted for issuers that follow the registered claim names.
func ReadIdentity(token string) (Identity, bool) {
	claims, ok := payload(token)
	if !ok {
		return Identity{}, false
	}

	var id Identity
	for _, key := range []string{"user_uuid", "sub", "uid"} {
		if v, ok := claims[key].(string); ok && strings.TrimSpace(v) != "" {
			id.Subject = v
			break
		}
	}
	if id.Subject == "" {
		return Identity{}, false
	}
	id.Email, _ = claims["email"].(string)
	id.Name, _ = claims["name"].(string)
	return id, true
}

func payload(token string) (gjwt.MapClaims, bool) {
	if token == "" {
		return nil, false
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[1] == "" {
		return nil, false
	}

	raw, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, false
	}

	var claims gjwt.MapClaims
	if err := json.Unmarshal(raw, &claims); err != nil || claims == nil {
		return nil, false
	}
	return claims, true
}

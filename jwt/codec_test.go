package jwt

import (
	"encoding/base64"
	"strconv"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func signHS256(t *testing.T, claims gjwt.MapClaims) string {
	t.Helper()
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("codec-test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func rawToken(payload string) string {
	return "eyJhbGciOiJIUzI1NiJ9." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".sig"
}

func TestExpiresAtReadsNumericClaim(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute).Unix()
	token := signHS256(t, gjwt.MapClaims{"user_uuid": "u1", "exp": exp})

	got, ok := ExpiresAt(token)
	if !ok {
		t.Fatal("expected exp claim")
	}
	if got != exp {
		t.Fatalf("expected %d, got %d", exp, got)
	}
}

func TestExpiresAtMalformedInputs(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"one segment":    "abc",
		"two segments":   "abc.def",
		"four segments":  "a.b.c.d",
		"bad base64":     "a.!!!.c",
		"not json":       rawToken("hello"),
		"json array":     rawToken(`[1,2,3]`),
		"json null":      rawToken(`null`),
		"string exp":     rawToken(`{"exp":"1700000000"}`),
		"missing exp":    rawToken(`{"sub":"x"}`),
		"bool exp":       rawToken(`{"exp":true}`),
		"empty payload":  "a..c",
		"bad_token text": "bad_token",
	}
	for name, token := range cases {
		if _, ok := ExpiresAt(token); ok {
			t.Errorf("%s: expected no exp claim for %q", name, token)
		}
	}
}

func TestExpiresAtAcceptsPaddedSegment(t *testing.T) {
	token := "h." + base64.URLEncoding.EncodeToString([]byte(`{"exp": 1700000000}`)) + ".s"
	got, ok := ExpiresAt(token)
	if !ok || got != 1700000000 {
		t.Fatalf("expected padded payload to decode, got %d %v", got, ok)
	}
}

func TestSecondsUntilFloorsAtZero(t *testing.T) {
	now := time.Unix(1_000, 0)
	if got := SecondsUntil(900, now); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := SecondsUntil(1_060, now); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
}

func TestRemainingWithoutClaim(t *testing.T) {
	if _, ok := Remaining("not-a-token", time.Now()); ok {
		t.Fatal("expected no remaining validity")
	}
}

func TestLifetimeUsesClaimOrFallback(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	token := rawToken(`{"exp":1700000300}`)

	if got := Lifetime(token, 15*time.Minute, now); got != 300*time.Second {
		t.Fatalf("expected 300s, got %v", got)
	}
	if got := Lifetime("opaque", 15*time.Minute, now); got != 15*time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	expired := rawToken(`{"exp":1600000000}`)
	if got := Lifetime(expired, time.Hour, now); got != 0 {
		t.Fatalf("expected 0 for expired token, got %v", got)
	}
}

func TestLifetimeClampsFarFutureExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	token := rawToken(`{"exp":253402300799}`)

	got := Lifetime(token, time.Minute, now)
	if got != MaxLifetime {
		t.Fatalf("expected %v, got %v", MaxLifetime, got)
	}
	if got <= 0 {
		t.Fatalf("lifetime must stay positive, got %v", got)
	}

	edge := rawToken(`{"exp":` + strconv.FormatInt(now.Unix()+int64(MaxLifetime/time.Second), 10) + `}`)
	if got := Lifetime(edge, time.Minute, now); got != MaxLifetime {
		t.Fatalf("expected exact cap at boundary, got %v", got)
	}
}

func TestWellFormed(t *testing.T) {
	valid := []string{"a.b.c", "eyJ-_x.eyJ_-y.sig-_", signHS256(t, gjwt.MapClaims{"sub": "x"})}
	for _, v := range valid {
		if !WellFormed(v) {
			t.Errorf("expected %q to be well formed", v)
		}
	}
	invalid := []string{"", "bad_token", "a.b", "a.b.c.d", "a..c", "a.b.c=", "a b.c.d", "a+b.c.d", " a.b.c"}
	for _, v := range invalid {
		if WellFormed(v) {
			t.Errorf("expected %q to be rejected", v)
		}
	}
}

func TestReadIdentityPrefersUserUUID(t *testing.T) {
	token := signHS256(t, gjwt.MapClaims{
		"user_uuid": "5b3c",
		"sub":       "ignored",
		"email":     "owner@example.com",
		"name":      "Owner",
	})
	id, ok := ReadIdentity(token)
	if !ok {
		t.Fatal("expected identity")
	}
	if id.Subject != "5b3c" || id.Email != "owner@example.com" || id.Name != "Owner" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestReadIdentityFallsBackToSub(t *testing.T) {
	id, ok := ReadIdentity(rawToken(`{"sub":"alice"}`))
	if !ok || id.Subject != "alice" {
		t.Fatalf("expected sub fallback, got %+v %v", id, ok)
	}
	if _, ok := ReadIdentity(rawToken(`{"email":"x@y"}`)); ok {
		t.Fatal("expected no identity without a subject claim")
	}
	if _, ok := ReadIdentity(rawToken(`{"sub":42}`)); ok {
		t.Fatal("expected numeric sub to be ignored")
	}
}

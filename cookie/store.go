package cookie

import (
	"net/http"
	"time"
)

// Names of the three auth cookies.
const (
	SessionName = "session"
	AccessName  = "access_token"
	RefreshName = "refresh_token"
)

// AuthNames lists the cookies purged together when a session is dropped.
var AuthNames = []string{SessionName, AccessName, RefreshName}

// Options carries the attributes of a cookie write.
type Options struct {
	Path     string
	HTTPOnly bool
	SameSite http.SameSite
	Secure   bool
	MaxAge   time.Duration
}

// Store is the cookie boundary the session manager reads from and writes to.
type Store interface {
	Get(name string) (string, bool)
	Set(name, value string, opts Options)
	Delete(name string, opts Options)
}

// Policy builds the options applied to every auth cookie.
type Policy struct {
	Secure bool
}

// Options returns the auth cookie options for a cookie living maxAge.
func (p Policy) Options(maxAge time.Duration) Options {
	return Options{
		Path:     "/",
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   p.Secure,
		MaxAge:   maxAge,
	}
}

// Deletion returns the options used to expire an auth cookie.
func (p Policy) Deletion() Options {
	return Options{Path: "/", HTTPOnly: true, SameSite: http.SameSiteLaxMode, Secure: p.Secure}
}

// PurgeAuth deletes the session, access and refresh cookies.
func PurgeAuth(s Store, p Policy) {
	for _, name := range AuthNames {
		s.Delete(name, p.Deletion())
	}
}

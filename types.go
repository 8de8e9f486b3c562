package goSession

import (
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/upstream"
)

// User is the authenticated identity stored in the session cookie.
type User = session.User

// AuthResponse is the normalized result of an upstream login or refresh.
type AuthResponse = upstream.AuthResponse

// Locals is what a resolved request exposes to handlers.
//
// User is nil for anonymous requests. GetSession returns the same value and
// exists for handlers that prefer a lazy accessor.
type Locals struct {
	User       *User
	GetSession func() *User
}

func newLocals(user *User) *Locals {
	l := &Locals{User: user}
	l.GetSession = func() *User { return l.User }
	return l
}

// Authenticated reports whether the request carries a user.
func (l *Locals) Authenticated() bool {
	return l != nil && l.User != nil
}

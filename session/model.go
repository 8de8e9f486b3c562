package session

// DefaultMaxBytes is the largest session cookie value accepted before it is discarded.
const DefaultMaxBytes = 2048

// User is the authenticated user view surfaced to request handlers.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Record is the payload of the session cookie.
type Record struct {
	User *User `json:"user"`
}

// Valid reports whether the record carries a user with an id.
func (r *Record) Valid() bool {
	return r != nil && r.User != nil && r.User.ID != ""
}

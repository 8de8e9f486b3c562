package cookie

import (
	"net/http"
	"sync"
)

type pending struct {
	value   string
	opts    Options
	deleted bool
}

// Jar is a request-scoped [Store].
//
// A Jar is used by one request, but page code may call the backend from several
// goroutines, so access is serialized.
type Jar struct {
	mu       sync.Mutex
	incoming map[string]string
	writes   map[string]pending
	order    []string
}

// NewJar creates a Jar over the cookies of r.
func NewJar(r *http.Request) *Jar {
	j := &Jar{
		incoming: make(map[string]string),
		writes:   make(map[string]pending),
	}
	if r == nil {
		return j
	}
	for _, c := range r.Cookies() {
		if _, seen := j.incoming[c.Name]; seen {
			continue
		}
		j.incoming[c.Name] = c.Value
	}
	return j
}

// Get returns the current value of name, including writes made during this request.
func (j *Jar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if w, ok := j.writes[name]; ok {
		if w.deleted {
			return "", false
		}
		return w.value, true
	}
	v, ok := j.incoming[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Set records a cookie write.
func (j *Jar) Set(name, value string, opts Options) {
	j.record(name, pending{value: value, opts: opts})
}

// Delete records a cookie expiry.
func (j *Jar) Delete(name string, opts Options) {
	j.record(name, pending{opts: opts, deleted: true})
}

func (j *Jar) record(name string, p pending) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.writes[name]; !ok {
		j.order = append(j.order, name)
	}
	j.writes[name] = p
}

// Written reports whether name was set or deleted during this request.
func (j *Jar) Written(name string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.writes[name]
	return ok
}

// Cookies returns the pending writes as http cookies in first-write order.
func (j *Jar) Cookies() []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]*http.Cookie, 0, len(j.order))
	for _, name := range j.order {
		w := j.writes[name]
		c := &http.Cookie{
			Name:     name,
			Value:    w.value,
			Path:     w.opts.Path,
			HttpOnly: w.opts.HTTPOnly,
			SameSite: w.opts.SameSite,
			Secure:   w.opts.Secure,
		}
		if c.Path == "" {
			c.Path = "/"
		}
		switch {
		case w.deleted:
			c.Value = ""
			c.MaxAge = -1
		case w.opts.MaxAge > 0:
			c.MaxAge = int(w.opts.MaxAge.Seconds())
			if c.MaxAge == 0 {
				c.MaxAge = 1
			}
		default:
			// A zero lifetime means the credential is already expired.
			c.MaxAge = -1
		}
		out = append(out, c)
	}
	return out
}

// Apply writes one Set-Cookie header per pending write into h.
func (j *Jar) Apply(h http.Header) {
	for _, c := range j.Cookies() {
		if v := c.String(); v != "" {
			h.Add("Set-Cookie", v)
		}
	}
}

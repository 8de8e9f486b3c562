package session

import "testing"

// FuzzDecode exercises the session cookie decoder with arbitrary inputs.
// Goal: no panics; a successful decode always yields a user with an id.
func FuzzDecode(f *testing.F) {
	if raw, err := Encode(Record{User: &User{ID: "fuzz", Email: "f@example.com"}}); err == nil {
		f.Add(raw)
	}
	f.Add("")
	f.Add("eyJ1c2VyIjpudWxsfQ")
	f.Add("e30")
	f.Add("!!!")

	f.Fuzz(func(t *testing.T, raw string) {
		r, err := Decode(raw, 0)
		if err != nil {
			return
		}
		if !r.Valid() {
			t.Fatalf("decoded record without user id: %+v", r)
		}
		if _, err := Encode(*r); err != nil {
			t.Fatalf("re-encode failed: %v", err)
		}
	})
}

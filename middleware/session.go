package middleware

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/cookie"
)

// Session resolves the caller once per request and makes the result
// available through [goSession.LocalsFromContext]. Cookie writes made by the
// resolver, by handlers and by the outbound interceptor are applied to the
// response when headers are first written, or after the handler returns.
func Session(m *goSession.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			jar := cookie.NewJar(r)
			locals := m.Resolve(r.Context(), jar)

			ctx := goSession.WithSession(r.Context(), jar, locals)
			cw := cookie.NewResponseWriter(w, jar)
			next.ServeHTTP(cw, r.WithContext(ctx))
			cw.Commit()
		})
	}
}

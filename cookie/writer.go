package cookie

import (
	"net/http"
	"sync"
)

// ResponseWriter applies a Jar's pending writes right before the response headers are
// committed.
type ResponseWriter struct {
	http.ResponseWriter
	jar  *Jar
	once sync.Once
}

// NewResponseWriter wraps w so jar is applied on the first WriteHeader or Write.
func NewResponseWriter(w http.ResponseWriter, jar *Jar) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, jar: jar}
}

// Commit applies the jar if headers have not been written yet. Middleware calls it after the
// wrapped handler returns, for handlers that never write a body.
func (w *ResponseWriter) Commit() {
	w.once.Do(func() {
		if w.jar != nil {
			w.jar.Apply(w.ResponseWriter.Header())
		}
	})
}

func (w *ResponseWriter) WriteHeader(status int) {
	w.Commit()
	w.ResponseWriter.WriteHeader(status)
}

func (w *ResponseWriter) Write(b []byte) (int, error) {
	w.Commit()
	return w.ResponseWriter.Write(b)
}

func (w *ResponseWriter) Flush() {
	w.Commit()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

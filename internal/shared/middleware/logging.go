package middleware

import (
	"log"
	"net/http"
	"time"
)

// responseWriter records the status code and response size as they pass
// through, so Logging and Tracing can report them after the handler returns.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w}
}

// Status returns the recorded status code, defaulting to 200 when the
// handler never called WriteHeader explicitly.
func (rw *responseWriter) Status() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(p []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(p)
	rw.bytes += n
	return n, err
}

// Logging writes one line per request: method, path, status, response size,
// caller address and wall time.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := wrapResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		log.Printf("%s %s %d %dB %s %s",
			r.Method,
			r.URL.Path,
			wrapped.Status(),
			wrapped.bytes,
			r.RemoteAddr,
			time.Since(start).Round(time.Microsecond),
		)
	})
}

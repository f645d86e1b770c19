package middleware

import (
	"net/http"
	"time"

	"github.com/go-pkgz/lgr"
)

// Logging creates a middleware for request logging.
func Logging(logger lgr.L) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapper, r)
			logger.Logf("INFO %s %s %d %v %s", r.Method, r.URL.Path, wrapper.statusCode, time.Since(start), r.RemoteAddr)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

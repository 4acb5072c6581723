package middleware

import (
	"log"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Logging writes one line per request with status, size and latency.
func Logging(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Printf("%s %s -> %d (%dB) in %s cid=%s device=%s",
				r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start),
				GetCorrelationID(r.Context()), ww.Header().Get(HeaderDeviceID))
		})
	}
}

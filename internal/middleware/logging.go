package middleware

import (
	"net/http"
	"time"

	"github.com/ranitraj/instaLens/internal/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogger logs every API request with its status and duration, and turns a handler
// panic into a 500.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			defer func() {
				if rec := recover(); rec != nil {
					log.Error("Panic serving %s %s: %v", r.Method, r.URL.Path, rec)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			if isUpgrade(r) {
				next.ServeHTTP(w, r)
				log.Debug("%s %s closed after %v", r.Method, r.URL.Path, time.Since(start))
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusInternalServerError {
				log.Warning("%s %s -> %d (%v)", r.Method, r.URL.Path, rec.status, time.Since(start))
			} else {
				log.Debug("%s %s -> %d (%v)", r.Method, r.URL.Path, rec.status, time.Since(start))
			}
		})
	}
}

// isUpgrade reports whether r asks for a websocket; those need the raw ResponseWriter.
func isUpgrade(r *http.Request) bool {
	return r.Header.Get("Upgrade") != ""
}

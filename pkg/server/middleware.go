package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/usegrapevine/grapevine/pkg/observability"
)

// statusWriter captures the status code for the request log and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// requestMetrics times every request and records it keyed by the matched
// route pattern, so path parameters never blow up label cardinality.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}
		if metrics := observability.GetGlobalMetrics(); metrics != nil {
			metrics.RecordHTTPRequest(r.Context(), r.Method, path, sw.status, duration)
		}
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", duration)
	})
}

// apiKeyAuth rejects requests whose X-API-Key header matches none of the
// configured keys. An empty key list disables the check entirely.
func apiKeyAuth(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := []byte(r.Header.Get("X-API-Key"))
			for _, key := range keys {
				if subtle.ConstantTimeCompare(presented, []byte(key)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondError(w, http.StatusUnauthorized, "invalid or missing API key")
		})
	}
}

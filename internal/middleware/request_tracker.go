package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/PortNumber53/trialgate/internal/metrics"
)

// RequestTracker logs every request and feeds the HTTP request metrics.
type RequestTracker struct {
	logger zerolog.Logger
}

// NewRequestTracker creates a new request tracker middleware
func NewRequestTracker(logger zerolog.Logger) *RequestTracker {
	return &RequestTracker{logger: logger}
}

// Middleware returns an HTTP middleware that tracks request metrics
func (rt *RequestTracker) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			elapsed := time.Since(start)
			route := routePattern(r)
			metrics.RecordHTTPRequest(r.Method, route, rw.statusCode, elapsed)

			event := rt.logger.Info()
			if rw.statusCode >= http.StatusInternalServerError {
				event = rt.logger.Error()
			}
			event.
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Int("status", rw.statusCode).
				Int("bytes", rw.size).
				Dur("duration", elapsed).
				Str("remote", r.RemoteAddr).
				Msg("http request")
		})
	}
}

// routePattern keeps metric cardinality bounded by reporting the matched chi
// pattern rather than the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
	wrote      bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wrote {
		rw.statusCode = code
		rw.wrote = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wrote = true
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

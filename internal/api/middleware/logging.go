package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Logger returns a zerolog request logger. Server errors log at error and
// client errors at warn; the endpoints polled by load balancers and the
// Prometheus scraper log at debug so they do not drown out real traffic.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			evt := logger.Info()
			switch {
			case ww.Status() >= 500:
				evt = logger.Error()
			case ww.Status() >= 400:
				evt = logger.Warn()
			case polledEndpoint(r.URL.Path):
				evt = logger.Debug()
			}

			evt.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("from", r.RemoteAddr).
				Msg("http request")
		})
	}
}

func polledEndpoint(path string) bool {
	return path == "/health" || path == "/metrics"
}

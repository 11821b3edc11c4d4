package middleware

import (
	"net/http"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/observability"
	"github.com/go-chi/chi/v5"
)

// MetricsMiddleware tracks in-flight requests and records durations labelled
// by chi route pattern, so /v1/webhooks/{provider} is one series for every provider.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := observability.TrackInFlight()
		defer done()

		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		observability.ObserveHTTP(r.Method, routePattern(r), rw.status, time.Since(start))
	})
}

// routePattern is read after the handler ran, once chi has matched the route.
// Unmatched paths share one label.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

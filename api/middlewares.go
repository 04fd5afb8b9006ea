package api

import (
	"net/http"
	"time"

	"github.com/OdyseeTeam/mintstudio/internal/metrics"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
)

// captureErrors attaches a sentry hub to each request. Panics are re-raised for the recovery middleware.
func captureErrors(next http.Handler) http.Handler {
	return sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(next)
}

// methodTimer observes request durations by route pattern, not by path, so publish ids
// don't end up in label values.
func methodTimer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.APICallDurations.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

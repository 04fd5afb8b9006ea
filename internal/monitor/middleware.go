package monitor

import (
	"fmt"
	"net/http"

	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"

	"github.com/go-chi/chi/v5/middleware"
)

// RecoveryMiddleware turns handler panics into 500 responses, logs the trace and reports it to sentry.
func RecoveryMiddleware(logger logging.KVLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var err error
			func() {
				defer errors.Recover(&err)
				next.ServeHTTP(w, r)
			}()
			if err == nil {
				return
			}
			logger.Error("handler panicked", "path", r.URL.Path, "err", err, "trace", errors.FullTrace(err))
			ErrorToSentry(err, map[string]string{
				"path":       r.URL.Path,
				"method":     r.Method,
				"request_id": middleware.GetReqID(r.Context()),
			})
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"status":"internal_error","error":"internal error"}`)
		})
	}
}

// ReportError logs err and sends it to sentry unless it belongs to a kind that is
// a normal part of the workflow.
func ReportError(logger logging.KVLogger, err error, params map[string]string) {
	if err == nil {
		return
	}
	kvs := []any{"err", err, "kind", errors.KindOf(err)}
	for k, v := range params {
		kvs = append(kvs, k, v)
	}
	switch errors.KindOf(err) {
	case errors.KindInternal:
		logger.Error("unexpected error", kvs...)
		ErrorToSentry(err, params)
	case errors.KindTransient, errors.KindWallet:
		logger.Warn("upstream error", kvs...)
	default:
		logger.Debug("request error", kvs...)
	}
}

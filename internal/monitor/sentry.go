package monitor

import (
	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"

	"github.com/getsentry/sentry-go"
)

// reportedKinds are the error kinds worth an error report. The rest are expected
// outcomes of user actions or upstream hiccups surfaced to the user.
var reportedKinds = map[errors.Kind]bool{
	errors.KindInternal: true,
}

// ConfigureSentry initializes the global sentry hub. Empty dsn disables reporting.
func ConfigureSentry(dsn, release, env string, logger logging.KVLogger) {
	if dsn == "" {
		logger.Info("sentry disabled (no DSN configured)")
		return
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		Environment:      env,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if hint != nil && hint.OriginalException != nil && !reportedKinds[errors.KindOf(hint.OriginalException)] {
				return nil
			}
			return event
		},
	})
	if err != nil {
		logger.Warn("sentry initialization failed", "err", err)
		return
	}
	logger.Info("sentry initialized", "env", env)
}

// ErrorToSentry captures err with params attached as tags, so reports can be searched by publish or account.
func ErrorToSentry(err error, params map[string]string) *sentry.EventID {
	var id *sentry.EventID
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("kind", string(errors.KindOf(err)))
		scope.SetTags(params)
		id = sentry.CaptureException(err)
	})
	return id
}

package logging

import (
	"context"
)

type ctxKey int

const loggingContextKey ctxKey = iota

const (
	LevelDebug = "debug"
	LevelInfo  = "info"

	FormatConsole = "console"
	FormatJSON    = "json"

	// valueMask replaces sensitive values in log fields.
	valueMask = "****"
)

// sensitiveKeys are never logged verbatim.
var sensitiveKeys = map[string]bool{
	"token":    true,
	"id_token": true,
	"cookie":   true,
}

type KVLogger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
	Fatal(msg string, keyvals ...interface{})
	With(keyvals ...interface{}) KVLogger
}

type NoopKVLogger struct{}

func (NoopKVLogger) Debug(msg string, keyvals ...interface{}) {}
func (NoopKVLogger) Info(msg string, keyvals ...interface{})  {}
func (NoopKVLogger) Warn(msg string, keyvals ...interface{})  {}
func (NoopKVLogger) Error(msg string, keyvals ...interface{}) {}
func (NoopKVLogger) Fatal(msg string, keyvals ...interface{}) {}

func (l NoopKVLogger) With(keyvals ...interface{}) KVLogger {
	return l
}

// LoggingOpts selects verbosity and output encoding.
type LoggingOpts struct {
	level  string
	format string
}

func NewLoggingOpts(level, format string) LoggingOpts {
	return LoggingOpts{level: level, format: format}
}

func (o LoggingOpts) Level() string {
	return o.level
}

func (o LoggingOpts) Format() string {
	return o.format
}

// Mask returns a copy of keyvals with values of sensitive keys replaced.
func Mask(keyvals []interface{}) []interface{} {
	masked := make([]interface{}, len(keyvals))
	copy(masked, keyvals)
	for i := 0; i+1 < len(masked); i += 2 {
		if k, ok := masked[i].(string); ok && sensitiveKeys[k] {
			if v, ok := masked[i+1].(string); ok && v != "" {
				masked[i+1] = valueMask
			}
		}
	}
	return masked
}

// TracedObject is anything carrying identifiers worth attaching to every log line about it.
type TracedObject interface {
	GetTraceData() map[string]string
}

func TracedLogger(l KVLogger, t TracedObject) KVLogger {
	for k, v := range t.GetTraceData() {
		l = l.With(k, v)
	}
	return l
}

func AddToContext(ctx context.Context, l KVLogger) context.Context {
	return context.WithValue(ctx, loggingContextKey, l)
}

func GetFromContext(ctx context.Context) KVLogger {
	l, ok := ctx.Value(loggingContextKey).(KVLogger)
	if !ok {
		return NoopKVLogger{}
	}
	return l
}

// Package zapadapter backs logging.KVLogger and asynq's printf-style logger with zap.
package zapadapter

import (
	"github.com/OdyseeTeam/mintstudio/pkg/logging"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"logur.dev/logur"
)

var logurLevels = map[logur.Level]zapcore.Level{
	logur.Trace: zapcore.DebugLevel,
	logur.Debug: zapcore.DebugLevel,
	logur.Info:  zapcore.InfoLevel,
	logur.Warn:  zapcore.WarnLevel,
	logur.Error: zapcore.ErrorLevel,
}

func sugar(z *zap.Logger) *zap.SugaredLogger {
	if z == nil {
		z = zap.L()
	}
	// One frame for the adapter method, one for the level dispatch.
	return z.WithOptions(zap.AddCallerSkip(2)).Sugar()
}

// KVLogger logs messages with masked key-value pairs.
type KVLogger struct {
	s *zap.SugaredLogger
}

// NewKV wraps z, or the global zap logger when z is nil.
func NewKV(z *zap.Logger) *KVLogger {
	return &KVLogger{s: sugar(z)}
}

// NewNamedKV builds a zap logger from opts and makes it the global one.
func NewNamedKV(name string, opts logging.LoggingOpts) *KVLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if opts.Level() == logging.LevelDebug {
		cfg = zap.NewDevelopmentConfig()
	}
	if opts.Format() != "" {
		cfg.Encoding = opts.Format()
	}
	z, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	z = z.Named(name)
	zap.ReplaceGlobals(z)
	return NewKV(z)
}

func (l *KVLogger) log(level zapcore.Level, msg string, keyvals []interface{}) {
	if !l.s.Desugar().Core().Enabled(level) {
		return
	}
	kv := logging.Mask(keyvals)
	switch level {
	case zapcore.DebugLevel:
		l.s.Debugw(msg, kv...)
	case zapcore.InfoLevel:
		l.s.Infow(msg, kv...)
	case zapcore.WarnLevel:
		l.s.Warnw(msg, kv...)
	case zapcore.ErrorLevel:
		l.s.Errorw(msg, kv...)
	case zapcore.FatalLevel:
		l.s.Fatalw(msg, kv...)
	}
}

func (l *KVLogger) Trace(msg string, keyvals ...interface{}) { l.log(zapcore.DebugLevel, msg, keyvals) }
func (l *KVLogger) Debug(msg string, keyvals ...interface{}) { l.log(zapcore.DebugLevel, msg, keyvals) }
func (l *KVLogger) Info(msg string, keyvals ...interface{})  { l.log(zapcore.InfoLevel, msg, keyvals) }
func (l *KVLogger) Warn(msg string, keyvals ...interface{})  { l.log(zapcore.WarnLevel, msg, keyvals) }
func (l *KVLogger) Error(msg string, keyvals ...interface{}) { l.log(zapcore.ErrorLevel, msg, keyvals) }
func (l *KVLogger) Fatal(msg string, keyvals ...interface{}) { l.log(zapcore.FatalLevel, msg, keyvals) }

func (l *KVLogger) With(keyvals ...interface{}) logging.KVLogger {
	return &KVLogger{s: l.s.With(logging.Mask(keyvals)...)}
}

// LevelEnabled implements logur.LevelEnabler.
func (l *KVLogger) LevelEnabled(level logur.Level) bool {
	zl, ok := logurLevels[level]
	return !ok || l.s.Desugar().Core().Enabled(zl)
}

// TaskLogger satisfies asynq.Logger, which logs plain arguments.
type TaskLogger struct {
	s *zap.SugaredLogger
}

// New wraps z, or the global zap logger when z is nil, for asynq.
func New(z *zap.Logger) *TaskLogger {
	if z == nil {
		z = zap.L()
	}
	return &TaskLogger{s: z.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *TaskLogger) Debug(args ...interface{}) { l.s.Debug(args...) }
func (l *TaskLogger) Info(args ...interface{})  { l.s.Info(args...) }
func (l *TaskLogger) Warn(args ...interface{})  { l.s.Warn(args...) }
func (l *TaskLogger) Error(args ...interface{}) { l.s.Error(args...) }
func (l *TaskLogger) Fatal(args ...interface{}) { l.s.Fatal(args...) }

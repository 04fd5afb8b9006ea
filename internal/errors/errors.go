// Package errors tags errors with a Kind that decides how they surface to users,
// and attaches stack traces for logs and error reports.
package errors

import (
	base "errors"
	"fmt"

	pkgerr "github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() pkgerr.StackTrace
}

// Err returns e with a stack trace attached. Errors already carrying one are returned unchanged.
// A string e is used as a format for fmtParams.
func Err(e any, fmtParams ...any) error {
	var err error
	switch v := e.(type) {
	case nil:
		return nil
	case error:
		err = v
	case string:
		err = fmt.Errorf(v, fmtParams...)
	default:
		err = fmt.Errorf("%+v", v)
	}
	if HasTrace(err) {
		return err
	}
	return pkgerr.WithStack(err)
}

func Is(err, target error) bool {
	return base.Is(err, target)
}

func As(err error, target any) bool {
	return base.As(err, target)
}

func Unwrap(err error) error {
	return base.Unwrap(err)
}

// Base returns a plain error without a stack trace.
func Base(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// Prefix prepends prefix to the message of err, attaching a trace if it has none.
func Prefix(prefix string, err error) error {
	if err == nil {
		return nil
	}
	return pkgerr.WithMessage(Err(err), prefix)
}

func HasTrace(err error) bool {
	var st stackTracer
	return base.As(err, &st)
}

// FullTrace renders the error message followed by the innermost stack trace.
func FullTrace(err error) string {
	if err == nil {
		return ""
	}
	var st stackTracer
	if !base.As(err, &st) {
		return err.Error()
	}
	return fmt.Sprintf("%s%+v", err.Error(), st.StackTrace())
}

// Recover turns a panic into an error with a trace. Defer it directly:
//
//	defer errors.Recover(&err)
func Recover(e *error) {
	p := recover()
	if p == nil {
		return
	}
	err, ok := p.(error)
	if !ok {
		err = fmt.Errorf("%v", p)
	}
	*e = pkgerr.WithStack(pkgerr.WithMessage(err, "panic"))
}

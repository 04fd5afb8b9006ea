package errors

import (
	base "errors"
	"fmt"
)

// Kind categorizes errors by how they should be surfaced and recovered from.
type Kind string

const (
	// KindInternal is anything not categorized below.
	KindInternal Kind = "internal"
	// KindValidation is rejected input (file too large, handle too short). Never retried.
	KindValidation Kind = "validation"
	// KindAuthStale is a missing or mismatched identity token. Resolved by re-authentication only.
	KindAuthStale Kind = "auth_stale"
	// KindTransient is an upstream service failure the user may retry manually.
	KindTransient Kind = "transient"
	// KindWallet is a wallet prepare/write/wait failure.
	KindWallet Kind = "wallet"
	// KindNotFound is a missing profile or publish.
	KindNotFound Kind = "not_found"
	// KindConflict is an action not allowed in the current resource state.
	KindConflict Kind = "conflict"
)

// KindError attaches a Kind to an underlying error.
type KindError struct {
	Kind Kind
	Err  error
}

func (e *KindError) Error() string { return e.Err.Error() }
func (e *KindError) Unwrap() error { return e.Err }

// WithKind tags err with kind k. A nil err stays nil.
func WithKind(k Kind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: k, Err: err}
}

// KindOf returns the outermost Kind attached to err, or KindInternal.
func KindOf(err error) Kind {
	var ke *KindError
	if base.As(err, &ke) {
		return ke.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

func Validation(format string, a ...interface{}) error {
	return WithKind(KindValidation, fmt.Errorf(format, a...))
}

func AuthStale(format string, a ...interface{}) error {
	return WithKind(KindAuthStale, fmt.Errorf(format, a...))
}

func Transient(err error) error {
	return WithKind(KindTransient, err)
}

func Wallet(err error) error {
	return WithKind(KindWallet, err)
}

func NotFound(format string, a ...interface{}) error {
	return WithKind(KindNotFound, fmt.Errorf(format, a...))
}

func Conflict(format string, a ...interface{}) error {
	return WithKind(KindConflict, fmt.Errorf(format, a...))
}

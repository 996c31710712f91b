// Package apperr defines the error taxonomy shared by the storage, job and HTTP layers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind discriminates user-visible failure classes.
type Kind string

const (
	// KindNotFound covers a missing record, job or blob key.
	KindNotFound Kind = "not_found"
	// KindSubmission means the provider rejected a new job.
	KindSubmission Kind = "submission_failed"
	// KindUnavailable covers transport or auth failures talking to storage or a provider.
	KindUnavailable Kind = "unavailable"
	// KindValidation means caller input is missing or out of range.
	KindValidation Kind = "validation"
	// KindConcurrentModification means a conditional write kept losing to other writers.
	KindConcurrentModification Kind = "concurrent_modification"
	// KindTimedOut means a job did not reach a terminal state within the poll budget.
	KindTimedOut Kind = "timed_out"
	// KindUnauthorized means credentials were missing or wrong.
	KindUnauthorized Kind = "unauthorized"
	// KindForbidden means credentials were presented but rejected.
	KindForbidden Kind = "forbidden"
	// KindInternal is anything else.
	KindInternal Kind = "internal"
)

// Error carries a Kind, a message safe to show callers, and an optional cause
// that stays server-side.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the Kind of the outermost *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the caller-safe message for err. Errors outside the
// taxonomy collapse to a generic message so internal detail is not leaked.
func Message(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Message
	}
	return "internal error"
}

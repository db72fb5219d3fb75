// Package apperr defines the error kinds surfaced to API callers.  Services
// return *Error values; the HTTP layer decides how each kind maps to a
// status code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindBadRequest      Kind = "bad_request"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindTooManyRequests Kind = "too_many_requests"
	KindInternal        Kind = "internal"
)

// Error is an application error carrying a kind, a client-safe message and
// optional per-field details.
type Error struct {
	// Kind is the error kind
	Kind Kind

	// Message is safe to show to clients
	Message string

	// Details lists individual problems, e.g. failed validation rules
	Details []string

	// Cause is the underlying error, never shown to clients
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details ...string) *Error {
	cp := *e
	cp.Details = append(append([]string(nil), e.Details...), details...)
	return &cp
}

// New creates a new error
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func BadRequest(message string) *Error      { return New(KindBadRequest, message, nil) }
func Unauthenticated(message string) *Error { return New(KindUnauthenticated, message, nil) }
func Forbidden(message string) *Error       { return New(KindForbidden, message, nil) }
func NotFound(message string) *Error        { return New(KindNotFound, message, nil) }
func Conflict(message string) *Error        { return New(KindConflict, message, nil) }
func TooManyRequests(message string) *Error { return New(KindTooManyRequests, message, nil) }

// Internal wraps an unexpected failure.  The message stays generic.
func Internal(cause error) *Error { return New(KindInternal, "internal server error", cause) }

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

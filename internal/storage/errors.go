package storage

import (
	"errors"
	"fmt"
)

// Kind classifies a storage failure so the HTTP layer can map it to a status
// code in exactly one place.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindUpstream
)

// String returns the lowercase name of the kind for logging.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error is the classified failure type returned by repository operations.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the classification from err, returning KindUnknown for
// errors that did not originate from a repository.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validationf reports malformed or otherwise rejected input.
func Validationf(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

// Unauthorizedf reports a failed credential check.
func Unauthorizedf(format string, args ...any) *Error {
	return newError(KindUnauthorized, format, args...)
}

// Forbiddenf reports an authenticated caller acting outside their rights.
func Forbiddenf(format string, args ...any) *Error {
	return newError(KindForbidden, format, args...)
}

// NotFoundf reports a missing entity.
func NotFoundf(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

// Conflictf reports a uniqueness or state collision.
func Conflictf(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

// Upstreamf wraps a failure from a backing service such as the database or
// the object store.
func Upstreamf(err error, format string, args ...any) *Error {
	return &Error{Kind: KindUpstream, Message: fmt.Sprintf(format, args...), Err: err}
}

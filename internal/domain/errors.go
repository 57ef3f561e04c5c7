// Package domain holds the entities, identifiers and validation rules
// shared by every other component of the control plane. Nothing in this
// package talks to a database, a socket, or Envoy — it is the vocabulary
// the rest of the tree is written in.
package domain

import "fmt"

// Kind classifies a failure the way spec.md §7 requires: surfaced at
// boundaries (REST status code, gRPC status code), never as a single
// monolithic error type.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindNotFound              Kind = "not_found"
	KindConflict              Kind = "conflict"
	KindInUse                 Kind = "in_use"
	KindForbidden             Kind = "forbidden"
	KindUnauthenticated       Kind = "unauthenticated"
	KindTimeout               Kind = "timeout"
	KindDependencyUnavailable Kind = "dependency_unavailable"
	KindInternal              Kind = "internal"
)

// Error is the structured result every service-layer call returns on
// failure. Details carries kind-specific context (e.g. the list of
// referents for KindInUse) that boundary code may choose to surface.
type Error struct {
	Kind    Kind
	Message string
	Details any

	// Field is set for KindValidation errors addressable to one input
	// field, e.g. "name" or "routes[2].match.value".
	Field string

	cause error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Validation(field, format string, args ...any) *Error {
	e := newErr(KindValidation, fmt.Sprintf(format, args...))
	e.Field = field
	return e
}

func NotFound(resourceType, id string) *Error {
	return newErr(KindNotFound, fmt.Sprintf("%s %q not found", resourceType, id))
}

func Conflict(format string, args ...any) *Error {
	return newErr(KindConflict, fmt.Sprintf(format, args...))
}

func InUse(format string, referents []string) *Error {
	e := newErr(KindInUse, format)
	e.Details = referents
	return e
}

func Forbidden(format string, args ...any) *Error {
	return newErr(KindForbidden, fmt.Sprintf(format, args...))
}

func Unauthenticated(format string, args ...any) *Error {
	return newErr(KindUnauthenticated, fmt.Sprintf(format, args...))
}

func Timeout(format string, args ...any) *Error {
	return newErr(KindTimeout, fmt.Sprintf(format, args...))
}

func DependencyUnavailable(format string, args ...any) *Error {
	return newErr(KindDependencyUnavailable, fmt.Sprintf(format, args...))
}

func Internal(cause error, format string, args ...any) *Error {
	e := newErr(KindInternal, fmt.Sprintf(format, args...))
	e.cause = cause
	return e
}

// As reports whether err is a *Error and, if so, returns it.
func As(err error) (*Error, bool) {
	de, ok := err.(*Error)
	return de, ok
}

// KindOf returns the Kind of err, defaulting to KindInternal for errors
// that did not originate from this package.
func KindOf(err error) Kind {
	if de, ok := As(err); ok {
		return de.Kind
	}
	return KindInternal
}

// Package apierr defines the stable error-kind taxonomy shared by every
// service package and surfaced verbatim by the REST gateway: a typed
// error value every layer below the gateway can construct directly.
package apierr

import "fmt"

// Kind is one of the ten stable error-kind identifiers.
type Kind string

// Error kind constants.
const (
	Unauthenticated      Kind = "unauthenticated"
	Forbidden            Kind = "forbidden"
	NotFound             Kind = "not_found"
	VersionConflict      Kind = "version_conflict"
	PreconditionRequired Kind = "precondition_required"
	InvalidArgument      Kind = "invalid_argument"
	Conflict             Kind = "conflict"
	RateLimited          Kind = "rate_limited"
	UpstreamUnavailable  Kind = "upstream_unavailable"
	Internal             Kind = "internal"
)

// Error is the typed error value passed up from storage/search/auth/etc;
// the gateway maps Kind to an HTTP status and serializes {error:{...}}.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error carrying an underlying cause, typically an
// unclassified database or network error reported as Internal.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetails attaches structured detail fields (e.g. validation field
// names) and returns the same *Error for chaining at the call site.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Is reports whether target is an *Error with the same Kind, letting
// callers write errors.Is(err, apierr.New(apierr.NotFound, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NotFoundf builds a not_found error for the given resource description.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// Invalidf builds an invalid_argument error for the given reason.
func Invalidf(format string, args ...any) *Error {
	return New(InvalidArgument, fmt.Sprintf(format, args...))
}

// Package errs defines the error taxonomy shared by every component.
// Errors are tagged at the boundary where they occur and bubble up
// unchanged; the tool dispatcher serializes them to the wire format.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable error code surfaced to callers.
type Kind string

const (
	KindInvalidParameter  Kind = "InvalidParameter"
	KindSystemNotFound    Kind = "SystemNotFound"
	KindTypeNotFound      Kind = "TypeNotFound"
	KindRouteNotFound     Kind = "RouteNotFound"
	KindSourceUnavailable Kind = "SourceUnavailable"
	KindRateLimited       Kind = "RateLimited"
	KindIntegrity         Kind = "IntegrityError"
	KindCancelled         Kind = "Cancelled"
	KindInternal          Kind = "Internal"
)

// Error is a tagged error value carrying a kind, a human message,
// and an optional machine-readable data payload.
type Error struct {
	Kind      Kind           `json:"code"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Retryable bool           `json:"-"`
	wrapped   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is makes errors.Is match on kind: errs.Is(err, errs.KindRateLimited).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// With attaches a data field and returns the error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// Wrap records the underlying cause without changing the surfaced message.
func (e *Error) Wrap(cause error) *Error {
	e.wrapped = cause
	return e
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		Retryable: kind == KindSourceUnavailable || kind == KindRateLimited,
	}
}

// InvalidParameter reports a caller-supplied value outside its documented range.
// The offending parameter name goes into the data payload.
func InvalidParameter(param, reason string) *Error {
	return New(KindInvalidParameter, "invalid parameter %q: %s", param, reason).
		With("parameter", param).
		With("reason", reason)
}

// SystemNotFound reports an unresolvable system name with up to three suggestions.
func SystemNotFound(name string, suggestions []string) *Error {
	e := New(KindSystemNotFound, "system not found: %s", name).With("name", name)
	if len(suggestions) > 0 {
		if len(suggestions) > 3 {
			suggestions = suggestions[:3]
		}
		e.With("suggestions", suggestions)
	}
	return e
}

// TypeNotFound reports an unresolvable item name with up to three suggestions.
func TypeNotFound(name string, suggestions []string) *Error {
	e := New(KindTypeNotFound, "item type not found: %s", name).With("name", name)
	if len(suggestions) > 0 {
		if len(suggestions) > 3 {
			suggestions = suggestions[:3]
		}
		e.With("suggestions", suggestions)
	}
	return e
}

// RouteNotFound reports that no path exists between two systems under the chosen mode.
func RouteNotFound(origin, destination string) *Error {
	return New(KindRouteNotFound, "no route from %s to %s", origin, destination).
		With("origin", origin).
		With("destination", destination).
		With("reason", "no_path")
}

// SourceUnavailable reports an upstream that is down or circuit-broken.
func SourceUnavailable(source string, cause error) *Error {
	e := New(KindSourceUnavailable, "source unavailable: %s", source).With("source", source)
	if cause != nil {
		e.With("cause", cause.Error())
		e.Wrap(cause)
	}
	return e
}

// RateLimited reports upstream throttling with a suggested retry delay in seconds.
func RateLimited(source string, retryAfterSeconds int) *Error {
	return New(KindRateLimited, "rate limited by %s, retry in %ds", source, retryAfterSeconds).
		With("source", source).
		With("retry_after_seconds", retryAfterSeconds)
}

// Integrity reports a checksum mismatch on an externally-sourced blob.
func Integrity(blob, expected, actual string) *Error {
	return New(KindIntegrity, "checksum mismatch for %s", blob).
		With("blob", blob).
		With("expected_sha256", expected).
		With("actual_sha256", actual)
}

// Cancelled reports a deadline or explicit cancellation, naming what was in flight.
func Cancelled(inFlight string) *Error {
	return New(KindCancelled, "cancelled while %s", inFlight).With("in_flight", inFlight)
}

// Internal reports an invariant violation or unexpected failure.
func Internal(format string, args ...any) *Error {
	return New(KindInternal, format, args...)
}

// KindOf extracts the taxonomy kind from any error chain.
// Plain errors map to Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError returns the taxonomy error in the chain, or wraps a plain error as Internal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("%v", err).Wrap(err)
}

// IsRetryable reports whether the caller may usefully retry.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

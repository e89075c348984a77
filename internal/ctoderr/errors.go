// Package ctoderr defines the error kinds shared across the terrain
// factory and the HTTP layer, and the status-code mapping between them.
package ctoderr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable error classification surfaced to clients as
// {"error": kind, "message": str}.
type Kind string

const (
	BadRequest       Kind = "BadRequest"
	NoSuchDataset    Kind = "NoSuchDataset"
	NoSuchTMS        Kind = "NoSuchTMS"
	TileOutOfRange   Kind = "TileOutOfRange"
	UnsafeRequest    Kind = "UnsafeRequest"
	SourceUnavailable Kind = "SourceUnavailable"
	OutOfBounds      Kind = "OutOfBounds"
	MeshingFailed    Kind = "MeshingFailed"
	EncodingFailed   Kind = "EncodingFailed"
	Timeout          Kind = "Timeout"
	Overloaded       Kind = "Overloaded"
	Internal         Kind = "Internal"
)

// Error wraps a Kind and an optional cause. It is comparable with
// errors.Is against a bare *Error carrying only a Kind.
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

func (e *Error) Unwrap() error { return e.Cause }

// Is treats two *Error values as equal when their Kind matches,
// regardless of message or cause. This lets callers write
// errors.Is(err, ctoderr.New(ctoderr.SourceUnavailable, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As extracts the *Error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or Internal if err is not a *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}

// HTTPStatus maps a Kind to the status code from spec.md §7.
func HTTPStatus(kind Kind) int {
	switch kind {
	case BadRequest:
		return http.StatusBadRequest
	case NoSuchDataset, NoSuchTMS:
		return http.StatusNotFound
	case TileOutOfRange:
		return http.StatusBadRequest
	case UnsafeRequest:
		return http.StatusRequestEntityTooLarge
	case SourceUnavailable:
		return http.StatusBadGateway
	case Timeout:
		return http.StatusGatewayTimeout
	case Overloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

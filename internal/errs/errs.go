// Package errs defines the error-kind taxonomy shared by every CRACE layer,
// from the symbol index up to the HTTP envelope.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation-policy and HTTP-status purposes.
type Kind string

const (
	NotFound           Kind = "not_found"
	BadRequest         Kind = "bad_request"
	ParseFailure       Kind = "parse_failure"
	IndexStale         Kind = "index_stale"
	BackendUnavailable Kind = "backend_unavailable"
	Timeout            Kind = "timeout"
	CapacityExceeded   Kind = "capacity_exceeded"
	Internal           Kind = "internal"
)

// Error is the typed error CRACE components return. It carries a Kind so
// callers at any layer can branch on propagation policy without
// string-matching.
type Error struct {
	Kind    Kind
	Op      string // component/operation that produced the error, e.g. "symbol.Index"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap constructs an *Error around an existing error.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf extracts the Kind of err, defaulting to Internal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// HTTPStatus maps a Kind to the HTTP status the control plane should send.
func HTTPStatus(k Kind) int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case BadRequest:
		return http.StatusBadRequest
	case IndexStale:
		return http.StatusServiceUnavailable
	case BackendUnavailable:
		return http.StatusBadGateway
	case Timeout:
		return http.StatusGatewayTimeout
	case CapacityExceeded:
		return http.StatusTooManyRequests
	case ParseFailure:
		return http.StatusOK // never user-visible; logged and skipped
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the policy for this Kind is to hint at a retry.
func Retryable(k Kind) bool {
	return k == CapacityExceeded || k == Timeout || k == BackendUnavailable
}

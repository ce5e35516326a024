// Package apperr defines the typed error used across the gateway so that
// handlers never pattern-match on error strings to pick an HTTP status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error for status-code mapping and logging.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindUnauthorized   Kind = "unauthorized"
	KindForbidden      Kind = "forbidden"
	KindPayloadTooBig  Kind = "payload_too_large"
	KindQuotaBreach    Kind = "quota_breach"
	KindStreamLimit    Kind = "stream_limit"
	KindRateLimited    Kind = "rate_limited"
	KindTransient      Kind = "transient"
	KindBrokerFailure  Kind = "broker_failure"
	KindInternal       Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindValidation:    http.StatusBadRequest,
	KindNotFound:      http.StatusNotFound,
	KindConflict:      http.StatusConflict,
	KindUnauthorized:  http.StatusUnauthorized,
	KindForbidden:     http.StatusForbidden,
	KindPayloadTooBig: http.StatusRequestEntityTooLarge,
	KindQuotaBreach:   http.StatusTooManyRequests,
	KindStreamLimit:   http.StatusTooManyRequests,
	KindRateLimited:   http.StatusTooManyRequests,
	KindTransient:     http.StatusServiceUnavailable,
	// BrokerProduce failure surfaces as a generic 500 per spec.md §7 —
	// the client has no actionable distinction from any other internal
	// failure once quota has already been debited.
	KindBrokerFailure: http.StatusInternalServerError,
	KindInternal:      http.StatusInternalServerError,
}

// Error is the tagged result type handlers return instead of raising
// exceptions for control flow. Status is derived from Kind unless
// explicitly overridden.
type Error struct {
	Kind   Kind
	Status int
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the status code to write for this error.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New builds an Error of the given kind with a human-readable reason.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap builds an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// As extracts an *Error from err, if present in its chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

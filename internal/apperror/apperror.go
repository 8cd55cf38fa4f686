// Package apperror defines the error taxonomy shared by the upload
// orchestrator, the quota guard, and the storage backends, so HTTP
// handlers can map any failure to a status code without inspecting
// provider-specific error strings.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into one of the service's failure categories.
type Kind int

const (
	// KindValidation covers malformed or oversized input (400/413).
	KindValidation Kind = iota
	// KindAuth covers missing credentials or disallowed guest actions (401/403).
	KindAuth
	// KindNotFound covers missing or expired sessions and absent objects (404).
	KindNotFound
	// KindConflict covers mismatched resubmission of a chunk (409).
	KindConflict
	// KindRateLimited covers exhausted guest quotas (429).
	KindRateLimited
	// KindUpstream covers storage-provider failures; the provider's message
	// is passed through (502).
	KindUpstream
	// KindStore covers failures of the external key-value store. Callers
	// apply a per-call policy: fail-closed for session reads, fail-open
	// for quota checks.
	KindStore
)

// Error is a classified service error with an HTTP status.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a 400 validation error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: message}
}

// TooLarge returns a 413 validation error for oversized payloads.
func TooLarge(message string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusRequestEntityTooLarge, Message: message}
}

// Auth returns a 401 authentication error.
func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Message: message}
}

// NotFound returns a 404 error for absent or expired resources.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: message}
}

// Conflict returns a 409 error for mismatched resubmissions.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Status: http.StatusConflict, Message: message}
}

// RateLimited returns a 429 error for exhausted quotas.
func RateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Status: http.StatusTooManyRequests, Message: message}
}

// Upstream wraps a provider-side failure into a 502 error.
func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Status: http.StatusBadGateway, Message: message, Err: err}
}

// Store wraps a key-value store failure.
func Store(message string, err error) *Error {
	return &Error{Kind: KindStore, Status: http.StatusInternalServerError, Message: message, Err: err}
}

// As extracts an *Error from err, or wraps err as an internal store error
// so handlers always have a status to write.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindStore, Status: http.StatusInternalServerError, Message: "internal error", Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

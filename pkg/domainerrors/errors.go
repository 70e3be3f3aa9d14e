// Package domainerrors provides coded errors for the gateway domain.
// Services return these so the transport layer can translate them into
// HTTP responses without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the class of a domain error.
type Code string

const (
	// CodeRateLimited: caller exceeded a rate limit and should back off.
	CodeRateLimited Code = "rate_limited"
	// CodeMaintenance: system is in maintenance mode; retry later.
	CodeMaintenance Code = "maintenance"
	// CodeUnauthorized: credential check failed. The specific check that
	// failed is logged internally, never reflected to the caller.
	CodeUnauthorized Code = "unauthorized"
	// CodeDuplicateEvent: event was already processed; treated as success.
	CodeDuplicateEvent Code = "duplicate_event"
	// CodeStateConflict: event does not permit the requested transition;
	// recorded for reconciliation, not retried.
	CodeStateConflict Code = "state_conflict"
	// CodeUnavailable: a required dependency is unreachable.
	CodeUnavailable Code = "unavailable"
	// CodeBadRequest: input failed validation.
	CodeBadRequest Code = "bad_request"
	// CodeInternal: unexpected failure; details stay server-side.
	CodeInternal Code = "internal_error"
)

// Error is a domain error carrying a stable code and an operator message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the domain code from an error chain.
// Unrecognized errors map to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is reports whether the error chain carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

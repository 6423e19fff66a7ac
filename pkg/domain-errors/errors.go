// Package domainerrors carries coded errors from services to transports.
//
// Services return *Error values built with New or Wrap. Transports read the code
// with CodeOf/HasCode and map it to a wire status without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// Generic codes
	CodeBadRequest Code = "bad_request"
	CodeValidation Code = "validation_error"
	CodeNotFound   Code = "not_found"
	CodeConflict   Code = "conflict"
	CodeInternal   Code = "internal_error"
	CodeTimeout    Code = "timeout"

	// CodeUnauthenticated means no verified caller principal was presented.
	CodeUnauthenticated Code = "unauthenticated"

	// Registry codes
	CodeAlreadyRegistered       Code = "already_registered"
	CodeNotRegistered           Code = "not_registered"
	CodeUnauthorized            Code = "unauthorized"
	CodeSelfSignatoryNotAllowed Code = "self_signatory_not_allowed"
	CodeCooldownActive          Code = "cooldown_active"
	CodeTargetAlreadyRegistered Code = "target_already_registered"
	CodeInsufficientApprovals   Code = "insufficient_approvals"
)

// Error is a domain error with a stable code and a human readable message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code so errors.Is works against code-only targets.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// New creates a domain error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost domain error in the chain.
// Errors without one are reported as internal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == code
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

package race

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	// Validation errors
	CodeInvalidRunner     Code = "INVALID_RUNNER"
	CodeInvalidStation    Code = "INVALID_STATION"
	CodeInvalidStatus     Code = "INVALID_STATUS"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeTimeNotLater      Code = "TIME_NOT_LATER"
	CodeInvalidConfig     Code = "INVALID_CONFIG"
	CodeNoActiveContext   Code = "NO_ACTIVE_CONTEXT"
	CodeRaceMismatch      Code = "RACE_MISMATCH"

	// Decode errors
	CodeMalformedPayload  Code = "MALFORMED_PAYLOAD"
	CodeUnsupportedSchema Code = "UNSUPPORTED_SCHEMA"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// Error is the domain error type. Two errors match with errors.Is when their
// codes are equal, so the sentinels below can be compared against wrapped
// errors carrying more detail.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a domain error with a code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a domain error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a domain error that wraps an underlying cause.
func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

var (
	ErrInvalidRunner     = NewError(CodeInvalidRunner, "invalid runner")
	ErrInvalidStation    = NewError(CodeInvalidStation, "invalid station")
	ErrInvalidStatus     = NewError(CodeInvalidStatus, "invalid status")
	ErrInvalidTransition = NewError(CodeInvalidTransition, "invalid status transition")
	ErrTimeNotLater      = NewError(CodeTimeNotLater, "time is not later than the recorded time")
	ErrInvalidConfig     = NewError(CodeInvalidConfig, "invalid race configuration")
	ErrNoActiveContext   = NewError(CodeNoActiveContext, "no active race context")
	ErrRaceMismatch      = NewError(CodeRaceMismatch, "payload belongs to another race")
	ErrMalformedPayload  = NewError(CodeMalformedPayload, "payload unreadable")
	ErrUnsupportedSchema = NewError(CodeUnsupportedSchema, "payload schema not supported")
	ErrNotFound          = NewError(CodeNotFound, "not found")
)

// CodeOf returns the code of the first domain error in err's chain, or "" if
// there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

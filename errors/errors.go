// Package errors provides the structured error types returned by the
// compositing stages.
//
// Every hard failure carries a Code so a batch driver can decide whether to
// skip the current (background, object) pair without string matching.  Codes
// fall in two classes:
//   - validation failures (channel count, missing alpha, oversize, bad size)
//   - IO failures (unreadable input, failed write) reported by collaborators
//
// Soft conditions (off-canvas placement, scale fallback) are never errors,
// they are only logged.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeMissingAlpha, "foreground has %d channels", n)
//	if errors.IsValidation(err) {
//	    // skip this pair
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the compositing pipeline.
const (
	// Validation errors
	ErrCodeInvalidChannels     Code = "INVALID_CHANNELS"
	ErrCodeMissingAlpha        Code = "MISSING_ALPHA"
	ErrCodeOversizedForeground Code = "OVERSIZED_FOREGROUND"
	ErrCodeInvalidSize         Code = "INVALID_SIZE"
	ErrCodeInvalidTable        Code = "INVALID_TABLE"

	// IO errors raised by collaborators
	ErrCodeUnreadableInput Code = "UNREADABLE_INPUT"
	ErrCodeWriteFailed     Code = "WRITE_FAILED"

	// Driver errors
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInternal      Code = "INTERNAL_ERROR"
)

// validationCodes are the codes that mark a pair as permanently unusable.
var validationCodes = map[Code]bool{
	ErrCodeInvalidChannels:     true,
	ErrCodeMissingAlpha:        true,
	ErrCodeOversizedForeground: true,
	ErrCodeInvalidSize:         true,
	ErrCodeInvalidTable:        true,
}

// ioCodes are the codes raised when reading or writing image files.
var ioCodes = map[Code]bool{
	ErrCodeUnreadableInput: true,
	ErrCodeWriteFailed:     true,
}

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation reports whether err is a validation failure of the inputs.
func IsValidation(err error) bool {
	return validationCodes[GetCode(err)]
}

// IsIO reports whether err was raised reading or writing a file.
func IsIO(err error) bool {
	return ioCodes[GetCode(err)]
}

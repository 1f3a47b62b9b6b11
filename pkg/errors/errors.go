// Package errors provides structured error types for phylomorph.
//
// Errors carry a machine-readable [Code] next to a human-readable message so
// the CLI and the HTTP server can map failures consistently:
//
//   - INVALID_*: input validation failures (trees, Newick text, options)
//   - NOT_FOUND / FILE_NOT_FOUND: missing resources
//   - DESTROYED: calls on a torn-down controller
//   - INTERNAL_ERROR / UNSUPPORTED: everything else
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidTree, "node %s has no split indices", key)
//	if errors.Is(err, errors.ErrCodeInvalidTree) {
//	    // reject the input
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFileNotFound, origErr, "open %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput     Code = "INVALID_INPUT"
	ErrCodeInvalidTree      Code = "INVALID_TREE"
	ErrCodeInvalidNewick    Code = "INVALID_NEWICK"
	ErrCodeInvalidLayout    Code = "INVALID_LAYOUT"
	ErrCodeInvalidTransform Code = "INVALID_TRANSFORM"
	ErrCodeInvalidFormat    Code = "INVALID_FORMAT"
	ErrCodeInvalidIndex     Code = "INVALID_INDEX"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Lifecycle errors
	ErrCodeDestroyed Code = "DESTROYED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

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
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
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

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return e.Message + ": " + UserMessage(e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

type class int

const (
	classInternal class = iota
	classInvalid
	classMissing
	classGone
	classUnsupported
)

func classOf(err error) class {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidTree, ErrCodeInvalidNewick,
		ErrCodeInvalidLayout, ErrCodeInvalidTransform, ErrCodeInvalidFormat,
		ErrCodeInvalidIndex:
		return classInvalid
	case ErrCodeNotFound, ErrCodeFileNotFound:
		return classMissing
	case ErrCodeDestroyed:
		return classGone
	case ErrCodeUnsupported:
		return classUnsupported
	}
	return classInternal
}

// HTTPStatus maps an error to the status the server answers with.
func HTTPStatus(err error) int {
	return [...]int{
		classInternal:    500,
		classInvalid:     400,
		classMissing:     404,
		classGone:        410,
		classUnsupported: 501,
	}[classOf(err)]
}

// ExitCode maps an error to a sysexits(3) process status: 65 for bad data,
// 66 for missing input, 69 for unavailable features and 1 otherwise.
func ExitCode(err error) int {
	return [...]int{
		classInternal:    1,
		classInvalid:     65,
		classMissing:     66,
		classGone:        1,
		classUnsupported: 69,
	}[classOf(err)]
}

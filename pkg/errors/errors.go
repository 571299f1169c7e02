// Package errors provides structured error types for revgraph.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the HTTP view
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - *_NOT_FOUND: Resource not found
//   - INTERNAL_*: Unexpected internal errors
//
// Graph errors raised by the revision engine keep their own types and expose
// a Code method; [GetCode] understands both.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidManifest, "duplicate script %s", id)
//	if errors.Is(err, errors.ErrCodeInvalidManifest) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeVersionStore, origErr, "read heads from %s", url)
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
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidRevision Code = "INVALID_REVISION"
	ErrCodeInvalidManifest Code = "INVALID_MANIFEST"
	ErrCodeInvalidPath     Code = "INVALID_PATH"

	// Graph errors
	ErrCodeMultipleHeads        Code = "MULTIPLE_HEADS"
	ErrCodeCycleDetected        Code = "CYCLE_DETECTED"
	ErrCodeRangeNotAncestor     Code = "RANGE_NOT_ANCESTOR"
	ErrCodeDependencyResolution Code = "DEPENDENCY_RESOLUTION"

	// Resource not found errors
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeRevisionNotFound Code = "REVISION_NOT_FOUND"

	// Storage errors
	ErrCodeVersionStore Code = "VERSION_STORE"

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

// Coder is implemented by error types that carry their own code.
type Coder interface {
	Code() Code
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error or a [Coder] with a
// matching code.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if nothing in the chain carries a code.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message (and the cause's message) without
// the code prefix. For other errors, returns the error string as-is.
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

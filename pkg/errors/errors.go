// Package errors provides structured error types for stratum.
//
// Every structural failure in the layer registry, the per-layer graphs and the
// compositor carries a machine-readable [Code] so that the CLI, the HTTP API
// and tests can branch on the failure kind without string matching.
//
// # Error Codes
//
//   - DUPLICATE_ID: a layer or node id is already in use; the operation is aborted
//   - MISSING_KEY: a persisted document lacks a required field; loading continues
//   - UNKNOWN_NODE_TYPE: the node factory cannot resolve a kind name
//   - DANGLING_BROADCAST: a subscriber resolved a tag whose snapshot is gone or stale
//   - CYCLIC_GRAPH: a new intra-layer link would create a cycle; the link is rejected
//   - UNRESOLVED_EXPORT_SOURCE: an export names a layer/node/port with no data
//
// # Usage
//
//	err := errors.New(errors.ErrCodeDuplicateID, "layer %q already registered", id)
//	if errors.Is(err, errors.ErrCodeDuplicateID) {
//	    // report and abort
//	}
//
//	err := errors.Wrap(errors.ErrCodeInternal, origErr, "write %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Structural errors raised by the registry, layers and graphs
	ErrCodeDuplicateID       Code = "DUPLICATE_ID"
	ErrCodeMissingKey        Code = "MISSING_KEY"
	ErrCodeUnknownNodeType   Code = "UNKNOWN_NODE_TYPE"
	ErrCodeDanglingBroadcast Code = "DANGLING_BROADCAST"
	ErrCodeCyclicGraph       Code = "CYCLIC_GRAPH"
	ErrCodeUnresolvedSource  Code = "UNRESOLVED_EXPORT_SOURCE"

	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidPath  Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

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
// Joined errors (errors.Join) match if any member matches.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) && e.Code == code {
		return true
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			if Is(inner, code) {
				return true
			}
		}
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
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error code to the status the HTTP API reports.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeDuplicateID:
		return 409
	case ErrCodeNotFound:
		return 404
	case ErrCodeInvalidInput, ErrCodeInvalidPath, ErrCodeCyclicGraph,
		ErrCodeUnknownNodeType, ErrCodeMissingKey:
		return 400
	case ErrCodeUnresolvedSource:
		return 422
	default:
		return 500
	}
}

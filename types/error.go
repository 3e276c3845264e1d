package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified machine-readable error code across the service.
type ErrorCode string

// Command-level error codes. These surface inside action envelopes and are
// never raised past the dispatcher.
const (
	ErrInvalidArg        ErrorCode = "INVALID_ARG"
	ErrIndexResolution   ErrorCode = "INDEX_RESOLUTION_ERROR"
	ErrInvalidState      ErrorCode = "INVALID_STATE"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrUnsupported       ErrorCode = "UNSUPPORTED"
	ErrActionExecution   ErrorCode = "ACTION_EXECUTION_ERROR"
	ErrJavaScript        ErrorCode = "JAVASCRIPT_ERROR"
	ErrRuntime           ErrorCode = "RUNTIME_ERROR"
	ErrMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrUnknown           ErrorCode = "UNKNOWN_ERROR"
)

// Pool-level error codes. These map to transport status classes.
const (
	ErrResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
	ErrInternal          ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetails attaches structured details to the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HTTPStatus maps an error code to the HTTP status class the service
// boundary reports for pool-level failures.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrInvalidArg:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrResourceExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Transport & backend
	ErrCodeNetwork ErrorCode = "NETWORK"
	ErrCodeBackend ErrorCode = "BACKEND"

	// Identity
	ErrCodeConflict ErrorCode = "CONFLICT"
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	ErrCodeDecode   ErrorCode = "DECODE"

	// Voice capture
	ErrCodeInputUnavailable ErrorCode = "INPUT_UNAVAILABLE"
	ErrCodeInvalidState     ErrorCode = "INVALID_STATE"

	// Local infrastructure
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrCodeStore           ErrorCode = "STORE_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// AppError is a structured error surfaced to callers and the CLI
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func Network(cause error) *AppError {
	return Wrap(ErrCodeNetwork, "Request did not reach the backend", cause)
}

func Backend(detail string) *AppError {
	return New(ErrCodeBackend, detail)
}

func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

func NotFound(message string) *AppError {
	return New(ErrCodeNotFound, message)
}

func Decode(cause error) *AppError {
	return Wrap(ErrCodeDecode, "Malformed identity assertion", cause)
}

func InputUnavailable(cause error) *AppError {
	return Wrap(ErrCodeInputUnavailable, "Could not access audio input device", cause)
}

func InvalidState(message string) *AppError {
	return New(ErrCodeInvalidState, message)
}

func Unauthenticated() *AppError {
	return New(ErrCodeUnauthenticated, "Not authenticated")
}

func Store(cause error) *AppError {
	return Wrap(ErrCodeStore, "Session store error", cause)
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code
func HasCode(err error, code ErrorCode) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

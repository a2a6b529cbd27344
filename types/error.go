package types

import "fmt"

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Admission-time error codes. These abort before any durable record or
// queue interaction exists.
const (
	ErrParams            ErrorCode = "PARAMS_ERROR"
	ErrModelNotSupported ErrorCode = "MODEL_NOT_SUPPORTED"
	ErrQuotaExceeded     ErrorCode = "QUOTA_EXCEEDED"
	ErrDuplicateRequest  ErrorCode = "DUPLICATE_REQUEST"
	ErrSkillNotFound     ErrorCode = "SKILL_NOT_FOUND"
)

// Execution-time and lookup error codes.
const (
	ErrAborted         ErrorCode = "ABORTED"
	ErrResultNotFound  ErrorCode = "RESULT_NOT_FOUND"
	ErrTriggerNotFound ErrorCode = "TRIGGER_NOT_FOUND"
	ErrUserNotFound    ErrorCode = "USER_NOT_FOUND"
	ErrInternalError   ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
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

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsAbort reports whether an error is a client-initiated cancellation.
func IsAbort(err error) bool {
	return GetErrorCode(err) == ErrAborted
}

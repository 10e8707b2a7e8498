package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the pipeline.
type ErrorCode string

// Stream error codes
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrTransport          ErrorCode = "TRANSPORT"
	ErrSourceUnavailable  ErrorCode = "SOURCE_UNAVAILABLE"
	ErrDeserialization    ErrorCode = "DESERIALIZATION"
	ErrValidation         ErrorCode = "VALIDATION"
	ErrTransform          ErrorCode = "TRANSFORM"
	ErrNoToolCall         ErrorCode = "NO_TOOL_CALL"
	ErrMaxAttempts        ErrorCode = "MAX_ATTEMPTS"
	ErrToolCallFinalized  ErrorCode = "TOOL_CALL_FINALIZED"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Provider  string    `json:"provider,omitempty"`
	Cause     error     `json:"-"`
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

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// NewTransportError 包装片段源自身的失败，对当前 attempt 致命，但可参与重试决策。
func NewTransportError(cause error) *Error {
	return NewError(ErrTransport, "fragment source failed").WithCause(cause).WithRetryable(true)
}

// NewDeserializationError 表示 JSON 与目标类型不匹配。
func NewDeserializationError(cause error) *Error {
	return NewError(ErrDeserialization, "deserialization failed").WithCause(cause).WithRetryable(true)
}

// NewValidationError 表示终态值未通过 schema 或自定义规则校验。
func NewValidationError(cause error) *Error {
	return NewError(ErrValidation, "validation failed").WithCause(cause).WithRetryable(true)
}

// NewTransformError 表示 transform 规则执行失败。
func NewTransformError(cause error) *Error {
	return NewError(ErrTransform, "transform failed").WithCause(cause).WithRetryable(true)
}

// AsError extracts a *Error from the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode reports whether any *Error in the chain carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

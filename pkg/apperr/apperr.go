// Package apperr defines the stable, machine-readable error codes the
// service surfaces, and their HTTP mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable error identifier; it never carries raw upstream
// exception text.
type Code string

const (
	CodeInvalidRequest  Code = "INVALID_REQUEST"
	CodeMissingMessage  Code = "MISSING_MESSAGE"
	CodeEmptyMessage    Code = "EMPTY_MESSAGE"
	CodeMessageTooLong  Code = "MESSAGE_TOO_LONG"
	CodeSafetyViolation Code = "SAFETY_VIOLATION"
	CodeUnsafeOutput    Code = "UNSAFE_OUTPUT"
	CodeNetworkError    Code = "NETWORK_ERROR"
	CodeTimeoutError    Code = "TIMEOUT_ERROR"
	CodeAuthError       Code = "AUTH_ERROR"
	CodeRateLimitError  Code = "RATE_LIMIT_ERROR"
	CodeAllModelsFailed Code = "ALL_MODELS_FAILED"
	CodeModelLoading    Code = "MODEL_LOADING"
	CodeContextTooLarge Code = "CONTEXT_TOO_LARGE"
	CodeInternal        Code = "INTERNAL_ERROR"
)

// Error is a typed application error with a stable code.
type Error struct {
	Code    Code
	Message string
	Err     error
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with a code and human-readable message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error wrapping an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithDetail attaches a key to the error's detail map and returns it.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the code from an error chain, defaulting to
// INTERNAL_ERROR for untyped errors.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus maps a code to the response status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidRequest, CodeMissingMessage, CodeEmptyMessage, CodeMessageTooLong,
		CodeSafetyViolation, CodeUnsafeOutput, CodeContextTooLarge:
		return http.StatusBadRequest
	case CodeAuthError:
		return http.StatusUnauthorized
	case CodeRateLimitError:
		return http.StatusTooManyRequests
	case CodeNetworkError, CodeAllModelsFailed, CodeModelLoading:
		return http.StatusServiceUnavailable
	case CodeTimeoutError:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may retry later without
// changing the request.
func Retryable(code Code) bool {
	switch code {
	case CodeNetworkError, CodeTimeoutError, CodeRateLimitError, CodeModelLoading, CodeAllModelsFailed:
		return true
	}
	return false
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/zen-systems/promptgate/pkg/apperr"
)

// Error wraps provider failures with status metadata so callers can
// decide on fallback without parsing provider-specific messages.
type Error struct {
	Provider  string
	Status    int
	Temporary bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: provider error (status=%d)", e.Provider, e.Status)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// newError builds a normalized provider error.
func newError(provider string, status int, err error) *Error {
	return &Error{Provider: provider, Status: status, Err: err}
}

// IsTransient reports whether an error is safe to retry on the same
// backend.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var provErr *Error
	if errors.As(err, &provErr) {
		if provErr.Temporary {
			return true
		}
		if provErr.Status == 429 || (provErr.Status >= 500 && provErr.Status <= 599) {
			return true
		}
	}
	return false
}

// IsCritical reports whether a failure should advance the fallback
// chain to the next backend immediately instead of retrying in place.
func IsCritical(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var provErr *Error
	if errors.As(err, &provErr) {
		switch {
		case provErr.Status == 429:
			return true
		case provErr.Status >= 500 && provErr.Status <= 599:
			return true
		case provErr.Status == 0 && provErr.Temporary:
			return true
		}
	}
	return modelLoading(err)
}

// ClassifyCode maps a provider failure onto the service error taxonomy.
func ClassifyCode(err error) apperr.Code {
	if err == nil {
		return apperr.CodeInternal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.CodeTimeoutError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return apperr.CodeTimeoutError
		}
		return apperr.CodeNetworkError
	}
	if modelLoading(err) {
		return apperr.CodeModelLoading
	}
	var provErr *Error
	if errors.As(err, &provErr) {
		switch {
		case provErr.Status == 401 || provErr.Status == 403:
			return apperr.CodeAuthError
		case provErr.Status == 429:
			return apperr.CodeRateLimitError
		case provErr.Status == 413 || contextTooLarge(err):
			return apperr.CodeContextTooLarge
		case provErr.Status >= 500 && provErr.Status <= 599:
			return apperr.CodeNetworkError
		default:
			return apperr.CodeNetworkError
		}
	}
	return apperr.CodeInternal
}

func modelLoading(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "currently loading") || strings.Contains(msg, "estimated_time")
}

func contextTooLarge(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context_length") ||
		strings.Contains(msg, "context window") ||
		strings.Contains(msg, "maximum context")
}

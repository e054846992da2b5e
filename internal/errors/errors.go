package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by the upstream clients, the store and the API.
var (
	// ErrTransient indicates a temporary error that should be retried
	ErrTransient = errors.New("transient error")

	// ErrPermanent indicates a permanent error that should not be retried
	ErrPermanent = errors.New("permanent error")

	// ErrNotFound indicates the upstream or the store has no such resource
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing or wrong API key
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("timeout")

	// ErrRateLimit indicates the upstream answered 429
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrUpstreamDown indicates the upstream answered with a 5xx status
	ErrUpstreamDown = errors.New("upstream unavailable")

	// ErrCircuitOpen indicates requests to a host are suspended after repeated failures
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// TransientError wraps an error to mark it as transient (retryable)
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transient error: %v", e.Cause)
	}
	return "transient error"
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// NewTransient creates a new transient error
func NewTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Cause: err}
}

// NewTransientf creates a new transient error with formatting
func NewTransientf(format string, args ...interface{}) error {
	return &TransientError{Cause: fmt.Errorf(format, args...)}
}

// PermanentError wraps an error to mark it as permanent (not retryable)
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("permanent error: %v", e.Cause)
	}
	return "permanent error"
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// NewPermanent creates a new permanent error
func NewPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Cause: err}
}

// NewPermanentf creates a new permanent error with formatting
func NewPermanentf(format string, args ...interface{}) error {
	return &PermanentError{Cause: fmt.Errorf(format, args...)}
}

// FromStatus classifies a non-2xx HTTP status returned by url.
// Returns nil for 2xx statuses.
func FromStatus(status int, url string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return NewPermanent(fmt.Errorf("%s: %w", url, ErrNotFound))
	case status == http.StatusTooManyRequests:
		return NewTransient(fmt.Errorf("%s: %w", url, ErrRateLimit))
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewTransient(fmt.Errorf("%s: status %d: %w", url, status, ErrTimeout))
	case status >= 500:
		return NewTransient(fmt.Errorf("%s: status %d: %w", url, status, ErrUpstreamDown))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewPermanent(fmt.Errorf("%s: status %d: %w", url, status, ErrUnauthorized))
	default:
		return NewPermanentf("%s: unexpected status %d", url, status)
	}
}

// IsTransient checks if an error is transient using errors.As
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}

	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}

	if errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidInput) {
		return false
	}

	if errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrUpstreamDown) ||
		errors.Is(err, ErrCircuitOpen) {
		return true
	}

	// Unknown errors are not retried
	return false
}

// IsPermanent checks if an error is permanent (not retryable)
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var permanentErr *PermanentError
	return errors.As(err, &permanentErr)
}

// IsNotFound reports whether err carries ErrNotFound anywhere in its chain.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimit reports whether err carries ErrRateLimit anywhere in its chain.
func IsRateLimit(err error) bool {
	return errors.Is(err, ErrRateLimit)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

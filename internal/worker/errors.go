package worker

import (
	"context"
	"strings"

	"github.com/daimoniac/pkgwatch/internal/errors"
)

// isTransientError determines if an error is transient and should be retried.
// Classified errors decide for themselves; raw network errors fall back to
// message matching.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.IsTransient(err) {
		return true
	}
	if errors.IsPermanent(err) ||
		errors.IsNotFound(err) ||
		errors.Is(err, errors.ErrInvalidInput) {
		return false
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"too many requests",
		"service unavailable",
		"dial tcp",
		"eof",
		"broken pipe",
		"database is locked",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	// Unknown errors are not retried
	return false
}

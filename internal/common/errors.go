// Package common provides shared utilities and types used across the
// application.
package common

import (
	"context"
	"errors"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound = errors.New("not found")

	// Claim store errors.
	ErrStoreUnavailable = errors.New("claim store unavailable")
	ErrMoveNotConfirmed = errors.New("destination write not confirmed")

	// Validation errors. These cover unreadable inputs only; data-quality
	// findings are verdict content, not errors.
	ErrNoServiceLines = errors.New("claim has no service lines")
	ErrClaimMalformed = errors.New("claim record malformed")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}

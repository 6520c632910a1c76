// Package moderr defines the error taxonomy shared by the moderation engine.
// Callers classify failures with errors.Is against the sentinel values below;
// the presentation layer translates them into user-facing messages.
package moderr

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict signals a uniqueness invariant violation: a duplicate active
	// sanction, a duplicate outstanding role request, or a lost claim race.
	// Never retried silently.
	ErrConflict = errors.New("conflict")

	// ErrNotFound signals that the referenced sanction, action or request does
	// not exist or is no longer active.
	ErrNotFound = errors.New("not found")

	// ErrForbidden signals that the actor lacks the permission tier or claim
	// ownership required for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidReason signals malformed or placeholder input data, rejected
	// before any write occurs.
	ErrInvalidReason = errors.New("invalid reason")

	// ErrStoreUnavailable signals the underlying persistence is temporarily
	// unavailable. Idempotent reads may be retried at the store boundary;
	// writes are surfaced to avoid double-application.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Conflictf wraps ErrConflict with a formatted detail message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}

// NotFoundf wraps ErrNotFound with a formatted detail message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// Forbiddenf wraps ErrForbidden with a formatted detail message.
func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrForbidden}, args...)...)
}

// InvalidReasonf wraps ErrInvalidReason with a formatted detail message.
func InvalidReasonf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidReason}, args...)...)
}

// Package shared contains common domain types, errors, and events
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Concurrency errors
	ErrConflict = errors.New("concurrent modification detected")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTimeout            = errors.New("operation timeout")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progression", "catalog", "store"
	Op      string // Operation that failed, e.g., "RecordEvent"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Progression domain errors
var (
	ErrEmptyUserID      = NewDomainError("progression", "Validate", ErrInvalidID, "user ID is required")
	ErrEmptyEventType   = NewDomainError("progression", "Validate", ErrEmptyValue, "event type is required")
	ErrProfileConflict  = NewDomainError("progression", "CompareAndSwap", ErrConflict, "profile was modified concurrently")
	ErrRetriesExhausted = NewDomainError("progression", "RecordEvent", ErrConflict, "too many concurrent updates for user")
)

// Catalog errors
var (
	ErrDuplicateAchievement = NewDomainError("catalog", "Register", ErrInvalidConfig, "duplicate achievement ID")
	ErrInvalidAchievementID = NewDomainError("catalog", "Register", ErrInvalidConfig, "achievement ID must be a slug")
	ErrInvalidLevelTable    = NewDomainError("levels", "Validate", ErrInvalidConfig, "invalid level table")
)

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsConflict checks if the error is an optimistic concurrency conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsStorageUnavailable checks if the error is a storage outage or timeout.
func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrTimeout)
}

// IsUnauthorized checks if the error is an identity failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRetryable checks if the caller may retry the whole operation later.
func IsRetryable(err error) bool {
	return IsConflict(err) || IsStorageUnavailable(err)
}

// Validation builds a validation error for op with a formatted message.
func Validation(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrValidation, fmt.Sprintf(format, args...))
}

// StorageUnavailable wraps a driver error as a storage outage.
func StorageUnavailable(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrStorageUnavailable, "storage unavailable", err)
}

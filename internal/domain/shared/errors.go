// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")

	// Store errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTimeout          = errors.New("operation timeout")

	// Grant errors
	ErrPartialGrant = errors.New("award recorded but a follow-up step failed")

	// External service errors
	ErrExternalService = errors.New("external service error")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "achievement", "ledger", "leaderboard"
	Op      string // Operation that failed, e.g., "RecordAward", "Top"
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

// Achievement domain errors
var (
	ErrAchievementNotFound = NewDomainError("achievement", "Lookup", ErrNotFound, "achievement not found")
	ErrInvalidAchievement  = NewDomainError("achievement", "Validate", ErrInvalidID, "invalid achievement ID")
	ErrUserNotFound        = NewDomainError("achievement", "Snapshot", ErrNotFound, "user not found")
	ErrNegativeExperience  = NewDomainError("achievement", "LevelProgress", ErrNegativeValue, "experience total cannot be negative")
)

// Award ledger errors
var (
	ErrAwardExists       = NewDomainError("ledger", "RecordAward", ErrAlreadyExists, "award already recorded for this user and achievement")
	ErrLedgerUnavailable = NewDomainError("ledger", "Query", ErrStoreUnavailable, "award ledger is unavailable")
)

// Experience ledger errors
var (
	ErrGrantAlreadyApplied = NewDomainError("experience", "Grant", ErrAlreadyProcessed, "experience grant already applied for this source")
	ErrExperienceFailed    = NewDomainError("experience", "Grant", ErrPartialGrant, "experience grant failed after award was recorded")
)

// Leaderboard domain errors
var (
	ErrInvalidLimit        = NewDomainError("leaderboard", "Top", ErrValueOutOfRange, "limit must be a positive integer")
	ErrLeaderboardNotFound = NewDomainError("leaderboard", "Top", ErrNotFound, "no ranked users found")
)

// Notification errors
var (
	ErrNotificationFailed = NewDomainError("notification", "Send", ErrExternalService, "failed to send notification")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsStoreUnavailable checks if the error indicates an unreachable store.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsPartialGrant checks if the error is a partial-grant failure, meaning the
// award itself stands but experience or notification still needs reconciling.
func IsPartialGrant(err error) bool {
	return errors.Is(err, ErrPartialGrant)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrExternalService)
}

// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common application errors.
var (
	// Input errors.
	ErrValidation        = errors.New("validation failed")
	ErrDegenerateWeights = errors.New("degenerate unit weights")

	// Persistence errors.
	ErrNotFound         = errors.New("not found")
	ErrPersistence      = errors.New("persistence failed")
	ErrAlreadyFinalized = errors.New("schedule already finalized")

	// Coordination errors.
	ErrLockTimeout = errors.New("timed out waiting for finalization lock")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError reports malformed or out-of-range input rejected before any computation.
type ValidationError struct {
	Value      any
	Field      string
	Reason     string
	BudgetID   int64
	CategoryID int64
	UnitID     int64
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid %s", e.Field)
	if e.Value != nil {
		fmt.Fprintf(&b, " %v", e.Value)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	writeContext(&b, e.BudgetID, e.CategoryID, e.UnitID)
	return b.String()
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field string, value any, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// DegenerateWeightError reports that every candidate divisor for a distribution is zero.
// CategoryID is zero for standalone quotas.
type DegenerateWeightError struct {
	BudgetID      int64
	CategoryID    int64
	CondominiumID int64
	Standalone    bool
}

func (e *DegenerateWeightError) Error() string {
	var b strings.Builder
	if e.Standalone {
		b.WriteString("total unit weight is zero; standalone quota cannot be distributed")
		if e.CondominiumID != 0 {
			fmt.Fprintf(&b, " (condominium %d)", e.CondominiumID)
		}
		return b.String()
	}
	b.WriteString("participant and global unit weights are zero; category contributes nothing")
	writeContext(&b, e.BudgetID, e.CategoryID, 0)
	return b.String()
}

// Is makes errors.Is(err, ErrDegenerateWeights) match.
func (e *DegenerateWeightError) Is(target error) bool {
	return target == ErrDegenerateWeights
}

// PersistenceError reports a storage failure during a finalization run.
type PersistenceError struct {
	Err        error
	Op         string
	BudgetID   int64
	ScheduleID int64
	UnitID     int64
}

func (e *PersistenceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Op)
	if e.ScheduleID != 0 {
		fmt.Fprintf(&b, " (schedule %d)", e.ScheduleID)
	}
	writeContext(&b, e.BudgetID, 0, e.UnitID)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying storage error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrPersistence) match.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func writeContext(b *strings.Builder, budgetID, categoryID, unitID int64) {
	if budgetID != 0 {
		fmt.Fprintf(b, " [budget %d]", budgetID)
	}
	if categoryID != 0 {
		fmt.Fprintf(b, " [category %d]", categoryID)
	}
	if unitID != 0 {
		fmt.Fprintf(b, " [unit %d]", unitID)
	}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}

package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:      "planned_amount",
		Value:      -5.0,
		Reason:     "must not be negative",
		BudgetID:   3,
		CategoryID: 7,
	}

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrPersistence))
	assert.Equal(t, "invalid planned_amount -5: must not be negative [budget 3] [category 7]", err.Error())

	wrapped := fmt.Errorf("building schedule: %w", err)
	var target *ValidationError
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, int64(7), target.CategoryID)
}

func TestDegenerateWeightError(t *testing.T) {
	standalone := &DegenerateWeightError{Standalone: true, CondominiumID: 2}
	assert.True(t, errors.Is(standalone, ErrDegenerateWeights))
	assert.Contains(t, standalone.Error(), "standalone quota")
	assert.Contains(t, standalone.Error(), "condominium 2")

	category := &DegenerateWeightError{BudgetID: 1, CategoryID: 4}
	assert.Contains(t, category.Error(), "[category 4]")
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := &PersistenceError{Op: "insert obligations", BudgetID: 9, ScheduleID: 12, Err: cause}

	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "insert obligations failed (schedule 12) [budget 9]: disk I/O error", err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrRateLimit))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("503"), Retryable: true}))
	assert.False(t, IsRetryable(&RetryableError{Err: errors.New("400"), Retryable: false}))
	assert.False(t, IsRetryable(ErrValidation))
}

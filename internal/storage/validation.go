// Package storage provides the SQLite persistence layer for budgets, units and quota schedules.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Veraticus/condo-quotas/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrInvalidID         = errors.New("id must be positive")
	ErrInvalidUnit       = errors.New("invalid unit")
	ErrInvalidBudget     = errors.New("invalid budget")
	ErrInvalidCategory   = errors.New("invalid budget category")
	ErrInvalidSchedule   = errors.New("invalid schedule")
	ErrInvalidObligation = errors.New("invalid payment obligation")
	ErrInvalidStatus     = errors.New("invalid obligation status")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateID(id int64, paramName string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidID, paramName)
	}
	return nil
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func validateUnit(unit *model.Unit) error {
	if unit == nil {
		return fmt.Errorf("%w: unit", ErrNilParameter)
	}
	if err := validateID(unit.CondominiumID, "condominium_id"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUnit, err)
	}
	if strings.TrimSpace(unit.Number) == "" {
		return fmt.Errorf("%w: missing number", ErrInvalidUnit)
	}
	if !unit.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidUnit, unit.Type)
	}
	if !validAmount(unit.Weight) {
		return fmt.Errorf("%w: weight must be a non-negative number", ErrInvalidUnit)
	}
	return nil
}

func validateBudget(budget *model.Budget) error {
	if budget == nil {
		return fmt.Errorf("%w: budget", ErrNilParameter)
	}
	if err := validateID(budget.CondominiumID, "condominium_id"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBudget, err)
	}
	if budget.Year <= 0 {
		return fmt.Errorf("%w: missing year", ErrInvalidBudget)
	}
	if !validAmount(budget.TotalAmount) {
		return fmt.Errorf("%w: total amount must be a non-negative number", ErrInvalidBudget)
	}
	if !validAmount(budget.ReserveFundPercentage) || budget.ReserveFundPercentage > 100 {
		return fmt.Errorf("%w: reserve fund percentage must be between 0 and 100", ErrInvalidBudget)
	}
	return nil
}

func validateCategory(category *model.BudgetCategory) error {
	if category == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if err := validateID(category.BudgetID, "budget_id"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCategory, err)
	}
	if strings.TrimSpace(category.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCategory)
	}
	if !validAmount(category.PlannedAmount) {
		return fmt.Errorf("%w: planned amount must be a non-negative number", ErrInvalidCategory)
	}
	if _, err := model.ParseAllocationScope(string(category.Scope)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCategory, err)
	}
	return nil
}

func validateSnapshot(snapshot *model.ScheduleSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("%w: schedule", ErrNilParameter)
	}
	if err := validateID(snapshot.CondominiumID, "condominium_id"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	if snapshot.Standalone == (snapshot.BudgetID != nil) {
		return fmt.Errorf("%w: exactly one of budget or standalone must be set", ErrInvalidSchedule)
	}
	if snapshot.GeneratedAt.IsZero() {
		return fmt.Errorf("%w: missing generation time", ErrInvalidSchedule)
	}
	switch snapshot.Status {
	case model.ScheduleDraft, model.ScheduleFinalized:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidSchedule, snapshot.Status)
	}
	return nil
}

func validateItem(item model.ScheduleItem) error {
	if item.ScheduleID <= 0 || item.UnitID <= 0 {
		return fmt.Errorf("%w: item must reference a schedule and a unit", ErrInvalidSchedule)
	}
	if item.MonthIndex < 0 {
		return fmt.Errorf("%w: negative month index", ErrInvalidSchedule)
	}
	if !validAmount(item.Amount) {
		return fmt.Errorf("%w: item amount must be a non-negative number", ErrInvalidSchedule)
	}
	return nil
}

func validateObligationStatus(status model.ObligationStatus) error {
	switch status {
	case model.ObligationPending, model.ObligationPaid, model.ObligationOverdue:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
}

func validateObligation(obligation model.PaymentObligation) error {
	if obligation.UnitID <= 0 {
		return fmt.Errorf("%w: missing unit", ErrInvalidObligation)
	}
	if !validAmount(obligation.Amount) {
		return fmt.Errorf("%w: amount must be a non-negative number", ErrInvalidObligation)
	}
	if obligation.IssueDate.IsZero() || obligation.DueDate.IsZero() {
		return fmt.Errorf("%w: missing dates", ErrInvalidObligation)
	}
	if obligation.DueDate.Before(obligation.IssueDate) {
		return fmt.Errorf("%w: due date before issue date", ErrInvalidObligation)
	}
	if strings.TrimSpace(obligation.Period) == "" {
		return fmt.Errorf("%w: missing period", ErrInvalidObligation)
	}
	return validateObligationStatus(obligation.Status)
}

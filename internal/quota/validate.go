package quota

import (
	"math"
	"strings"

	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/model"
)

const (
	// MinDurationMonths is the shortest standalone quota.
	MinDurationMonths = 1
	// MaxDurationMonths is the longest standalone quota.
	MaxDurationMonths = 120
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validateBudget(budget model.Budget) error {
	pct := budget.ReserveFundPercentage
	if !finite(pct) || pct < 0 || pct > 100 {
		return &common.ValidationError{
			Field:    "reserve_fund_percentage",
			Value:    pct,
			Reason:   "must be between 0 and 100",
			BudgetID: budget.ID,
		}
	}
	return nil
}

func validateUnits(units []model.Unit) error {
	seen := make(map[int64]bool, len(units))
	for _, unit := range units {
		if seen[unit.ID] {
			return &common.ValidationError{Field: "unit", Value: unit.ID, Reason: "appears more than once", UnitID: unit.ID}
		}
		seen[unit.ID] = true

		if !unit.Type.Valid() {
			return &common.ValidationError{Field: "unit_type", Value: unit.Type, Reason: "unknown unit type", UnitID: unit.ID}
		}
		if !finite(unit.Weight) || unit.Weight < 0 {
			return &common.ValidationError{Field: "weight", Value: unit.Weight, Reason: "must be a non-negative number", UnitID: unit.ID}
		}
	}
	return nil
}

func validateCategory(budgetID int64, category model.BudgetCategory) error {
	invalid := func(field string, value any, reason string) error {
		return &common.ValidationError{
			Field:      field,
			Value:      value,
			Reason:     reason,
			BudgetID:   budgetID,
			CategoryID: category.ID,
		}
	}

	if !finite(category.PlannedAmount) || category.PlannedAmount < 0 {
		return invalid("planned_amount", category.PlannedAmount, "must be a non-negative number")
	}
	switch category.Scope {
	case model.ScopeAll, model.ScopeUnitTypes, model.ScopeCustom:
	default:
		return invalid("allocation_scope", category.Scope, "unknown scope")
	}
	for _, t := range category.EligibleTypes {
		if !t.Valid() {
			return invalid("eligible_unit_types", t, "unknown unit type")
		}
	}
	return nil
}

func validateStandalone(req model.StandaloneQuota) error {
	if strings.TrimSpace(req.Title) == "" {
		return common.NewValidationError("title", nil, "is required")
	}
	if !finite(req.TotalAmount) || req.TotalAmount <= 0 {
		return common.NewValidationError("total_amount", req.TotalAmount, "must be greater than zero")
	}
	if req.DurationMonths < MinDurationMonths || req.DurationMonths > MaxDurationMonths {
		return common.NewValidationError("duration_months", req.DurationMonths, "must be between 1 and 120")
	}
	return nil
}

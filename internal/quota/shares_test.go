package quota

import (
	"testing"

	"github.com/Veraticus/condo-quotas/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateMonthlyCharge(t *testing.T) {
	withReserve := CalculateMonthlyCharge(1200, true, 10)
	assert.InDelta(t, 100, withReserve.Base, tolerance)
	assert.InDelta(t, 10, withReserve.Reserve, tolerance)
	assert.InDelta(t, 110, withReserve.Total, tolerance)

	withoutReserve := CalculateMonthlyCharge(1200, false, 10)
	assert.Zero(t, withoutReserve.Reserve)
	assert.InDelta(t, 100, withoutReserve.Total, tolerance)

	zeroPercent := CalculateMonthlyCharge(600, true, 0)
	assert.InDelta(t, 50, zeroPercent.Total, tolerance)
}

func TestResolveDivisor(t *testing.T) {
	units := twoUnits()
	weightless := []model.Unit{unit(7, "Z", model.UnitTypeOther, 0)}

	tests := []struct {
		name         string
		participants []model.Unit
		all          []model.Unit
		wantKind     DivisorKind
		wantValue    float64
	}{
		{name: "participant weights", participants: units[:1], all: units, wantKind: DivisorParticipants, wantValue: 600},
		{name: "zero-weight participants fall back to global", participants: weightless, all: append(units, weightless...), wantKind: DivisorGlobal, wantValue: 1000},
		{name: "everything zero is degenerate", participants: weightless, all: weightless, wantKind: DivisorDegenerate},
		{name: "no units at all is degenerate", wantKind: DivisorDegenerate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveDivisor(tt.participants, tt.all)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantValue, got.Value)
			assert.Equal(t, tt.wantKind != DivisorDegenerate, got.Distributed())
		})
	}
}

func TestCalculateShares_SumMatchesMonthlyTotal(t *testing.T) {
	units := mixedUnits()
	categories := []model.BudgetCategory{
		{ID: 1, PlannedAmount: 9876.54, Scope: model.ScopeAll, ContributesToFCR: true},
		{ID: 2, PlannedAmount: 1234.5, Scope: model.ScopeAll, ContributesToFCR: false},
		{ID: 3, PlannedAmount: 333.33, Scope: model.ScopeUnitTypes, EligibleTypes: types(t, model.UnitTypeParking, model.UnitTypeOther), ContributesToFCR: true},
		{ID: 4, PlannedAmount: 7000, Scope: model.ScopeCustom, ContributesToFCR: true},
	}
	assignments := map[int64][]int64{4: {1, 3}}

	for _, category := range categories {
		participants := ResolveParticipants(category, units, assignments[category.ID])
		result := CalculateShares(category, 12.5, participants, units)
		require.True(t, result.Divisor.Distributed())

		var sum float64
		for _, share := range result.Shares {
			sum += share.Amount
		}
		assert.InDelta(t, result.Charge.Total, sum, tolerance, "category %d", category.ID)

		expected := category.PlannedAmount / 12
		if category.ContributesToFCR {
			expected *= 1.125
		}
		assert.InDelta(t, expected, result.Charge.Total, tolerance)
	}
}

func TestCalculateShares_Degenerate(t *testing.T) {
	weightless := []model.Unit{unit(1, "A", model.UnitTypeResidential, 0), unit(2, "B", model.UnitTypeResidential, 0)}
	category := model.BudgetCategory{ID: 3, PlannedAmount: 1200, Scope: model.ScopeAll}

	result := CalculateShares(category, 10, weightless, weightless)

	assert.Equal(t, DivisorDegenerate, result.Divisor.Kind)
	assert.Empty(t, result.Shares)
	assert.InDelta(t, 100, result.Charge.Total, tolerance)
}

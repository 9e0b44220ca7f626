package quota

import (
	"testing"
	"time"

	"github.com/Veraticus/condo-quotas/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetObligations(t *testing.T) {
	schedule, err := BuildSchedule(ScheduleInput{
		Budget: budget2025(10),
		Units:  twoUnits(),
		Categories: []model.BudgetCategory{
			{ID: 1, PlannedAmount: 1200, Scope: model.ScopeAll, ContributesToFCR: true},
		},
	})
	require.NoError(t, err)

	obligations := BudgetObligations(schedule)
	require.Len(t, obligations, 2*MonthsPerYear)

	first := obligations[0]
	assert.Equal(t, int64(1), first.UnitID)
	assert.Equal(t, "2025-02", first.Period)
	assert.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), first.IssueDate)
	assert.Equal(t, time.Date(2025, time.February, 15, 0, 0, 0, 0, time.UTC), first.DueDate)
	assert.Equal(t, model.ObligationPending, first.Status)
	assert.Equal(t, "Budget 2025 quota", first.Notes)
	assert.InDelta(t, 66, first.Amount, tolerance)

	assert.Equal(t, "2025-12", obligations[10].Period)
	assert.Equal(t, "2026-01", obligations[11].Period)
	assert.Equal(t, time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC), obligations[11].DueDate)

	assert.Equal(t, int64(2), obligations[12].UnitID)
	assert.InDelta(t, 44, obligations[12].Amount, tolerance)
}

func TestBudgetObligations_SkipsZeroMonths(t *testing.T) {
	schedule, err := BuildSchedule(ScheduleInput{
		Budget: budget2025(0),
		Units:  twoUnits(),
		Categories: []model.BudgetCategory{
			{ID: 1, PlannedAmount: 600, Scope: model.ScopeCustom},
		},
		Assignments: map[int64][]int64{1: {1}},
	})
	require.NoError(t, err)

	obligations := BudgetObligations(schedule)
	require.Len(t, obligations, MonthsPerYear)
	for _, obligation := range obligations {
		assert.Equal(t, int64(1), obligation.UnitID)
		assert.InDelta(t, 50, obligation.Amount, tolerance)
	}
}

package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/condo-quotas/internal/model"
	"github.com/Veraticus/condo-quotas/internal/quota"
)

func TestRenderTableAligns(t *testing.T) {
	out := RenderTable([]string{"Unit", "Amount"}, [][]string{{"A", "1,00"}, {"Total", "100,00"}}, true)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, out, "Unit")
	assert.Contains(t, out, "  1,00")
	assert.Contains(t, out, "100,00")
}

func TestRenderSchedule(t *testing.T) {
	s, err := quota.BuildSchedule(quota.ScheduleInput{
		Budget: model.Budget{ID: 1, CondominiumID: 1, Year: 2025, ReserveFundPercentage: 10},
		Units: []model.Unit{
			{ID: 1, CondominiumID: 1, Number: "A", Type: model.UnitTypeResidential, Weight: 600},
			{ID: 2, CondominiumID: 1, Number: "B", Type: model.UnitTypeResidential, Weight: 400},
		},
		Categories: []model.BudgetCategory{
			{ID: 1, BudgetID: 1, Name: "Cleaning", PlannedAmount: 1200, Scope: model.ScopeAll, ContributesToFCR: true},
		},
	})
	require.NoError(t, err)

	out := RenderSchedule(s)
	assert.Contains(t, out, "Quota schedule 2025")
	assert.Contains(t, out, "792,00")
	assert.Contains(t, out, "1320,00")
	assert.Contains(t, out, "Annual total")

	categories := RenderCategories(s)
	assert.Contains(t, categories, "Cleaning")
	assert.Contains(t, categories, "participants")
}

func TestRenderSnapshots(t *testing.T) {
	assert.Contains(t, RenderSnapshots(nil), "No saved schedules")

	budgetID := int64(3)
	out := RenderSnapshots([]model.ScheduleSnapshot{
		{ID: 1, BudgetID: &budgetID, BudgetYear: 2025, Title: "Budget 2025", Version: 2, Status: model.ScheduleFinalized,
			GeneratedAt: time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC), TotalAmount: 1320},
		{ID: 2, Standalone: true, Title: "Elevator", DurationMonths: 3, Version: 1, Status: model.ScheduleFinalized,
			GeneratedAt: time.Date(2025, 11, 20, 8, 0, 0, 0, time.UTC), TotalAmount: 300, Notes: "Board decision"},
	})
	assert.Contains(t, out, "v2")
	assert.Contains(t, out, "standalone")
	assert.Contains(t, out, "3 months")
	assert.Contains(t, out, "Board decision")
}

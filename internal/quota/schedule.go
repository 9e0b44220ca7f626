package quota

import (
	"fmt"
	"sort"

	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/model"
)

// MonthsPerYear is the number of monthly columns in a budget schedule.
const MonthsPerYear = 12

// ScheduleInput is everything needed to distribute one budget.
// Assignments maps a custom-scope category ID to its assigned unit IDs.
type ScheduleInput struct {
	Assignments map[int64][]int64
	Categories  []model.BudgetCategory
	Units       []model.Unit
	Budget      model.Budget
}

// UnitSchedule is the row of one unit: twelve monthly amounts and their sum.
type UnitSchedule struct {
	Unit    model.Unit
	Monthly [MonthsPerYear]float64
	Annual  float64
}

// CategorySummary describes how a category was distributed.
// Warning holds a *common.DegenerateWeightError when nothing could be distributed.
type CategorySummary struct {
	Warning      error
	ScopeLabel   string
	Category     model.BudgetCategory
	Charge       MonthlyCharge
	Divisor      Divisor
	Total        float64
	Participants int
}

// Schedule is the computed twelve-month distribution of a budget.
// Rows are ordered by ascending unit number.
type Schedule struct {
	Rows    []UnitSchedule
	Summary []CategorySummary
	Budget  model.Budget
}

// BuildSchedule distributes every category of a budget across the units.
func BuildSchedule(in ScheduleInput) (*Schedule, error) {
	if err := validateBudget(in.Budget); err != nil {
		return nil, err
	}
	if err := validateUnits(in.Units); err != nil {
		return nil, err
	}
	for _, category := range in.Categories {
		if err := validateCategory(in.Budget.ID, category); err != nil {
			return nil, err
		}
	}

	units := sortedUnits(in.Units)
	schedule := &Schedule{
		Budget:  in.Budget,
		Rows:    make([]UnitSchedule, len(units)),
		Summary: make([]CategorySummary, 0, len(in.Categories)),
	}
	rowIndex := make(map[int64]int, len(units))
	for i, unit := range units {
		schedule.Rows[i].Unit = unit
		rowIndex[unit.ID] = i
	}

	for _, category := range in.Categories {
		participants := ResolveParticipants(category, units, in.Assignments[category.ID])
		shares := CalculateShares(category, in.Budget.ReserveFundPercentage, participants, units)

		summary := CategorySummary{
			Category:     category,
			Total:        category.PlannedAmount,
			Participants: len(participants),
			ScopeLabel:   ScopeLabel(category, participants),
			Charge:       shares.Charge,
			Divisor:      shares.Divisor,
		}
		if !shares.Divisor.Distributed() {
			summary.Warning = &common.DegenerateWeightError{
				BudgetID:   in.Budget.ID,
				CategoryID: category.ID,
			}
		}
		schedule.Summary = append(schedule.Summary, summary)

		for _, share := range shares.Shares {
			row := &schedule.Rows[rowIndex[share.UnitID]]
			for month := range row.Monthly {
				row.Monthly[month] += share.Amount
			}
		}
	}

	for i := range schedule.Rows {
		row := &schedule.Rows[i]
		var annual float64
		for _, amount := range row.Monthly {
			annual += amount
		}
		row.Annual = annual
	}

	return schedule, nil
}

// Row returns the schedule row of a unit.
func (s *Schedule) Row(unitID int64) (UnitSchedule, bool) {
	for _, row := range s.Rows {
		if row.Unit.ID == unitID {
			return row, true
		}
	}
	return UnitSchedule{}, false
}

// Total returns the sum of every unit's annual total.
func (s *Schedule) Total() float64 {
	var total float64
	for _, row := range s.Rows {
		total += row.Annual
	}
	return total
}

// Warnings returns the degenerate-weight warnings raised by the categories.
func (s *Schedule) Warnings() []error {
	var warnings []error
	for _, summary := range s.Summary {
		if summary.Warning != nil {
			warnings = append(warnings, summary.Warning)
		}
	}
	return warnings
}

// Items returns one schedule item per unit and month with a positive amount.
// ScheduleID is left zero for the storage layer to fill in.
func (s *Schedule) Items() []model.ScheduleItem {
	items := make([]model.ScheduleItem, 0, len(s.Rows)*MonthsPerYear)
	for _, row := range s.Rows {
		for month, amount := range row.Monthly {
			if amount > 0 {
				items = append(items, model.ScheduleItem{
					UnitID:     row.Unit.ID,
					MonthIndex: month,
					Amount:     amount,
				})
			}
		}
	}
	return items
}

// String summarizes the schedule for logs.
func (s *Schedule) String() string {
	return fmt.Sprintf("budget %d (%d): %d units, %d categories, %.2f total",
		s.Budget.ID, s.Budget.Year, len(s.Rows), len(s.Summary), s.Total())
}

func sortedUnits(units []model.Unit) []model.Unit {
	sorted := append([]model.Unit(nil), units...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Number < sorted[j].Number
	})
	return sorted
}

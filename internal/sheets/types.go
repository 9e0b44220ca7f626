package sheets

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/condo-quotas/internal/export"
	"github.com/Veraticus/condo-quotas/internal/quota"
)

// ScheduleRow is one unit line of the quota tab.
type ScheduleRow struct {
	Unit    string
	Monthly [quota.MonthsPerYear]decimal.Decimal
	Annual  decimal.Decimal
}

// CategoryRow is one line of the category summary below the matrix.
type CategoryRow struct {
	Name         string
	Scope        string
	Divisor      string
	Monthly      decimal.Decimal
	Total        decimal.Decimal
	Participants int
}

// ScheduleReport is the data written to the quota tab.
type ScheduleReport struct {
	GeneratedAt time.Time
	Title       string
	Rows        []ScheduleRow
	Categories  []CategoryRow
	Total       decimal.Decimal
}

// NewScheduleReport converts a computed schedule into rounded report rows.
func NewScheduleReport(s *quota.Schedule, title string, now time.Time) *ScheduleReport {
	report := &ScheduleReport{
		Title:       title,
		GeneratedAt: now,
		Rows:        make([]ScheduleRow, 0, len(s.Rows)),
		Total:       export.Amount(s.Total()),
	}
	for _, row := range s.Rows {
		r := ScheduleRow{Unit: row.Unit.Number, Annual: export.Amount(row.Annual)}
		for i, amount := range row.Monthly {
			r.Monthly[i] = export.Amount(amount)
		}
		report.Rows = append(report.Rows, r)
	}
	for _, summary := range s.Summary {
		report.Categories = append(report.Categories, CategoryRow{
			Name:         summary.Category.Name,
			Scope:        summary.ScopeLabel,
			Divisor:      summary.Divisor.Kind.String(),
			Monthly:      export.Amount(summary.Charge.Total),
			Total:        export.Amount(summary.Total),
			Participants: summary.Participants,
		})
	}
	return report
}

// MonthTotals sums every unit column by month.
func (r *ScheduleReport) MonthTotals() [quota.MonthsPerYear]decimal.Decimal {
	var totals [quota.MonthsPerYear]decimal.Decimal
	for _, row := range r.Rows {
		for i, amount := range row.Monthly {
			totals[i] = totals[i].Add(amount)
		}
	}
	return totals
}

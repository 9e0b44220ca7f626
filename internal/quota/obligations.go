package quota

import (
	"fmt"
	"time"

	"github.com/Veraticus/condo-quotas/internal/model"
)

func newObligation(unitID int64, amount float64, month time.Time, notes string) model.PaymentObligation {
	return model.PaymentObligation{
		UnitID:    unitID,
		Amount:    amount,
		IssueDate: month,
		DueDate:   time.Date(month.Year(), month.Month(), DueDay, 0, 0, 0, 0, time.UTC),
		Period:    month.Format(model.PeriodLayout),
		Status:    model.ObligationPending,
		Notes:     notes,
	}
}

// BudgetObligations converts a schedule into pending obligations using the fiscal month mapping.
// Months with a zero amount produce no obligation.
func BudgetObligations(s *Schedule) []model.PaymentObligation {
	notes := fmt.Sprintf("Budget %d quota", s.Budget.Year)
	obligations := make([]model.PaymentObligation, 0, len(s.Rows)*MonthsPerYear)
	for _, row := range s.Rows {
		for index, amount := range row.Monthly {
			if amount <= 0 {
				continue
			}
			// index is always within [0,12) here.
			month, _ := FiscalMonth(s.Budget.Year, index)
			obligations = append(obligations, newObligation(row.Unit.ID, amount, month, notes))
		}
	}
	return obligations
}

// StandaloneObligations converts a standalone plan into pending obligations for consecutive
// calendar months beginning with start's month.
func StandaloneObligations(p *StandalonePlan, start time.Time) []model.PaymentObligation {
	notes := "Standalone quota: " + p.Request.Title
	obligations := make([]model.PaymentObligation, 0, len(p.Shares)*p.Request.DurationMonths)
	for _, share := range p.Shares {
		if share.Amount <= 0 {
			continue
		}
		for offset := 0; offset < p.Request.DurationMonths; offset++ {
			obligations = append(obligations, newObligation(share.UnitID, share.Amount, CalendarMonth(start, offset), notes))
		}
	}
	return obligations
}

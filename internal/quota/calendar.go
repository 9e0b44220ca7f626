package quota

import (
	"fmt"
	"time"
)

const (
	// IssueDay is the day of month an obligation is issued.
	IssueDay = 1
	// DueDay is the day of month an obligation falls due.
	DueDay = 15
)

// fiscalLabels are the month labels of budget schedule columns, in month-index order.
var fiscalLabels = [MonthsPerYear]string{
	"Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec", "Jan",
}

// MonthLabels returns the column labels of a budget schedule.
func MonthLabels() [MonthsPerYear]string {
	return fiscalLabels
}

// FiscalMonth maps a budget month index to the first day of its calendar month.
// The fiscal year runs from February of the budget year to January of the next.
func FiscalMonth(budgetYear, monthIndex int) (time.Time, error) {
	if monthIndex < 0 || monthIndex >= MonthsPerYear {
		return time.Time{}, fmt.Errorf("month index %d out of range [0,%d]", monthIndex, MonthsPerYear-1)
	}
	year := budgetYear
	month := time.Month(monthIndex + 2)
	if monthIndex == MonthsPerYear-1 {
		year++
		month = time.January
	}
	return time.Date(year, month, IssueDay, 0, 0, 0, 0, time.UTC), nil
}

// CalendarMonth returns the first day of the month offset months after start's month.
func CalendarMonth(start time.Time, offset int) time.Time {
	return time.Date(start.Year(), start.Month()+time.Month(offset), IssueDay, 0, 0, 0, 0, time.UTC)
}

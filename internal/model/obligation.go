package model

import "time"

// ObligationStatus tracks payment of an obligation. Only pending is written by this module.
type ObligationStatus string

// Obligation status constants.
const (
	ObligationPending ObligationStatus = "pending"
	ObligationPaid    ObligationStatus = "paid"
	ObligationOverdue ObligationStatus = "overdue"
)

// PeriodLayout formats the year-month period of an obligation.
const PeriodLayout = "2006-01"

// PaymentObligation is a dated charge owed by a unit.
type PaymentObligation struct {
	IssueDate  time.Time
	DueDate    time.Time
	Period     string
	Status     ObligationStatus
	Notes      string
	ID         int64
	UnitID     int64
	ScheduleID int64
	Amount     float64
}

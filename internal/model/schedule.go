package model

import "time"

// ScheduleStatus is the lifecycle state of a persisted schedule snapshot.
type ScheduleStatus string

// Schedule status constants.
const (
	ScheduleDraft     ScheduleStatus = "draft"
	ScheduleFinalized ScheduleStatus = "finalized"
)

// ScheduleSnapshot is an immutable, versioned record of a finalized distribution.
// BudgetID is nil for standalone quotas.
type ScheduleSnapshot struct {
	GeneratedAt    time.Time
	BudgetID       *int64
	Title          string
	Status         ScheduleStatus
	Notes          string
	ID             int64
	CondominiumID  int64
	BudgetYear     int
	Version        int
	DurationMonths int
	TotalAmount    float64
	Standalone     bool
}

// ScheduleItem is the amount owed by one unit for one month of a snapshot.
type ScheduleItem struct {
	ScheduleID int64
	UnitID     int64
	MonthIndex int
	Amount     float64
}

// StandaloneQuota is a request for a one-off lump sum spread over consecutive months.
type StandaloneQuota struct {
	Title          string
	Notes          string
	CondominiumID  int64
	DurationMonths int
	TotalAmount    float64
}

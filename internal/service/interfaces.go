// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/Veraticus/condo-quotas/internal/model"
)

// ClearResult counts the rows removed when a budget's schedules are cleared.
type ClearResult struct {
	Schedules   int64
	Items       int64
	Obligations int64
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Condominium and unit operations
	CreateCondominium(ctx context.Context, name string) (int64, error)
	FindCondominium(ctx context.Context, name string) (int64, error)
	SaveUnit(ctx context.Context, unit *model.Unit) error
	GetUnits(ctx context.Context, condominiumID int64) ([]model.Unit, error)

	// Budget operations
	SaveBudget(ctx context.Context, budget *model.Budget) error
	GetBudget(ctx context.Context, id int64) (*model.Budget, error)
	GetBudgetByYear(ctx context.Context, condominiumID int64, year int) (*model.Budget, error)
	SaveCategory(ctx context.Context, category *model.BudgetCategory) error
	GetCategories(ctx context.Context, budgetID int64) ([]model.BudgetCategory, error)
	AssignUnits(ctx context.Context, categoryID int64, unitIDs []int64) error
	GetAssignments(ctx context.Context, budgetID int64) (map[int64][]int64, error)

	// Schedule operations
	SaveSchedule(ctx context.Context, snapshot *model.ScheduleSnapshot) error
	GetSchedule(ctx context.Context, id int64) (*model.ScheduleSnapshot, error)
	ListSchedules(ctx context.Context, condominiumID int64) ([]model.ScheduleSnapshot, error)
	HasFinalizedSchedule(ctx context.Context, budgetID int64) (bool, error)
	NextScheduleVersion(ctx context.Context, budgetID int64) (int, error)
	SaveScheduleItems(ctx context.Context, items []model.ScheduleItem) error
	GetScheduleItems(ctx context.Context, scheduleID int64) ([]model.ScheduleItem, error)
	ClearBudgetSchedules(ctx context.Context, budgetID int64) (ClearResult, error)

	// Obligation operations
	SaveObligations(ctx context.Context, obligations []model.PaymentObligation) error
	GetObligations(ctx context.Context, scheduleID int64) ([]model.PaymentObligation, error)
	GetUnitObligations(ctx context.Context, unitID int64) ([]model.PaymentObligation, error)
	UpdateObligationStatus(ctx context.Context, id int64, status model.ObligationStatus) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

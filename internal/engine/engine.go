// Package engine orchestrates quota schedule generation. It loads budgets and units from
// storage, computes schedules, and persists finalization runs atomically under a per-key lock.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/events"
	"github.com/Veraticus/condo-quotas/internal/lock"
	"github.com/Veraticus/condo-quotas/internal/model"
	"github.com/Veraticus/condo-quotas/internal/quota"
	"github.com/Veraticus/condo-quotas/internal/service"
)

// Engine computes and finalizes quota schedules.
type Engine struct {
	storage   service.Storage
	locker    lock.Locker
	publisher events.Publisher
	clock     func() time.Time
	runID     func() string
}

// Config holds the replaceable collaborators of the engine.
type Config struct {
	Clock func() time.Time
	RunID func() string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Clock: time.Now,
		RunID: uuid.NewString,
	}
}

// New creates an engine. A nil locker serializes runs in process only; a nil publisher
// publishes nothing.
func New(storage service.Storage, locker lock.Locker, publisher events.Publisher) *Engine {
	return NewWithConfig(storage, locker, publisher, DefaultConfig())
}

// NewWithConfig creates an engine with a custom configuration.
func NewWithConfig(storage service.Storage, locker lock.Locker, publisher events.Publisher, config Config) *Engine {
	if locker == nil {
		locker = lock.NewMemory()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	defaults := DefaultConfig()
	if config.Clock == nil {
		config.Clock = defaults.Clock
	}
	if config.RunID == nil {
		config.RunID = defaults.RunID
	}
	return &Engine{
		storage:   storage,
		locker:    locker,
		publisher: publisher,
		clock:     config.Clock,
		runID:     config.RunID,
	}
}

// Preview computes the schedule of a budget without persisting anything.
func (e *Engine) Preview(ctx context.Context, budgetID int64) (*quota.Schedule, error) {
	input, err := e.loadInput(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	schedule, err := quota.BuildSchedule(input)
	if err != nil {
		return nil, err
	}
	logWarnings(slog.Default(), schedule)
	return schedule, nil
}

// PreviewYear computes the schedule of a condominium's budget for a year.
func (e *Engine) PreviewYear(ctx context.Context, condominiumID int64, year int) (*quota.Schedule, error) {
	budget, err := e.storage.GetBudgetByYear(ctx, condominiumID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to load budget: %w", err)
	}
	return e.Preview(ctx, budget.ID)
}

func (e *Engine) loadInput(ctx context.Context, budgetID int64) (quota.ScheduleInput, error) {
	if budgetID <= 0 {
		return quota.ScheduleInput{}, common.NewValidationError("budget_id", budgetID, "must be positive")
	}

	budget, err := e.storage.GetBudget(ctx, budgetID)
	if err != nil {
		return quota.ScheduleInput{}, fmt.Errorf("failed to load budget: %w", err)
	}
	categories, err := e.storage.GetCategories(ctx, budgetID)
	if err != nil {
		return quota.ScheduleInput{}, fmt.Errorf("failed to load categories of budget %d: %w", budgetID, err)
	}
	assignments, err := e.storage.GetAssignments(ctx, budgetID)
	if err != nil {
		return quota.ScheduleInput{}, fmt.Errorf("failed to load assignments of budget %d: %w", budgetID, err)
	}
	units, err := e.storage.GetUnits(ctx, budget.CondominiumID)
	if err != nil {
		return quota.ScheduleInput{}, fmt.Errorf("failed to load units of condominium %d: %w", budget.CondominiumID, err)
	}

	slog.Debug("loaded budget",
		"budget_id", budgetID,
		"categories", len(categories),
		"units", len(units))

	return quota.ScheduleInput{
		Budget:      *budget,
		Categories:  categories,
		Assignments: assignments,
		Units:       units,
	}, nil
}

func logWarnings(logger *slog.Logger, s *quota.Schedule) {
	for _, warning := range s.Warnings() {
		logger.Warn("category not distributed", "budget_id", s.Budget.ID, "error", warning)
	}
}

// ListSchedules returns saved snapshots, newest first. A zero condominium lists all of them.
func (e *Engine) ListSchedules(ctx context.Context, condominiumID int64) ([]model.ScheduleSnapshot, error) {
	snapshots, err := e.storage.ListSchedules(ctx, condominiumID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return snapshots, nil
}

// ScheduleDetail is a saved snapshot with its rows.
type ScheduleDetail struct {
	Snapshot    *model.ScheduleSnapshot
	Items       []model.ScheduleItem
	Obligations []model.PaymentObligation
}

// GetSchedule loads a saved snapshot with its items and obligations.
func (e *Engine) GetSchedule(ctx context.Context, scheduleID int64) (*ScheduleDetail, error) {
	snapshot, err := e.storage.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	items, err := e.storage.GetScheduleItems(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items of schedule %d: %w", scheduleID, err)
	}
	obligations, err := e.storage.GetObligations(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load obligations of schedule %d: %w", scheduleID, err)
	}
	return &ScheduleDetail{Snapshot: snapshot, Items: items, Obligations: obligations}, nil
}

// ClearSchedules deletes every snapshot of a budget and its pending obligations, so the budget
// can be finalized again. Settled obligations are kept.
func (e *Engine) ClearSchedules(ctx context.Context, budgetID int64) (service.ClearResult, error) {
	if budgetID <= 0 {
		return service.ClearResult{}, common.NewValidationError("budget_id", budgetID, "must be positive")
	}
	if _, err := e.storage.GetBudget(ctx, budgetID); err != nil {
		return service.ClearResult{}, fmt.Errorf("failed to load budget: %w", err)
	}

	held, err := e.locker.Acquire(ctx, lock.BudgetKey(budgetID))
	if err != nil {
		return service.ClearResult{}, err
	}
	defer release(ctx, held)

	result, err := e.storage.ClearBudgetSchedules(ctx, budgetID)
	if err != nil {
		return service.ClearResult{}, &common.PersistenceError{Op: "clear schedules", BudgetID: budgetID, Err: err}
	}

	slog.Info("cleared budget schedules",
		"budget_id", budgetID,
		"schedules", result.Schedules,
		"obligations", result.Obligations)
	return result, nil
}

func release(ctx context.Context, held lock.Lock) {
	if err := held.Release(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("failed to release lock", "error", err)
	}
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/events"
	"github.com/Veraticus/condo-quotas/internal/lock"
	"github.com/Veraticus/condo-quotas/internal/model"
	"github.com/Veraticus/condo-quotas/internal/quota"
)

// notesLayout is the date format of generated snapshot notes.
const notesLayout = "2006-01-02"

// FinalizeOptions tunes a finalization run.
// Progress, when set, is called after the obligations of each unit are written.
type FinalizeOptions struct {
	Progress func(done, total int)
}

// Result describes a committed finalization run. Schedule is nil for standalone quotas and
// Plan is nil for budget schedules.
type Result struct {
	Schedule    *quota.Schedule
	Plan        *quota.StandalonePlan
	RunID       string
	Snapshot    model.ScheduleSnapshot
	Obligations []model.PaymentObligation
	Items       int
}

// run is one unit of work written inside a single transaction.
type run struct {
	progress    func(done, total int)
	logger      *slog.Logger
	snapshot    *model.ScheduleSnapshot
	items       []model.ScheduleItem
	obligations []model.PaymentObligation
	budgetID    int64
}

// Finalize computes the schedule of a budget and persists the snapshot, its items, and the
// pending obligations in one transaction. A budget that already has a finalized snapshot is
// rejected with common.ErrAlreadyFinalized; clear it first to regenerate.
func (e *Engine) Finalize(ctx context.Context, budgetID int64, opts FinalizeOptions) (*Result, error) {
	runID := e.runID()
	logger := slog.With("run_id", runID, "budget_id", budgetID)

	held, err := e.locker.Acquire(ctx, lock.BudgetKey(budgetID))
	if err != nil {
		return nil, err
	}
	defer release(ctx, held)

	input, err := e.loadInput(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	schedule, err := quota.BuildSchedule(input)
	if err != nil {
		return nil, err
	}
	logWarnings(logger, schedule)

	now := e.clock()
	snapshot := model.ScheduleSnapshot{
		BudgetID:       &budgetID,
		CondominiumID:  input.Budget.CondominiumID,
		BudgetYear:     input.Budget.Year,
		Title:          fmt.Sprintf("Budget %d", input.Budget.Year),
		TotalAmount:    schedule.Total(),
		DurationMonths: quota.MonthsPerYear,
		GeneratedAt:    now,
		Status:         model.ScheduleFinalized,
		Notes:          "Generated automatically on " + now.Format(notesLayout),
	}

	r := &run{
		logger:      logger,
		progress:    opts.Progress,
		snapshot:    &snapshot,
		items:       schedule.Items(),
		obligations: quota.BudgetObligations(schedule),
		budgetID:    budgetID,
	}
	if err := e.commit(ctx, r); err != nil {
		return nil, err
	}
	e.announce(ctx, runID, r)

	logger.Info("budget schedule finalized",
		"schedule_id", snapshot.ID,
		"version", snapshot.Version,
		"obligations", len(r.obligations))

	return &Result{
		RunID:       runID,
		Schedule:    schedule,
		Snapshot:    snapshot,
		Items:       len(r.items),
		Obligations: r.obligations,
	}, nil
}

// CreateStandalone spreads a one-off amount over consecutive calendar months starting with the
// current month and persists it like a finalized budget schedule.
func (e *Engine) CreateStandalone(ctx context.Context, req model.StandaloneQuota, opts FinalizeOptions) (*Result, error) {
	runID := e.runID()
	logger := slog.With("run_id", runID, "condominium_id", req.CondominiumID, "title", req.Title)

	if req.CondominiumID <= 0 {
		return nil, common.NewValidationError("condominium_id", req.CondominiumID, "must be positive")
	}

	held, err := e.locker.Acquire(ctx, lock.StandaloneKey(req.CondominiumID, req.Title))
	if err != nil {
		return nil, err
	}
	defer release(ctx, held)

	units, err := e.storage.GetUnits(ctx, req.CondominiumID)
	if err != nil {
		return nil, fmt.Errorf("failed to load units of condominium %d: %w", req.CondominiumID, err)
	}
	plan, err := quota.PlanStandalone(req, units)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	start := time.Date(now.Year(), now.Month(), quota.IssueDay, 0, 0, 0, 0, time.UTC)
	snapshot := model.ScheduleSnapshot{
		CondominiumID:  req.CondominiumID,
		Standalone:     true,
		Title:          req.Title,
		TotalAmount:    req.TotalAmount,
		DurationMonths: req.DurationMonths,
		Version:        1,
		GeneratedAt:    now,
		Status:         model.ScheduleFinalized,
		Notes:          req.Notes,
	}

	r := &run{
		logger:      logger,
		progress:    opts.Progress,
		snapshot:    &snapshot,
		items:       plan.Items(),
		obligations: quota.StandaloneObligations(plan, start),
	}
	if err := e.commit(ctx, r); err != nil {
		return nil, err
	}
	e.announce(ctx, runID, r)

	logger.Info("standalone quota created",
		"schedule_id", snapshot.ID,
		"months", req.DurationMonths,
		"obligations", len(r.obligations))

	return &Result{
		RunID:       runID,
		Plan:        plan,
		Snapshot:    snapshot,
		Items:       len(r.items),
		Obligations: r.obligations,
	}, nil
}

// commit writes a run in one transaction. Every return path other than a successful commit
// rolls back.
func (e *Engine) commit(ctx context.Context, r *run) error {
	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return &common.PersistenceError{Op: "begin transaction", BudgetID: r.budgetID, Err: err}
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Warn("rollback failed", "error", rbErr)
		}
	}()

	if r.budgetID != 0 {
		finalized, checkErr := tx.HasFinalizedSchedule(ctx, r.budgetID)
		if checkErr != nil {
			return &common.PersistenceError{Op: "check finalized schedule", BudgetID: r.budgetID, Err: checkErr}
		}
		if finalized {
			return fmt.Errorf("budget %d: %w", r.budgetID, common.ErrAlreadyFinalized)
		}
		version, versionErr := tx.NextScheduleVersion(ctx, r.budgetID)
		if versionErr != nil {
			return &common.PersistenceError{Op: "allocate schedule version", BudgetID: r.budgetID, Err: versionErr}
		}
		r.snapshot.Version = version
	}

	if err := tx.SaveSchedule(ctx, r.snapshot); err != nil {
		return &common.PersistenceError{Op: "save schedule", BudgetID: r.budgetID, Err: err}
	}
	scheduleID := r.snapshot.ID

	for i := range r.items {
		r.items[i].ScheduleID = scheduleID
	}
	if err := tx.SaveScheduleItems(ctx, r.items); err != nil {
		return &common.PersistenceError{Op: "save schedule items", BudgetID: r.budgetID, ScheduleID: scheduleID, Err: err}
	}

	for i := range r.obligations {
		r.obligations[i].ScheduleID = scheduleID
	}
	batches := byUnit(r.obligations)
	for done, batch := range batches {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &common.PersistenceError{Op: "save obligations", BudgetID: r.budgetID, ScheduleID: scheduleID, Err: ctxErr}
		}
		if err := tx.SaveObligations(ctx, batch); err != nil {
			return &common.PersistenceError{
				Op:         "save obligations",
				BudgetID:   r.budgetID,
				ScheduleID: scheduleID,
				UnitID:     batch[0].UnitID,
				Err:        err,
			}
		}
		if r.progress != nil {
			r.progress(done+1, len(batches))
		}
	}

	if err := tx.Commit(); err != nil {
		return &common.PersistenceError{Op: "commit", BudgetID: r.budgetID, ScheduleID: scheduleID, Err: err}
	}
	committed = true
	return nil
}

// byUnit splits obligations into runs of the same unit. The slices share the backing array
// so IDs set by storage are visible through the original slice.
func byUnit(obligations []model.PaymentObligation) [][]model.PaymentObligation {
	var batches [][]model.PaymentObligation
	start := 0
	for i := 1; i <= len(obligations); i++ {
		if i == len(obligations) || obligations[i].UnitID != obligations[start].UnitID {
			batches = append(batches, obligations[start:i])
			start = i
		}
	}
	return batches
}

// announce publishes the created obligations. The run is already committed, so failures are
// only logged.
func (e *Engine) announce(ctx context.Context, runID string, r *run) {
	msg := events.NewObligationsCreated(runID, *r.snapshot, r.obligations, e.clock())
	if err := e.publisher.PublishObligationsCreated(ctx, msg); err != nil {
		common.LogError(ctx, err, "failed to publish created obligations", common.Fields{
			"run_id":      runID,
			"schedule_id": r.snapshot.ID,
		})
	}
}

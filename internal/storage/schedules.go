package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Veraticus/condo-quotas/internal/model"
	"github.com/Veraticus/condo-quotas/internal/service"
)

const scheduleColumns = `id, budget_id, condominium_id, budget_year, is_standalone, title, total_amount,
	duration_months, version, status, notes, generated_at`

// budgetSchedules selects the schedule IDs of one budget.
const budgetSchedules = `SELECT id FROM quota_schedules WHERE budget_id = ?`

// SaveSchedule inserts a schedule snapshot and sets its ID. Snapshots are never updated.
func (s *SQLiteStorage) SaveSchedule(ctx context.Context, snapshot *model.ScheduleSnapshot) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveSchedule(ctx, s.db, snapshot)
}

// GetSchedule returns a schedule snapshot by ID.
func (s *SQLiteStorage) GetSchedule(ctx context.Context, id int64) (*model.ScheduleSnapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getSchedule(ctx, s.db, id)
}

// ListSchedules returns the snapshots of a condominium, newest first.
// A zero condominiumID lists every condominium.
func (s *SQLiteStorage) ListSchedules(ctx context.Context, condominiumID int64) ([]model.ScheduleSnapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listSchedules(ctx, s.db, condominiumID)
}

// HasFinalizedSchedule reports whether a budget already has a finalized snapshot.
func (s *SQLiteStorage) HasFinalizedSchedule(ctx context.Context, budgetID int64) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return hasFinalizedSchedule(ctx, s.db, budgetID)
}

// NextScheduleVersion reserves the next snapshot version of a budget. Versions keep increasing
// after schedules are cleared.
func (s *SQLiteStorage) NextScheduleVersion(ctx context.Context, budgetID int64) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return nextScheduleVersion(ctx, s.db, budgetID)
}

// SaveScheduleItems inserts schedule items.
func (s *SQLiteStorage) SaveScheduleItems(ctx context.Context, items []model.ScheduleItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveScheduleItems(ctx, tx, items); err != nil {
		return err
	}
	return tx.Commit()
}

// GetScheduleItems returns the items of a snapshot ordered by unit and month.
func (s *SQLiteStorage) GetScheduleItems(ctx context.Context, scheduleID int64) ([]model.ScheduleItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getScheduleItems(ctx, s.db, scheduleID)
}

// ClearBudgetSchedules deletes a budget's snapshots, their items and their pending obligations.
// Obligations that are already paid or overdue are kept and detached from the deleted snapshot.
func (s *SQLiteStorage) ClearBudgetSchedules(ctx context.Context, budgetID int64) (service.ClearResult, error) {
	if err := validateContext(ctx); err != nil {
		return service.ClearResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return service.ClearResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := clearBudgetSchedules(ctx, tx, budgetID)
	if err != nil {
		return service.ClearResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return service.ClearResult{}, fmt.Errorf("failed to commit clear: %w", err)
	}
	return result, nil
}

func saveSchedule(ctx context.Context, q querier, snapshot *model.ScheduleSnapshot) error {
	if err := validateSnapshot(snapshot); err != nil {
		return err
	}

	var budgetYear sql.NullInt64
	if !snapshot.Standalone {
		budgetYear = sql.NullInt64{Int64: int64(snapshot.BudgetYear), Valid: true}
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO quota_schedules (
			budget_id, condominium_id, budget_year, is_standalone, title, total_amount,
			duration_months, version, status, notes, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshot.BudgetID, snapshot.CondominiumID, budgetYear, snapshot.Standalone, snapshot.Title,
		snapshot.TotalAmount, snapshot.DurationMonths, snapshot.Version, string(snapshot.Status),
		snapshot.Notes, snapshot.GeneratedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get schedule ID: %w", err)
	}
	snapshot.ID = id
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*model.ScheduleSnapshot, error) {
	var snapshot model.ScheduleSnapshot
	var budgetID, budgetYear sql.NullInt64
	var status string
	err := row.Scan(&snapshot.ID, &budgetID, &snapshot.CondominiumID, &budgetYear, &snapshot.Standalone,
		&snapshot.Title, &snapshot.TotalAmount, &snapshot.DurationMonths, &snapshot.Version, &status,
		&snapshot.Notes, &snapshot.GeneratedAt)
	if err != nil {
		return nil, err
	}
	if budgetID.Valid {
		id := budgetID.Int64
		snapshot.BudgetID = &id
	}
	snapshot.BudgetYear = int(budgetYear.Int64)
	snapshot.Status = model.ScheduleStatus(status)
	return &snapshot, nil
}

func getSchedule(ctx context.Context, q querier, id int64) (*model.ScheduleSnapshot, error) {
	if err := validateID(id, "schedule_id"); err != nil {
		return nil, err
	}
	snapshot, err := scanSchedule(q.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM quota_schedules WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "schedule", id)
	}
	return snapshot, nil
}

func listSchedules(ctx context.Context, q querier, condominiumID int64) ([]model.ScheduleSnapshot, error) {
	query := `SELECT ` + scheduleColumns + ` FROM quota_schedules`
	var args []any
	if condominiumID != 0 {
		query += ` WHERE condominium_id = ?`
		args = append(args, condominiumID)
	}
	query += ` ORDER BY generated_at DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []model.ScheduleSnapshot
	for rows.Next() {
		snapshot, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		snapshots = append(snapshots, *snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}
	return snapshots, nil
}

func hasFinalizedSchedule(ctx context.Context, q querier, budgetID int64) (bool, error) {
	if err := validateID(budgetID, "budget_id"); err != nil {
		return false, err
	}
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM quota_schedules WHERE budget_id = ? AND status = ?)`,
		budgetID, string(model.ScheduleFinalized)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check finalized schedules: %w", err)
	}
	return exists, nil
}

func nextScheduleVersion(ctx context.Context, q querier, budgetID int64) (int, error) {
	if err := validateID(budgetID, "budget_id"); err != nil {
		return 0, err
	}
	var version int
	err := q.QueryRowContext(ctx, `
		UPDATE budgets SET schedule_version = schedule_version + 1
		WHERE id = ?
		RETURNING schedule_version`, budgetID).Scan(&version)
	if err != nil {
		return 0, notFound(err, "budget", budgetID)
	}
	return version, nil
}

func saveScheduleItems(ctx context.Context, q querier, items []model.ScheduleItem) error {
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		if err := validateItem(item); err != nil {
			return err
		}
	}

	stmt, err := q.PrepareContext(ctx, `
		INSERT INTO quota_schedule_items (schedule_id, unit_id, month_index, amount)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, item.ScheduleID, item.UnitID, item.MonthIndex, item.Amount); err != nil {
			return fmt.Errorf("failed to insert item for unit %d month %d: %w", item.UnitID, item.MonthIndex, err)
		}
	}

	slog.Debug("saved schedule items", "schedule_id", items[0].ScheduleID, "count", len(items))
	return nil
}

func getScheduleItems(ctx context.Context, q querier, scheduleID int64) ([]model.ScheduleItem, error) {
	if err := validateID(scheduleID, "schedule_id"); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT schedule_id, unit_id, month_index, amount
		FROM quota_schedule_items
		WHERE schedule_id = ?
		ORDER BY unit_id, month_index`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.ScheduleItem
	for rows.Next() {
		var item model.ScheduleItem
		if err := rows.Scan(&item.ScheduleID, &item.UnitID, &item.MonthIndex, &item.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan schedule item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule items: %w", err)
	}
	return items, nil
}

func clearBudgetSchedules(ctx context.Context, q querier, budgetID int64) (service.ClearResult, error) {
	var result service.ClearResult
	if err := validateID(budgetID, "budget_id"); err != nil {
		return result, err
	}

	steps := []struct {
		count *int64
		name  string
		query string
		args  []any
	}{
		{
			name:  "pending obligations",
			query: `DELETE FROM payment_obligations WHERE status = ? AND schedule_id IN (` + budgetSchedules + `)`,
			args:  []any{string(model.ObligationPending), budgetID},
			count: &result.Obligations,
		},
		{
			name:  "settled obligations",
			query: `UPDATE payment_obligations SET schedule_id = NULL WHERE schedule_id IN (` + budgetSchedules + `)`,
			args:  []any{budgetID},
		},
		{
			name:  "schedule items",
			query: `DELETE FROM quota_schedule_items WHERE schedule_id IN (` + budgetSchedules + `)`,
			args:  []any{budgetID},
			count: &result.Items,
		},
		{
			name:  "schedules",
			query: `DELETE FROM quota_schedules WHERE budget_id = ?`,
			args:  []any{budgetID},
			count: &result.Schedules,
		},
	}

	for _, step := range steps {
		res, err := q.ExecContext(ctx, step.query, step.args...)
		if err != nil {
			return service.ClearResult{}, fmt.Errorf("failed to clear %s of budget %d: %w", step.name, budgetID, err)
		}
		if step.count == nil {
			continue
		}
		if *step.count, err = res.RowsAffected(); err != nil {
			return service.ClearResult{}, fmt.Errorf("failed to get rows affected: %w", err)
		}
	}

	slog.Info("cleared budget schedules",
		"budget_id", budgetID,
		"schedules", result.Schedules,
		"items", result.Items,
		"obligations", result.Obligations)
	return result, nil
}

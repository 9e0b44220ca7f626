package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/model"
)

// dateLayout is the storage form of obligation dates.
const dateLayout = "2006-01-02"

// SaveObligations inserts payment obligations and sets their IDs.
func (s *SQLiteStorage) SaveObligations(ctx context.Context, obligations []model.PaymentObligation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveObligations(ctx, tx, obligations); err != nil {
		return err
	}
	return tx.Commit()
}

// GetObligations returns the obligations created by a snapshot.
func (s *SQLiteStorage) GetObligations(ctx context.Context, scheduleID int64) ([]model.PaymentObligation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getObligations(ctx, s.db, "schedule_id", scheduleID)
}

// GetUnitObligations returns every obligation of a unit, including detached ones.
func (s *SQLiteStorage) GetUnitObligations(ctx context.Context, unitID int64) ([]model.PaymentObligation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getObligations(ctx, s.db, "unit_id", unitID)
}

// UpdateObligationStatus records the payment state of an obligation.
func (s *SQLiteStorage) UpdateObligationStatus(ctx context.Context, id int64, status model.ObligationStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return updateObligationStatus(ctx, s.db, id, status)
}

func saveObligations(ctx context.Context, q querier, obligations []model.PaymentObligation) error {
	if len(obligations) == 0 {
		return nil
	}
	for _, obligation := range obligations {
		if err := validateObligation(obligation); err != nil {
			return err
		}
	}

	stmt, err := q.PrepareContext(ctx, `
		INSERT INTO payment_obligations (unit_id, schedule_id, amount, issue_date, due_date, period, status, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range obligations {
		obligation := &obligations[i]
		var scheduleID sql.NullInt64
		if obligation.ScheduleID > 0 {
			scheduleID = sql.NullInt64{Int64: obligation.ScheduleID, Valid: true}
		}

		result, err := stmt.ExecContext(ctx,
			obligation.UnitID, scheduleID, obligation.Amount,
			obligation.IssueDate.Format(dateLayout), obligation.DueDate.Format(dateLayout),
			obligation.Period, string(obligation.Status), obligation.Notes)
		if err != nil {
			return fmt.Errorf("failed to insert obligation for unit %d period %s: %w", obligation.UnitID, obligation.Period, err)
		}
		if obligation.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get obligation ID: %w", err)
		}
	}

	slog.Debug("saved payment obligations", "count", len(obligations))
	return nil
}

// getObligations filters by one of the indexed reference columns.
func getObligations(ctx context.Context, q querier, column string, id int64) ([]model.PaymentObligation, error) {
	switch column {
	case "schedule_id", "unit_id":
	default:
		return nil, fmt.Errorf("unsupported obligation filter %q", column)
	}
	if err := validateID(id, column); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, unit_id, schedule_id, amount, issue_date, due_date, period, status, notes
		FROM payment_obligations
		WHERE `+column+` = ?
		ORDER BY unit_id, issue_date, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query obligations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var obligations []model.PaymentObligation
	for rows.Next() {
		var obligation model.PaymentObligation
		var scheduleID sql.NullInt64
		var status string
		if err := rows.Scan(&obligation.ID, &obligation.UnitID, &scheduleID, &obligation.Amount,
			&obligation.IssueDate, &obligation.DueDate, &obligation.Period, &status, &obligation.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan obligation: %w", err)
		}
		obligation.ScheduleID = scheduleID.Int64
		obligation.Status = model.ObligationStatus(status)
		obligations = append(obligations, obligation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating obligations: %w", err)
	}
	return obligations, nil
}

func updateObligationStatus(ctx context.Context, q querier, id int64, status model.ObligationStatus) error {
	if err := validateID(id, "obligation_id"); err != nil {
		return err
	}
	if err := validateObligationStatus(status); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `UPDATE payment_obligations SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update obligation %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("obligation %d: %w", id, common.ErrNotFound)
	}
	return nil
}

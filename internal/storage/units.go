package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/model"
)

// CreateCondominium creates a condominium, or returns the existing one with the same name.
func (s *SQLiteStorage) CreateCondominium(ctx context.Context, name string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return createCondominium(ctx, s.db, name)
}

// FindCondominium returns the ID of the condominium with the given name.
func (s *SQLiteStorage) FindCondominium(ctx context.Context, name string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return findCondominium(ctx, s.db, name)
}

// SaveUnit inserts a unit or updates the unit with the same number in its condominium.
func (s *SQLiteStorage) SaveUnit(ctx context.Context, unit *model.Unit) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveUnit(ctx, s.db, unit)
}

// GetUnits returns every unit of a condominium ordered by unit number.
func (s *SQLiteStorage) GetUnits(ctx context.Context, condominiumID int64) ([]model.Unit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getUnits(ctx, s.db, condominiumID)
}

func createCondominium(ctx context.Context, q querier, name string) (int64, error) {
	if err := validateString(name, "name"); err != nil {
		return 0, err
	}

	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO condominiums (name) VALUES (?)
		ON CONFLICT(name) DO UPDATE SET name = excluded.name
		RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save condominium: %w", err)
	}
	return id, nil
}

func findCondominium(ctx context.Context, q querier, name string) (int64, error) {
	if err := validateString(name, "name"); err != nil {
		return 0, err
	}

	var id int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM condominiums WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, notFound(err, "condominium", name)
	}
	return id, nil
}

func saveUnit(ctx context.Context, q querier, unit *model.Unit) error {
	if err := validateUnit(unit); err != nil {
		return err
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO units (condominium_id, number, unit_type, weight)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(condominium_id, number) DO UPDATE SET
			unit_type = excluded.unit_type,
			weight = excluded.weight
		RETURNING id`,
		unit.CondominiumID, unit.Number, string(unit.Type), unit.Weight,
	).Scan(&unit.ID)
	if err != nil {
		return fmt.Errorf("failed to save unit %s: %w", unit.Number, err)
	}
	return nil
}

func getUnits(ctx context.Context, q querier, condominiumID int64) ([]model.Unit, error) {
	if err := validateID(condominiumID, "condominium_id"); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, condominium_id, number, unit_type, weight
		FROM units
		WHERE condominium_id = ?
		ORDER BY number`, condominiumID)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var units []model.Unit
	for rows.Next() {
		var unit model.Unit
		var unitType string
		if err := rows.Scan(&unit.ID, &unit.CondominiumID, &unit.Number, &unitType, &unit.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		parsed, err := model.ParseUnitType(unitType)
		if err != nil {
			return nil, &common.ValidationError{Field: "unit_type", Value: unitType, Reason: err.Error(), UnitID: unit.ID}
		}
		unit.Type = parsed
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating units: %w", err)
	}

	slog.Debug("retrieved units", "condominium_id", condominiumID, "count", len(units))
	return units, nil
}

// notFound maps sql.ErrNoRows to common.ErrNotFound.
func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, common.ErrNotFound)
	}
	return fmt.Errorf("failed to query %s %v: %w", what, id, err)
}

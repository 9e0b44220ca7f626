package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS condominiums (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS units (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					condominium_id INTEGER NOT NULL,
					number TEXT NOT NULL,
					unit_type TEXT NOT NULL CHECK (unit_type IN ('residential', 'commercial', 'parking', 'other')),
					weight REAL NOT NULL DEFAULT 0 CHECK (weight >= 0),
					UNIQUE (condominium_id, number),
					FOREIGN KEY (condominium_id) REFERENCES condominiums(id)
				)`,
				`CREATE INDEX idx_units_condominium ON units(condominium_id)`,

				`CREATE TABLE IF NOT EXISTS budgets (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					condominium_id INTEGER NOT NULL,
					year INTEGER NOT NULL,
					total_amount REAL NOT NULL DEFAULT 0,
					reserve_fund_percentage REAL NOT NULL DEFAULT 10,
					description TEXT,
					UNIQUE (condominium_id, year),
					FOREIGN KEY (condominium_id) REFERENCES condominiums(id)
				)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add budget categories and custom unit assignments",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS budget_categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					budget_id INTEGER NOT NULL,
					name TEXT NOT NULL,
					planned_amount REAL NOT NULL DEFAULT 0,
					allocation_scope TEXT NOT NULL DEFAULT 'all',
					eligible_unit_types TEXT NOT NULL DEFAULT '',
					contributes_to_fcr BOOLEAN NOT NULL DEFAULT 1,
					FOREIGN KEY (budget_id) REFERENCES budgets(id)
				)`,
				`CREATE INDEX idx_budget_categories_budget ON budget_categories(budget_id)`,

				`CREATE TABLE IF NOT EXISTS budget_category_units (
					category_id INTEGER NOT NULL,
					unit_id INTEGER NOT NULL,
					PRIMARY KEY (category_id, unit_id),
					FOREIGN KEY (category_id) REFERENCES budget_categories(id),
					FOREIGN KEY (unit_id) REFERENCES units(id)
				)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Add quota schedules and schedule items",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE budgets ADD COLUMN schedule_version INTEGER NOT NULL DEFAULT 0`,

				`CREATE TABLE IF NOT EXISTS quota_schedules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					budget_id INTEGER,
					condominium_id INTEGER NOT NULL,
					budget_year INTEGER,
					is_standalone BOOLEAN NOT NULL DEFAULT 0,
					title TEXT NOT NULL DEFAULT '',
					total_amount REAL NOT NULL DEFAULT 0,
					duration_months INTEGER NOT NULL DEFAULT 12,
					version INTEGER NOT NULL DEFAULT 1,
					status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'finalized')),
					notes TEXT NOT NULL DEFAULT '',
					generated_at DATETIME NOT NULL,
					FOREIGN KEY (budget_id) REFERENCES budgets(id),
					FOREIGN KEY (condominium_id) REFERENCES condominiums(id)
				)`,
				`CREATE INDEX idx_quota_schedules_budget ON quota_schedules(budget_id)`,
				`CREATE INDEX idx_quota_schedules_condominium ON quota_schedules(condominium_id)`,

				`CREATE TABLE IF NOT EXISTS quota_schedule_items (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					schedule_id INTEGER NOT NULL,
					unit_id INTEGER NOT NULL,
					month_index INTEGER NOT NULL CHECK (month_index >= 0),
					amount REAL NOT NULL CHECK (amount >= 0),
					UNIQUE (schedule_id, unit_id, month_index),
					FOREIGN KEY (schedule_id) REFERENCES quota_schedules(id),
					FOREIGN KEY (unit_id) REFERENCES units(id)
				)`,
			})
		},
	},
	{
		Version:     4,
		Description: "Add payment obligations",
		Up: func(tx *sql.Tx) error {
			// schedule_id is cleared, not deleted, when a settled obligation outlives its schedule.
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS payment_obligations (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					unit_id INTEGER NOT NULL,
					schedule_id INTEGER,
					amount REAL NOT NULL CHECK (amount >= 0),
					issue_date DATE NOT NULL,
					due_date DATE NOT NULL,
					period TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'paid', 'overdue')),
					notes TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (unit_id) REFERENCES units(id),
					FOREIGN KEY (schedule_id) REFERENCES quota_schedules(id)
				)`,
				`CREATE INDEX idx_payment_obligations_schedule ON payment_obligations(schedule_id)`,
				`CREATE INDEX idx_payment_obligations_unit_period ON payment_obligations(unit_id, period)`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

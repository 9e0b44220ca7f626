package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/condo-quotas/internal/model"
	"github.com/Veraticus/condo-quotas/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// querier is satisfied by both *sql.DB and *sql.Tx so every query helper can run inside or
// outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps writers serialized; callers must not query through the
	// storage while a transaction is open.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// NewSQLiteStorageFromDB wraps an already opened database handle.
func NewSQLiteStorageFromDB(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{tx: tx}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx *sql.Tx
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}

// Transaction methods run the shared helpers against the open transaction.

func (t *sqliteTransaction) CreateCondominium(ctx context.Context, name string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return createCondominium(ctx, t.tx, name)
}

func (t *sqliteTransaction) FindCondominium(ctx context.Context, name string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return findCondominium(ctx, t.tx, name)
}

func (t *sqliteTransaction) SaveUnit(ctx context.Context, unit *model.Unit) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveUnit(ctx, t.tx, unit)
}

func (t *sqliteTransaction) GetUnits(ctx context.Context, condominiumID int64) ([]model.Unit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getUnits(ctx, t.tx, condominiumID)
}

func (t *sqliteTransaction) SaveBudget(ctx context.Context, budget *model.Budget) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveBudget(ctx, t.tx, budget)
}

func (t *sqliteTransaction) GetBudget(ctx context.Context, id int64) (*model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getBudget(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetBudgetByYear(ctx context.Context, condominiumID int64, year int) (*model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getBudgetByYear(ctx, t.tx, condominiumID, year)
}

func (t *sqliteTransaction) SaveCategory(ctx context.Context, category *model.BudgetCategory) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveCategory(ctx, t.tx, category)
}

func (t *sqliteTransaction) GetCategories(ctx context.Context, budgetID int64) ([]model.BudgetCategory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getCategories(ctx, t.tx, budgetID)
}

func (t *sqliteTransaction) AssignUnits(ctx context.Context, categoryID int64, unitIDs []int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return assignUnits(ctx, t.tx, categoryID, unitIDs)
}

func (t *sqliteTransaction) GetAssignments(ctx context.Context, budgetID int64) (map[int64][]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getAssignments(ctx, t.tx, budgetID)
}

func (t *sqliteTransaction) SaveSchedule(ctx context.Context, snapshot *model.ScheduleSnapshot) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveSchedule(ctx, t.tx, snapshot)
}

func (t *sqliteTransaction) GetSchedule(ctx context.Context, id int64) (*model.ScheduleSnapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getSchedule(ctx, t.tx, id)
}

func (t *sqliteTransaction) ListSchedules(ctx context.Context, condominiumID int64) ([]model.ScheduleSnapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listSchedules(ctx, t.tx, condominiumID)
}

func (t *sqliteTransaction) HasFinalizedSchedule(ctx context.Context, budgetID int64) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return hasFinalizedSchedule(ctx, t.tx, budgetID)
}

func (t *sqliteTransaction) NextScheduleVersion(ctx context.Context, budgetID int64) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return nextScheduleVersion(ctx, t.tx, budgetID)
}

func (t *sqliteTransaction) SaveScheduleItems(ctx context.Context, items []model.ScheduleItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveScheduleItems(ctx, t.tx, items)
}

func (t *sqliteTransaction) GetScheduleItems(ctx context.Context, scheduleID int64) ([]model.ScheduleItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getScheduleItems(ctx, t.tx, scheduleID)
}

func (t *sqliteTransaction) ClearBudgetSchedules(ctx context.Context, budgetID int64) (service.ClearResult, error) {
	if err := validateContext(ctx); err != nil {
		return service.ClearResult{}, err
	}
	return clearBudgetSchedules(ctx, t.tx, budgetID)
}

func (t *sqliteTransaction) SaveObligations(ctx context.Context, obligations []model.PaymentObligation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveObligations(ctx, t.tx, obligations)
}

func (t *sqliteTransaction) GetObligations(ctx context.Context, scheduleID int64) ([]model.PaymentObligation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getObligations(ctx, t.tx, "schedule_id", scheduleID)
}

func (t *sqliteTransaction) GetUnitObligations(ctx context.Context, unitID int64) ([]model.PaymentObligation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getObligations(ctx, t.tx, "unit_id", unitID)
}

func (t *sqliteTransaction) UpdateObligationStatus(ctx context.Context, id int64, status model.ObligationStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return updateObligationStatus(ctx, t.tx, id, status)
}

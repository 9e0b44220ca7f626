// Package testutil provides an in-memory database and seeding helpers for tests that need a
// real storage collaborator.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/condo-quotas/internal/model"
	"github.com/Veraticus/condo-quotas/internal/service"
	"github.com/Veraticus/condo-quotas/internal/storage"
)

// TestDB is a migrated in-memory database.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database. It is migrated and closed on cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// Condominium creates a condominium and returns its ID.
func (db *TestDB) Condominium(name string) int64 {
	db.t.Helper()
	id, err := db.Storage.CreateCondominium(context.Background(), name)
	if err != nil {
		db.t.Fatalf("failed to seed condominium %q: %v", name, err)
	}
	return id
}

// Unit saves a unit.
func (db *TestDB) Unit(condominiumID int64, number string, unitType model.UnitType, weight float64) model.Unit {
	db.t.Helper()
	unit := model.Unit{CondominiumID: condominiumID, Number: number, Type: unitType, Weight: weight}
	if err := db.Storage.SaveUnit(context.Background(), &unit); err != nil {
		db.t.Fatalf("failed to seed unit %q: %v", number, err)
	}
	return unit
}

// Budget saves a budget.
func (db *TestDB) Budget(condominiumID int64, year int, total, reservePct float64) model.Budget {
	db.t.Helper()
	budget := model.Budget{CondominiumID: condominiumID, Year: year, TotalAmount: total, ReserveFundPercentage: reservePct}
	if err := db.Storage.SaveBudget(context.Background(), &budget); err != nil {
		db.t.Fatalf("failed to seed budget %d: %v", year, err)
	}
	return budget
}

// Category saves a budget category. Eligible types only matter for unit_types scope.
func (db *TestDB) Category(budgetID int64, name string, planned float64, scope model.AllocationScope, fcr bool, eligible ...model.UnitType) model.BudgetCategory {
	db.t.Helper()
	set, err := model.NewUnitTypeSet(eligible...)
	if err != nil {
		db.t.Fatalf("invalid eligible types for %q: %v", name, err)
	}
	category := model.BudgetCategory{
		BudgetID:         budgetID,
		Name:             name,
		PlannedAmount:    planned,
		Scope:            scope,
		EligibleTypes:    set,
		ContributesToFCR: fcr,
	}
	if err := db.Storage.SaveCategory(context.Background(), &category); err != nil {
		db.t.Fatalf("failed to seed category %q: %v", name, err)
	}
	return category
}

// Assign replaces the custom assignments of a category.
func (db *TestDB) Assign(categoryID int64, units ...model.Unit) {
	db.t.Helper()
	ids := make([]int64, len(units))
	for i, unit := range units {
		ids[i] = unit.ID
	}
	if err := db.Storage.AssignUnits(context.Background(), categoryID, ids); err != nil {
		db.t.Fatalf("failed to assign units to category %d: %v", categoryID, err)
	}
}

// Scenario is a seeded condominium with one budget.
type Scenario struct {
	Units         map[string]model.Unit
	Categories    []model.BudgetCategory
	Budget        model.Budget
	CondominiumID int64
}

// SeedAurora2025 seeds units A (600) and B (400) and a 2025 budget with one 1200 cleaning
// category shared by all units, contributing to a reserve fund of reservePct.
func (db *TestDB) SeedAurora2025(reservePct float64) Scenario {
	db.t.Helper()
	condoID := db.Condominium("Edificio Aurora")
	s := Scenario{
		CondominiumID: condoID,
		Units: map[string]model.Unit{
			"A": db.Unit(condoID, "A", model.UnitTypeResidential, 600),
			"B": db.Unit(condoID, "B", model.UnitTypeResidential, 400),
		},
		Budget: db.Budget(condoID, 2025, 1200, reservePct),
	}
	s.Categories = append(s.Categories, db.Category(s.Budget.ID, "Cleaning", 1200, model.ScopeAll, true))
	return s
}

// WithTransaction runs fn in a transaction that is always rolled back.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	tx, err := db.Storage.BeginTx(context.Background())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}

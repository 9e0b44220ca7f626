package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/model"
)

const budgetColumns = `id, condominium_id, year, total_amount, reserve_fund_percentage, COALESCE(description, '')`

// SaveBudget inserts a budget or updates the budget of the same condominium and year.
func (s *SQLiteStorage) SaveBudget(ctx context.Context, budget *model.Budget) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveBudget(ctx, s.db, budget)
}

// GetBudget returns a budget by ID.
func (s *SQLiteStorage) GetBudget(ctx context.Context, id int64) (*model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getBudget(ctx, s.db, id)
}

// GetBudgetByYear returns the budget of a condominium for a year.
func (s *SQLiteStorage) GetBudgetByYear(ctx context.Context, condominiumID int64, year int) (*model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getBudgetByYear(ctx, s.db, condominiumID, year)
}

// SaveCategory inserts a new category, or updates it when ID is set.
func (s *SQLiteStorage) SaveCategory(ctx context.Context, category *model.BudgetCategory) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveCategory(ctx, s.db, category)
}

// GetCategories returns the categories of a budget in creation order.
func (s *SQLiteStorage) GetCategories(ctx context.Context, budgetID int64) ([]model.BudgetCategory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getCategories(ctx, s.db, budgetID)
}

// AssignUnits replaces the custom unit assignments of a category.
func (s *SQLiteStorage) AssignUnits(ctx context.Context, categoryID int64, unitIDs []int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := assignUnits(ctx, tx, categoryID, unitIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// GetAssignments returns the assigned unit IDs of every custom category of a budget, keyed by
// category ID.
func (s *SQLiteStorage) GetAssignments(ctx context.Context, budgetID int64) (map[int64][]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getAssignments(ctx, s.db, budgetID)
}

func saveBudget(ctx context.Context, q querier, budget *model.Budget) error {
	if err := validateBudget(budget); err != nil {
		return err
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO budgets (condominium_id, year, total_amount, reserve_fund_percentage, description)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(condominium_id, year) DO UPDATE SET
			total_amount = excluded.total_amount,
			reserve_fund_percentage = excluded.reserve_fund_percentage,
			description = excluded.description
		RETURNING id`,
		budget.CondominiumID, budget.Year, budget.TotalAmount, budget.ReserveFundPercentage, budget.Description,
	).Scan(&budget.ID)
	if err != nil {
		return fmt.Errorf("failed to save budget %d: %w", budget.Year, err)
	}
	return nil
}

func scanBudget(row *sql.Row) (*model.Budget, error) {
	var budget model.Budget
	err := row.Scan(&budget.ID, &budget.CondominiumID, &budget.Year,
		&budget.TotalAmount, &budget.ReserveFundPercentage, &budget.Description)
	if err != nil {
		return nil, err
	}
	return &budget, nil
}

func getBudget(ctx context.Context, q querier, id int64) (*model.Budget, error) {
	if err := validateID(id, "budget_id"); err != nil {
		return nil, err
	}
	budget, err := scanBudget(q.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "budget", id)
	}
	return budget, nil
}

func getBudgetByYear(ctx context.Context, q querier, condominiumID int64, year int) (*model.Budget, error) {
	if err := validateID(condominiumID, "condominium_id"); err != nil {
		return nil, err
	}
	budget, err := scanBudget(q.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE condominium_id = ? AND year = ?`, condominiumID, year))
	if err != nil {
		return nil, notFound(err, "budget for year", year)
	}
	return budget, nil
}

func saveCategory(ctx context.Context, q querier, category *model.BudgetCategory) error {
	if err := validateCategory(category); err != nil {
		return err
	}
	scope, _ := model.ParseAllocationScope(string(category.Scope))

	if category.ID > 0 {
		result, err := q.ExecContext(ctx, `
			UPDATE budget_categories
			SET name = ?, planned_amount = ?, allocation_scope = ?, eligible_unit_types = ?, contributes_to_fcr = ?
			WHERE id = ? AND budget_id = ?`,
			category.Name, category.PlannedAmount, string(scope), category.EligibleTypes.String(),
			category.ContributesToFCR, category.ID, category.BudgetID)
		if err != nil {
			return fmt.Errorf("failed to update category %q: %w", category.Name, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("category %d: %w", category.ID, common.ErrNotFound)
		}
		category.Scope = scope
		return nil
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO budget_categories (budget_id, name, planned_amount, allocation_scope, eligible_unit_types, contributes_to_fcr)
		VALUES (?, ?, ?, ?, ?, ?)`,
		category.BudgetID, category.Name, category.PlannedAmount, string(scope),
		category.EligibleTypes.String(), category.ContributesToFCR)
	if err != nil {
		return fmt.Errorf("failed to insert category %q: %w", category.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get category ID: %w", err)
	}
	category.ID = id
	category.Scope = scope
	return nil
}

func getCategories(ctx context.Context, q querier, budgetID int64) ([]model.BudgetCategory, error) {
	if err := validateID(budgetID, "budget_id"); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, budget_id, name, planned_amount, allocation_scope, eligible_unit_types, contributes_to_fcr
		FROM budget_categories
		WHERE budget_id = ?
		ORDER BY id`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.BudgetCategory
	for rows.Next() {
		var category model.BudgetCategory
		var scope, eligible string
		if err := rows.Scan(&category.ID, &category.BudgetID, &category.Name, &category.PlannedAmount,
			&scope, &eligible, &category.ContributesToFCR); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}

		// Stored text is only trusted after it parses.
		if category.Scope, err = model.ParseAllocationScope(scope); err != nil {
			return nil, &common.ValidationError{
				Field: "allocation_scope", Value: scope, Reason: err.Error(),
				BudgetID: budgetID, CategoryID: category.ID,
			}
		}
		if category.EligibleTypes, err = model.ParseUnitTypeSet(eligible); err != nil {
			return nil, &common.ValidationError{
				Field: "eligible_unit_types", Value: eligible, Reason: err.Error(),
				BudgetID: budgetID, CategoryID: category.ID,
			}
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved budget categories", "budget_id", budgetID, "count", len(categories))
	return categories, nil
}

func assignUnits(ctx context.Context, q querier, categoryID int64, unitIDs []int64) error {
	if err := validateID(categoryID, "category_id"); err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM budget_category_units WHERE category_id = ?`, categoryID); err != nil {
		return fmt.Errorf("failed to clear assignments of category %d: %w", categoryID, err)
	}
	if len(unitIDs) == 0 {
		return nil
	}

	stmt, err := q.PrepareContext(ctx, `INSERT OR IGNORE INTO budget_category_units (category_id, unit_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, unitID := range unitIDs {
		if _, err := stmt.ExecContext(ctx, categoryID, unitID); err != nil {
			return fmt.Errorf("failed to assign unit %d to category %d: %w", unitID, categoryID, err)
		}
	}
	return nil
}

func getAssignments(ctx context.Context, q querier, budgetID int64) (map[int64][]int64, error) {
	if err := validateID(budgetID, "budget_id"); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT bcu.category_id, bcu.unit_id
		FROM budget_category_units bcu
		JOIN budget_categories bc ON bc.id = bcu.category_id
		WHERE bc.budget_id = ?
		ORDER BY bcu.category_id, bcu.unit_id`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	assignments := make(map[int64][]int64)
	for rows.Next() {
		var categoryID, unitID int64
		if err := rows.Scan(&categoryID, &unitID); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments[categoryID] = append(assignments[categoryID], unitID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	return assignments, nil
}

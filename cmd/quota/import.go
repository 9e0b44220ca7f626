package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/condo-quotas/internal/cli"
	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/model"
	"github.com/Veraticus/condo-quotas/internal/service"
)

// fixture is the YAML description of a condominium, its units and budgets.
type fixture struct {
	Condominium string          `yaml:"condominium"`
	Units       []fixtureUnit   `yaml:"units"`
	Budgets     []fixtureBudget `yaml:"budgets"`
}

type fixtureUnit struct {
	Number string  `yaml:"number"`
	Type   string  `yaml:"type"`
	Weight float64 `yaml:"weight"`
}

type fixtureBudget struct {
	ReservePct  *float64          `yaml:"reserve_fund_percentage"`
	Description string            `yaml:"description"`
	Categories  []fixtureCategory `yaml:"categories"`
	Year        int               `yaml:"year"`
	Total       float64           `yaml:"total"`
}

type fixtureCategory struct {
	Name          string   `yaml:"name"`
	Scope         string   `yaml:"scope"`
	EligibleTypes []string `yaml:"eligible_types"`
	Units         []string `yaml:"units"`
	Planned       float64  `yaml:"planned"`
	FCR           bool     `yaml:"fcr"`
}

type importSummary struct {
	CondominiumID int64
	Units         int
	Budgets       int
	Categories    int
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Load a condominium, its units and budgets from YAML",
		Long: `Load a condominium description. Units are matched by number and categories by name,
so importing the same file twice updates instead of duplicating.

  condominium: Edificio Aurora
  units:
    - {number: A, type: residential, weight: 600}
    - {number: G1, type: parking, weight: 50}
  budgets:
    - year: 2025
      total: 1500
      reserve_fund_percentage: 10
      categories:
        - {name: Cleaning, planned: 1200, scope: all, fcr: true}
        - {name: Garage door, planned: 300, scope: unit_types, eligible_types: [parking]}
        - {name: Roof terrace, planned: 0, scope: custom, units: [A]}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(args[0]) // #nosec G304
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer func() { _ = f.Close() }()

			fx, err := loadFixture(f)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			summary, err := applyFixture(ctx, store, fx)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
				"Imported %s (#%d): %d unit(s), %d budget(s), %d categor(ies)",
				fx.Condominium, summary.CondominiumID, summary.Units, summary.Budgets, summary.Categories)))
			return nil
		},
	}
}

func loadFixture(r io.Reader) (*fixture, error) {
	var fx fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, common.NewUserError("invalid import file", err)
	}
	if fx.Condominium == "" {
		return nil, common.NewUserError("import file has no condominium name", nil)
	}
	return &fx, nil
}

// applyFixture writes the fixture in one transaction.
func applyFixture(ctx context.Context, store service.Storage, fx *fixture) (importSummary, error) {
	var summary importSummary

	tx, err := store.BeginTx(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	condoID, err := tx.CreateCondominium(ctx, fx.Condominium)
	if err != nil {
		return summary, err
	}
	summary.CondominiumID = condoID

	unitIDs := make(map[string]int64, len(fx.Units))
	for _, u := range fx.Units {
		unitType, err := model.ParseUnitType(u.Type)
		if err != nil {
			return summary, common.NewValidationError("unit_type", u.Type, fmt.Sprintf("unit %s: %v", u.Number, err))
		}
		unit := model.Unit{CondominiumID: condoID, Number: u.Number, Type: unitType, Weight: u.Weight}
		if err := tx.SaveUnit(ctx, &unit); err != nil {
			return summary, err
		}
		unitIDs[unit.Number] = unit.ID
		summary.Units++
	}

	for _, b := range fx.Budgets {
		budget := model.Budget{
			CondominiumID:         condoID,
			Year:                  b.Year,
			TotalAmount:           b.Total,
			ReserveFundPercentage: model.DefaultReserveFundPercentage,
			Description:           b.Description,
		}
		if b.ReservePct != nil {
			budget.ReserveFundPercentage = *b.ReservePct
		}
		if err := tx.SaveBudget(ctx, &budget); err != nil {
			return summary, err
		}
		summary.Budgets++

		existing, err := tx.GetCategories(ctx, budget.ID)
		if err != nil {
			return summary, err
		}
		byName := make(map[string]int64, len(existing))
		for _, c := range existing {
			byName[c.Name] = c.ID
		}

		for _, c := range b.Categories {
			category, err := fixtureToCategory(budget.ID, c)
			if err != nil {
				return summary, err
			}
			category.ID = byName[c.Name]
			if err := tx.SaveCategory(ctx, &category); err != nil {
				return summary, err
			}
			summary.Categories++

			if category.Scope != model.ScopeCustom {
				continue
			}
			assigned := make([]int64, 0, len(c.Units))
			for _, number := range c.Units {
				id, ok := unitIDs[number]
				if !ok {
					return summary, common.NewValidationError("units", number,
						fmt.Sprintf("category %q assigns a unit not listed in the file", c.Name))
				}
				assigned = append(assigned, id)
			}
			if err := tx.AssignUnits(ctx, category.ID, assigned); err != nil {
				return summary, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("failed to commit import: %w", err)
	}
	return summary, nil
}

func fixtureToCategory(budgetID int64, c fixtureCategory) (model.BudgetCategory, error) {
	scope, err := model.ParseAllocationScope(c.Scope)
	if err != nil {
		return model.BudgetCategory{}, common.NewValidationError("scope", c.Scope, err.Error())
	}
	types := make([]model.UnitType, 0, len(c.EligibleTypes))
	for _, s := range c.EligibleTypes {
		t, err := model.ParseUnitType(s)
		if err != nil {
			return model.BudgetCategory{}, common.NewValidationError("eligible_types", s, err.Error())
		}
		types = append(types, t)
	}
	set, err := model.NewUnitTypeSet(types...)
	if err != nil {
		return model.BudgetCategory{}, common.NewValidationError("eligible_types", c.EligibleTypes, err.Error())
	}
	return model.BudgetCategory{
		BudgetID:         budgetID,
		Name:             c.Name,
		PlannedAmount:    c.Planned,
		Scope:            scope,
		EligibleTypes:    set,
		ContributesToFCR: c.FCR,
	}, nil
}

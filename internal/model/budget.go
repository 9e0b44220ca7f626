package model

import "fmt"

// DefaultReserveFundPercentage is applied when a budget does not set its own percentage.
const DefaultReserveFundPercentage = 10.0

// AllocationScope determines which units share in a category's cost.
type AllocationScope string

const (
	// ScopeAll distributes the category across every unit.
	ScopeAll AllocationScope = "all"
	// ScopeUnitTypes distributes the category across units of the eligible types.
	ScopeUnitTypes AllocationScope = "unit_types"
	// ScopeCustom distributes the category across explicitly assigned units.
	ScopeCustom AllocationScope = "custom"
)

// ParseAllocationScope converts a string into a known scope. Empty means ScopeAll.
func ParseAllocationScope(s string) (AllocationScope, error) {
	switch AllocationScope(s) {
	case "", ScopeAll:
		return ScopeAll, nil
	case ScopeUnitTypes:
		return ScopeUnitTypes, nil
	case ScopeCustom:
		return ScopeCustom, nil
	default:
		return "", fmt.Errorf("unknown allocation scope %q", s)
	}
}

// Budget is the annual budget of a condominium.
type Budget struct {
	Description           string
	ID                    int64
	CondominiumID         int64
	Year                  int
	TotalAmount           float64
	ReserveFundPercentage float64
}

// BudgetCategory is one expense line of a budget.
// EligibleTypes is only meaningful when Scope is ScopeUnitTypes.
type BudgetCategory struct {
	Name             string
	Scope            AllocationScope
	EligibleTypes    UnitTypeSet
	ID               int64
	BudgetID         int64
	PlannedAmount    float64
	ContributesToFCR bool
}

// CategoryUnitAssignment links a custom-scope category to a participating unit.
type CategoryUnitAssignment struct {
	CategoryID int64
	UnitID     int64
}

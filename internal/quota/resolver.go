// Package quota computes how a condominium budget is distributed across ownership units.
//
// Everything in this package is a pure function of its inputs: it never touches storage and
// holds no state between calls. Persistence and serialization of finalization runs live in
// the engine package.
package quota

import (
	"fmt"
	"strings"

	"github.com/Veraticus/condo-quotas/internal/model"
)

// ResolveParticipants returns the units that share in a category's cost.
//
// An empty eligible-type set on a unit_types category means every unit participates, while a
// custom category without assignments has no participants at all. Assigned IDs that are not in
// units are ignored. The returned slice keeps the order of units.
func ResolveParticipants(category model.BudgetCategory, units []model.Unit, assigned []int64) []model.Unit {
	switch category.Scope {
	case model.ScopeUnitTypes:
		if category.EligibleTypes.IsEmpty() {
			return append([]model.Unit(nil), units...)
		}
		participants := make([]model.Unit, 0, len(units))
		for _, unit := range units {
			if category.EligibleTypes.Contains(unit.Type) {
				participants = append(participants, unit)
			}
		}
		return participants

	case model.ScopeCustom:
		if len(assigned) == 0 {
			return []model.Unit{}
		}
		wanted := make(map[int64]bool, len(assigned))
		for _, id := range assigned {
			wanted[id] = true
		}
		participants := make([]model.Unit, 0, len(assigned))
		for _, unit := range units {
			if wanted[unit.ID] {
				participants = append(participants, unit)
			}
		}
		return participants

	default:
		return append([]model.Unit(nil), units...)
	}
}

// ScopeLabel renders the resolved scope of a category for summaries.
func ScopeLabel(category model.BudgetCategory, participants []model.Unit) string {
	switch category.Scope {
	case model.ScopeUnitTypes:
		if category.EligibleTypes.IsEmpty() {
			return fmt.Sprintf("all units (%d)", len(participants))
		}
		names := make([]string, len(category.EligibleTypes))
		for i, t := range category.EligibleTypes {
			names[i] = string(t)
		}
		return "types: " + strings.Join(names, ", ")

	case model.ScopeCustom:
		if len(participants) == 0 {
			return "custom units (none)"
		}
		numbers := make([]string, len(participants))
		for i, unit := range participants {
			numbers[i] = unit.Number
		}
		return "units: " + strings.Join(numbers, ", ")

	default:
		return fmt.Sprintf("all units (%d)", len(participants))
	}
}

package quota

import "github.com/Veraticus/condo-quotas/internal/model"

// DivisorKind tags how the weight divisor of a category was resolved.
type DivisorKind int

const (
	// DivisorParticipants means the participants' own weights were used.
	DivisorParticipants DivisorKind = iota
	// DivisorGlobal means participant weights summed to zero and all unit weights were used.
	DivisorGlobal
	// DivisorDegenerate means every candidate divisor was zero.
	DivisorDegenerate
)

func (k DivisorKind) String() string {
	switch k {
	case DivisorParticipants:
		return "participants"
	case DivisorGlobal:
		return "global"
	case DivisorDegenerate:
		return "degenerate"
	default:
		return "unknown"
	}
}

// Divisor is the resolved weight divisor of a category distribution.
// Value is zero when Kind is DivisorDegenerate.
type Divisor struct {
	Kind  DivisorKind
	Value float64
}

// Distributed reports whether shares can be computed with this divisor.
func (d Divisor) Distributed() bool {
	return d.Kind != DivisorDegenerate
}

// ResolveDivisor picks the participants' weight sum, falling back to the sum over all units.
func ResolveDivisor(participants, all []model.Unit) Divisor {
	if sum := WeightSum(participants); sum > 0 {
		return Divisor{Kind: DivisorParticipants, Value: sum}
	}
	if sum := WeightSum(all); sum > 0 {
		return Divisor{Kind: DivisorGlobal, Value: sum}
	}
	return Divisor{Kind: DivisorDegenerate}
}

// WeightSum adds up the weights of units.
func WeightSum(units []model.Unit) float64 {
	var sum float64
	for _, unit := range units {
		sum += unit.Weight
	}
	return sum
}

// MonthlyCharge is the per-month amount a category charges, before apportioning.
type MonthlyCharge struct {
	Base    float64
	Reserve float64
	Total   float64
}

// CalculateMonthlyCharge spreads a planned annual amount over twelve months and adds the
// reserve fund surcharge when the category contributes to it.
func CalculateMonthlyCharge(plannedAmount float64, contributesToFCR bool, reserveFundPercentage float64) MonthlyCharge {
	base := plannedAmount / MonthsPerYear
	var reserve float64
	if contributesToFCR {
		reserve = base * (reserveFundPercentage / 100)
	}
	return MonthlyCharge{
		Base:    base,
		Reserve: reserve,
		Total:   base + reserve,
	}
}

// UnitShare is the monthly amount owed by one unit.
type UnitShare struct {
	UnitID int64
	Amount float64
}

// CategoryShares is the distribution of one category across its participants.
// Shares is empty when the divisor is degenerate.
type CategoryShares struct {
	Shares  []UnitShare
	Divisor Divisor
	Charge  MonthlyCharge
}

// CalculateShares apportions a category's monthly charge across its participants by weight.
// The same share applies to every month of the year.
func CalculateShares(category model.BudgetCategory, reserveFundPercentage float64, participants, all []model.Unit) CategoryShares {
	result := CategoryShares{
		Charge:  CalculateMonthlyCharge(category.PlannedAmount, category.ContributesToFCR, reserveFundPercentage),
		Divisor: ResolveDivisor(participants, all),
	}
	if !result.Divisor.Distributed() {
		return result
	}

	result.Shares = make([]UnitShare, len(participants))
	for i, unit := range participants {
		result.Shares[i] = UnitShare{
			UnitID: unit.ID,
			Amount: (unit.Weight / result.Divisor.Value) * result.Charge.Total,
		}
	}
	return result
}

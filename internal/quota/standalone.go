package quota

import (
	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/model"
)

// StandalonePlan is a lump sum apportioned by weight, identical for every month.
// Shares are ordered by ascending unit number.
type StandalonePlan struct {
	Request      model.StandaloneQuota
	Shares       []UnitShare
	MonthlyTotal float64
	WeightSum    float64
}

// PlanStandalone splits a standalone quota evenly over its duration and apportions each month
// across all units by weight. Unlike category distributions there is no fallback divisor: a
// zero total weight is an error.
func PlanStandalone(req model.StandaloneQuota, units []model.Unit) (*StandalonePlan, error) {
	if err := validateStandalone(req); err != nil {
		return nil, err
	}
	if err := validateUnits(units); err != nil {
		return nil, err
	}

	weightSum := WeightSum(units)
	if weightSum <= 0 {
		return nil, &common.DegenerateWeightError{
			CondominiumID: req.CondominiumID,
			Standalone:    true,
		}
	}

	plan := &StandalonePlan{
		Request:      req,
		MonthlyTotal: req.TotalAmount / float64(req.DurationMonths),
		WeightSum:    weightSum,
	}
	for _, unit := range sortedUnits(units) {
		plan.Shares = append(plan.Shares, UnitShare{
			UnitID: unit.ID,
			Amount: (unit.Weight / weightSum) * plan.MonthlyTotal,
		})
	}
	return plan, nil
}

// Items returns one schedule item per unit and month with a positive amount.
func (p *StandalonePlan) Items() []model.ScheduleItem {
	items := make([]model.ScheduleItem, 0, len(p.Shares)*p.Request.DurationMonths)
	for _, share := range p.Shares {
		if share.Amount <= 0 {
			continue
		}
		for month := 0; month < p.Request.DurationMonths; month++ {
			items = append(items, model.ScheduleItem{
				UnitID:     share.UnitID,
				MonthIndex: month,
				Amount:     share.Amount,
			})
		}
	}
	return items
}

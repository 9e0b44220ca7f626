package quota

import (
	"testing"

	"github.com/Veraticus/condo-quotas/internal/model"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-6

func unit(id int64, number string, unitType model.UnitType, weight float64) model.Unit {
	return model.Unit{ID: id, CondominiumID: 1, Number: number, Type: unitType, Weight: weight}
}

// twoUnits is the A/B pair with weights 600 and 400.
func twoUnits() []model.Unit {
	return []model.Unit{
		unit(1, "A", model.UnitTypeResidential, 600),
		unit(2, "B", model.UnitTypeResidential, 400),
	}
}

// mixedUnits covers every unit type.
func mixedUnits() []model.Unit {
	return []model.Unit{
		unit(1, "1A", model.UnitTypeResidential, 250),
		unit(2, "1B", model.UnitTypeResidential, 250),
		unit(3, "L1", model.UnitTypeCommercial, 300),
		unit(4, "G1", model.UnitTypeParking, 120),
		unit(5, "S1", model.UnitTypeOther, 80),
	}
}

func types(t *testing.T, unitTypes ...model.UnitType) model.UnitTypeSet {
	t.Helper()
	set, err := model.NewUnitTypeSet(unitTypes...)
	require.NoError(t, err)
	return set
}

func unitIDs(units []model.Unit) []int64 {
	ids := make([]int64, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}
	return ids
}

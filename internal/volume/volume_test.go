package volume

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openbar-go/internal/api"
)

func f(v float64) *float64 { return &v }

func TestResolveIceCubes(t *testing.T) {
	assert.Equal(t, 0, ResolveIceCubes(false, 5))
	assert.Equal(t, 3, ResolveIceCubes(true, 3))
	assert.Equal(t, 3, ResolveIceCubes(true, 3.9))
	assert.Equal(t, 0, ResolveIceCubes(true, -2))
	assert.Equal(t, DefaultIceCubes, ResolveIceCubes(true, math.NaN()))
	assert.Equal(t, DefaultIceCubes, ResolveIceCubes(true, math.Inf(1)))
}

func TestAvailableLiquidCapacity(t *testing.T) {
	got, ok := AvailableLiquidCapacityML(f(350), true, 3)
	require.True(t, ok)
	assert.InDelta(t, 350-3*25*0.917, got, 1e-6)
	assert.InDelta(t, 281.225, got, 1e-6)

	got, ok = AvailableLiquidCapacityML(f(350), false, 99)
	require.True(t, ok)
	assert.Equal(t, 350.0, got)

	_, ok = AvailableLiquidCapacityML(nil, true, 3)
	assert.False(t, ok)

	// displacement can never push capacity below zero
	got, ok = AvailableLiquidCapacityML(f(50), true, 10)
	require.True(t, ok)
	assert.Equal(t, 0.0, got)
}

func TestPortionQuantitiesStrength(t *testing.T) {
	rec := Recipe{
		AskStrength: true,
		Lines: []Line{
			{ID: 1, Quantity: f(40), IsLiquid: true, AffectsStrength: true},
			{ID: 2, Quantity: f(20), IsLiquid: true},
		},
	}

	single := PortionQuantities(rec, StrengthSingle, nil)
	assert.Equal(t, 40.0, single[1])
	assert.Equal(t, 20.0, single[2])

	double := PortionQuantities(rec, StrengthDouble, nil)
	assert.Equal(t, 80.0, double[1])
	assert.Equal(t, 20.0, double[2], "non-strength lines stay fixed")

	// strength only applies when the recipe asks for it
	rec.AskStrength = false
	flat := PortionQuantities(rec, StrengthDouble, nil)
	assert.Equal(t, 40.0, flat[1])
}

func TestPortionQuantitiesTopUpSplit(t *testing.T) {
	rec := Recipe{
		CupCapacityML: f(350),
		HasIce:        true,
		IceCubes:      3,
		Lines: []Line{
			{ID: 1, Quantity: f(40), IsLiquid: true},
			{ID: 2, IsTopUp: true},
		},
	}

	q := PortionQuantities(rec, StrengthSingle, nil)
	capacity := 350 - 3*25*0.917
	assert.InDelta(t, capacity-40, q[2], 1e-6)

	// two active top-ups split the remainder evenly
	rec.Lines = append(rec.Lines, Line{ID: 3, IsTopUp: true})
	q = PortionQuantities(rec, StrengthSingle, nil)
	assert.InDelta(t, (capacity-40)/2, q[2], 1e-6)
	assert.InDelta(t, (capacity-40)/2, q[3], 1e-6)

	// inactive top-ups drop out of the split
	q = PortionQuantities(rec, StrengthSingle, func(id int64) bool { return id == 2 })
	assert.InDelta(t, capacity-40, q[2], 1e-6)
	_, ok := q[3]
	assert.False(t, ok)
}

func TestPortionQuantitiesTopUpNeverNegative(t *testing.T) {
	rec := Recipe{
		CupCapacityML: f(100),
		Lines: []Line{
			{ID: 1, Quantity: f(150), IsLiquid: true},
			{ID: 2, IsTopUp: true},
		},
	}
	q := PortionQuantities(rec, StrengthSingle, nil)
	assert.Equal(t, 0.0, q[2])
}

func TestPortionQuantitiesCuplessSkipsTopUps(t *testing.T) {
	rec := Recipe{
		Lines: []Line{
			{ID: 1, Quantity: f(40), IsLiquid: true},
			{ID: 2, IsTopUp: true},
		},
	}
	q := PortionQuantities(rec, StrengthSingle, nil)
	assert.Equal(t, 40.0, q[1])
	_, ok := q[2]
	assert.False(t, ok, "no capacity, no derived top-up quantity")
}

func TestValidateCapacity(t *testing.T) {
	rec := Recipe{
		CupCapacityML: f(200),
		Lines: []Line{
			{ID: 1, Quantity: f(120), IsLiquid: true},
			{ID: 2, Quantity: f(60), IsLiquid: true},
		},
	}
	require.NoError(t, ValidateCapacity(rec))

	// overflow by 30 ml
	rec.Lines[1].Quantity = f(110)
	err := ValidateCapacity(rec)
	var capErr *api.RecipeCapacityExceeded
	require.True(t, errors.As(err, &capErr))
	assert.InDelta(t, 30, capErr.OverageML, 1e-9)
	assert.InDelta(t, 200, capErr.CapacityML, 1e-9)

	// a required top-up with zero room left also fails, flagged as such and
	// never reporting a negative overage
	rec.Lines[1].Quantity = f(80)
	rec.Lines = append(rec.Lines, Line{ID: 3, IsTopUp: true})
	err = ValidateCapacity(rec)
	require.True(t, errors.As(err, &capErr))
	assert.True(t, capErr.NoTopUpRoom)
	assert.GreaterOrEqual(t, capErr.OverageML, 0.0)
	assert.InDelta(t, 200, capErr.CapacityML, 1e-9)

	// optional top-up is fine with no room
	rec.Lines[2].IsOptional = true
	require.NoError(t, ValidateCapacity(rec))

	// cupless recipes skip the check entirely
	rec.CupCapacityML = nil
	rec.Lines[2].IsOptional = false
	require.NoError(t, ValidateCapacity(rec))
}

func TestValidateCapacityUnitLinesIgnored(t *testing.T) {
	rec := Recipe{
		CupCapacityML: f(100),
		Lines: []Line{
			{ID: 1, Quantity: f(90), IsLiquid: true},
			{ID: 2, Quantity: f(2), IsLiquid: false}, // e.g. garnish units
		},
	}
	require.NoError(t, ValidateCapacity(rec))
}

// Package volume is the pure recipe/volume model: ice displacement,
// remaining cup capacity, per-line serving quantities and the capacity
// check run before a recipe is saved. No I/O, no clock.
package volume

import (
	"math"

	"openbar-go/internal/api"
)

const (
	// CubeVolumeML is the volume of one ice cube.
	CubeVolumeML = 25.0
	// SubmergedRatio approximates floating ice: only the submerged
	// fraction displaces liquid.
	SubmergedRatio = 0.917
	// DefaultIceCubes is used when a recipe's configured cube count is
	// not a finite number.
	DefaultIceCubes = 3
)

const (
	StrengthSingle = "single"
	StrengthDouble = "double"
)

// Line is one recipe requirement as the model sees it. IsLiquid is derived
// by the caller from the ingredient's base unit (ml ingredients count
// against cup capacity, unit ingredients do not).
type Line struct {
	ID              int64
	Quantity        *float64
	IsLiquid        bool
	IsOptional      bool
	AffectsStrength bool
	IsTopUp         bool
}

// Recipe carries only the fields the volume math needs.
type Recipe struct {
	CupCapacityML *float64
	HasIce        bool
	IceCubes      float64
	AskStrength   bool
	Lines         []Line
}

// ResolveIceCubes returns the effective whole cube count: 0 without ice,
// otherwise the floored configured value (never negative), defaulting when
// the configured value is NaN or infinite.
func ResolveIceCubes(hasIce bool, iceCubes float64) int {
	if !hasIce {
		return 0
	}
	if math.IsNaN(iceCubes) || math.IsInf(iceCubes, 0) {
		return DefaultIceCubes
	}
	n := int(math.Floor(iceCubes))
	if n < 0 {
		return 0
	}
	return n
}

// IceDisplacementML is the liquid volume displaced by floating ice.
func IceDisplacementML(hasIce bool, iceCubes float64) float64 {
	return float64(ResolveIceCubes(hasIce, iceCubes)) * CubeVolumeML * SubmergedRatio
}

// AvailableLiquidCapacityML returns the cup capacity left for liquid after
// ice displacement. The second return is false for a cupless recipe, which
// skips capacity checks entirely.
func AvailableLiquidCapacityML(cupCapacityML *float64, hasIce bool, iceCubes float64) (float64, bool) {
	if cupCapacityML == nil {
		return 0, false
	}
	return math.Max(*cupCapacityML-IceDisplacementML(hasIce, iceCubes), 0), true
}

// PortionQuantities computes the concrete per-line quantities for one
// serving. Non-top-up lines take their fixed quantity, doubled when the
// recipe asks for strength, a double was chosen and the line is flagged to
// follow it. Top-up lines split the remaining liquid capacity evenly among
// the active ones; activeTopUp says whether a given top-up line takes part
// (selected, or required). Lines without a quantity and inactive top-ups
// are omitted from the result.
func PortionQuantities(rec Recipe, strength string, activeTopUp func(lineID int64) bool) map[int64]float64 {
	out := make(map[int64]float64, len(rec.Lines))
	double := rec.AskStrength && strength == StrengthDouble

	var fixedLiquid float64
	for _, ln := range rec.Lines {
		if ln.IsTopUp || ln.Quantity == nil {
			continue
		}
		q := *ln.Quantity
		if double && ln.AffectsStrength {
			q *= 2
		}
		out[ln.ID] = q
		if ln.IsLiquid {
			fixedLiquid += q
		}
	}

	capacity, ok := AvailableLiquidCapacityML(rec.CupCapacityML, rec.HasIce, rec.IceCubes)
	if !ok {
		return out
	}

	var active []int64
	for _, ln := range rec.Lines {
		if !ln.IsTopUp {
			continue
		}
		if activeTopUp == nil || activeTopUp(ln.ID) {
			active = append(active, ln.ID)
		}
	}
	if len(active) == 0 {
		return out
	}

	share := math.Max(capacity-fixedLiquid, 0) / float64(len(active))
	for _, id := range active {
		out[id] = share
	}
	return out
}

// ValidateCapacity enforces the save-time invariant: fixed liquid lines
// must fit the ice-adjusted cup, and any required top-up line must have
// strictly positive room left. Cupless recipes always pass.
func ValidateCapacity(rec Recipe) error {
	capacity, ok := AvailableLiquidCapacityML(rec.CupCapacityML, rec.HasIce, rec.IceCubes)
	if !ok {
		return nil
	}

	var fixedLiquid float64
	requiredTopUp := false
	for _, ln := range rec.Lines {
		if ln.IsTopUp {
			if !ln.IsOptional {
				requiredTopUp = true
			}
			continue
		}
		if ln.IsLiquid && ln.Quantity != nil {
			fixedLiquid += *ln.Quantity
		}
	}

	const eps = 1e-9
	if fixedLiquid > capacity+eps {
		return &api.RecipeCapacityExceeded{CapacityML: capacity, OverageML: fixedLiquid - capacity}
	}
	if requiredTopUp && capacity-fixedLiquid <= eps {
		return &api.RecipeCapacityExceeded{
			CapacityML:  capacity,
			OverageML:   math.Max(fixedLiquid-capacity, 0),
			NoTopUpRoom: true,
		}
	}
	return nil
}

package volume

import "math"

// Cup geometry for the fill-height indicator. A tapered cup is a frustum:
// the radius grows linearly from BottomRadiusCM at height 0 to
// TopRadiusCM at HeightCM. All dimensions in cm, volumes in ml (1 cm^3).
type Cup struct {
	BottomRadiusCM float64
	TopRadiusCM    float64
	HeightCM       float64
}

// VolumeAtHeight integrates the cross-section pi*r(t)^2 from 0 to h.
// With r(t) = r0 + (r1-r0)*t/H the integral has the closed form
// pi*h*(r0^2 + r0*dr*h/H + dr^2*h^2/(3*H^2)), dr = r1-r0.
func (c Cup) VolumeAtHeight(h float64) float64 {
	if h <= 0 || c.HeightCM <= 0 {
		return 0
	}
	if h > c.HeightCM {
		h = c.HeightCM
	}
	r0 := c.BottomRadiusCM
	dr := c.TopRadiusCM - c.BottomRadiusCM
	k := h / c.HeightCM
	return math.Pi * h * (r0*r0 + r0*dr*k + dr*dr*k*k/3)
}

// Capacity is the full frustum volume.
func (c Cup) Capacity() float64 { return c.VolumeAtHeight(c.HeightCM) }

// FillHeightFraction maps a target liquid volume to the fraction of the
// cup height it reaches, by binary search over VolumeAtHeight (which is
// strictly increasing for a valid cup). Clamped to [0,1]. Display only.
func (c Cup) FillHeightFraction(targetML float64) float64 {
	if c.HeightCM <= 0 || targetML <= 0 {
		return 0
	}
	full := c.Capacity()
	if full <= 0 || targetML >= full {
		return 1
	}

	lo, hi := 0.0, c.HeightCM
	for i := 0; i < 64; i++ {
		mid := (lo + hi) / 2
		if c.VolumeAtHeight(mid) < targetML {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo <= c.HeightCM*1e-9 {
			break
		}
	}
	return (lo + hi) / 2 / c.HeightCM
}

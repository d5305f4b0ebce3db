package quant

import "math"

const (
	asymQMin = 0
	asymQMax = 255

	// scale floor, also applied to the all-zero range
	asymMinScale = 1e-5
)

// Asymmetric maps [min, max] (widened to include 0) onto [0, 255]. The zero
// point is rounded to an integer code so that 0.0 is exactly representable.
type Asymmetric struct{}

func (Asymmetric) Name() string { return "asymmetric-u8" }

func (Asymmetric) Range() (int64, int64) { return asymQMin, asymQMax }

func (Asymmetric) Params(min, max float32) Params {
	const qmin, qmax = float64(asymQMin), float64(asymQMax)
	rmin := math.Min(0, float64(min))
	rmax := math.Max(0, float64(max))

	scale := (rmax - rmin) / (qmax - qmin)
	var zpDouble float64
	if scale == 0 {
		if min >= 0 && max >= 0 {
			zpDouble = qmin
		} else {
			zpDouble = qmax
		}
	} else {
		zpDouble = qmin - rmin/scale
	}

	var zp uint8
	switch {
	case min >= 0:
		// all-positive: code 0 is real 0
		zp = asymQMin
		scale = float64(max) / (qmax - qmin)
	case max < 0:
		// all-negative: code 255 is real 0
		zp = asymQMax
		scale = -float64(min) / (qmax - qmin)
	default:
		zp = toUint8(math.Round(zpDouble))
	}

	if scale < asymMinScale {
		scale = asymMinScale
		zp = toUint8(math.Round(qmin - rmin/scale))
	}

	return Params{
		Scale:     float32(scale),
		ZeroPoint: int64(zp),
		NudgedMin: float32((qmin - float64(zp)) * scale),
		NudgedMax: float32((qmax - float64(zp)) * scale),
	}
}

func (a Asymmetric) Quantise(values []float32) QuantTensor {
	return quantise(a, values, func(v float32, p Params) int64 {
		inv := 1.0 / p.Scale
		return int64(math.Round(float64((v - p.NudgedMin) * inv)))
	})
}

func toUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

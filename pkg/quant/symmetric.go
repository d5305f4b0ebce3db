package quant

import "math"

const (
	symQMax = math.MaxInt16
	symQMin = -symQMax

	symMinScale = 1e-8
)

// Symmetric maps [-absmax, absmax] onto [-32767, 32767] with zero point 0.
type Symmetric struct{}

func (Symmetric) Name() string { return "symmetric-s16" }

func (Symmetric) Range() (int64, int64) { return symQMin, symQMax }

func (Symmetric) Params(min, max float32) Params {
	const qmin, qmax = float64(symQMin), float64(symQMax)
	rmin := math.Min(0, float64(min))
	rmax := math.Max(0, float64(max))

	var fromMin, fromMax float64
	if qmin*rmin > 0 {
		fromMin = rmin / qmin
	}
	if qmax*rmax > 0 {
		fromMax = rmax / qmax
	}
	scale := math.Max(fromMin, fromMax)
	if scale < symMinScale {
		scale = symMinScale
	}

	return Params{
		Scale:     float32(scale),
		ZeroPoint: 0,
		NudgedMin: float32(qmin * scale),
		NudgedMax: float32(qmax * scale),
	}
}

func (s Symmetric) Quantise(values []float32) QuantTensor {
	return quantise(s, values, func(v float32, p Params) int64 {
		inv := 1.0 / p.Scale
		return int64(math.Round(float64(v * inv)))
	})
}

// Package quant computes layer-wise quantization parameters.
//
// Two schemes are supported: asymmetric unsigned 8-bit and symmetric signed
// 16-bit. Both map a real range [min, max] onto an integer code range and
// always produce a strictly positive scale.
package quant

import (
	"fmt"
	"math"
	"strings"
)

// Params is the result of fitting a real range onto a code range.
// NudgedMin/NudgedMax are the real values of the lowest and highest codes
// after the zero point has been rounded to an integer.
type Params struct {
	Scale     float32
	ZeroPoint int64
	NudgedMin float32
	NudgedMax float32
}

// QuantTensor is a quantised flat buffer plus the parameters used.
type QuantTensor struct {
	Params
	// Min/Max are the raw extremes scanned from the input values.
	Min   float32
	Max   float32
	Codes []int64
}

// Scheme fits ranges and quantises buffers for one target precision.
type Scheme interface {
	Name() string
	// Range returns the inclusive integer code range.
	Range() (qmin, qmax int64)
	// Params fits [min, max]. Callers guarantee min <= max.
	Params(min, max float32) Params
	// Quantise scans values for their range and encodes them layer-wise.
	Quantise(values []float32) QuantTensor
}

// Precision is the pass-wide quantization target.
type Precision uint8

const (
	U8 Precision = iota + 1
	S16
)

func (p Precision) String() string {
	switch p {
	case U8:
		return "uint8"
	case S16:
		return "int16"
	default:
		return fmt.Sprintf("precision(%d)", uint8(p))
	}
}

// Valid reports whether p is one of the supported targets.
func (p Precision) Valid() bool { return p == U8 || p == S16 }

// Scheme returns the quantization scheme for p, or nil if p is invalid.
func (p Precision) Scheme() Scheme {
	switch p {
	case U8:
		return Asymmetric{}
	case S16:
		return Symmetric{}
	default:
		return nil
	}
}

// ParsePrecision accepts uint8/u8 and int16/s16.
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uint8", "u8":
		return U8, nil
	case "int16", "s16":
		return S16, nil
	default:
		return 0, fmt.Errorf("quant: unsupported precision %q (want uint8 or int16)", s)
	}
}

func (p Precision) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("quant: cannot encode precision %d", uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *Precision) UnmarshalText(b []byte) error {
	v, err := ParsePrecision(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MinMax scans values for their extremes. NaNs and infinities are ignored;
// a buffer with no finite value yields (0, 0).
func MinMax(values []float32) (min, max float32) {
	lo := float32(math.MaxFloat32)
	hi := float32(-math.MaxFloat32)
	seen := false
	for _, v := range values {
		if v != v || math.IsInf(float64(v), 0) {
			continue
		}
		seen = true
		lo = minf(lo, v)
		hi = maxf(hi, v)
	}
	if !seen {
		return 0, 0
	}
	return lo, hi
}

func quantise(s Scheme, values []float32, encode func(v float32, p Params) int64) QuantTensor {
	lo, hi := MinMax(values)
	p := s.Params(lo, hi)
	qmin, qmax := s.Range()
	codes := make([]int64, len(values))
	for i, v := range values {
		if v != v {
			v = 0
		}
		v = maxf(v, p.NudgedMin)
		v = minf(v, p.NudgedMax)
		codes[i] = clamp(encode(v, p), qmin, qmax)
	}
	return QuantTensor{Params: p, Min: lo, Max: hi, Codes: codes}
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minf(a, b float32) float32 {
	if b < a {
		return b
	}
	return a
}

func maxf(a, b float32) float32 {
	if b > a {
		return b
	}
	return a
}

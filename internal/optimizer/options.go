package optimizer

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/samcharles93/actquant/pkg/quant"
)

// Algorithm names a rewrite that can be switched on in Options.
type Algorithm string

const (
	// QuantizeActivation runs the three activation quantization phases.
	QuantizeActivation Algorithm = "QuantizeActivation"
)

// AlgorithmParameter names a tunable read by an enabled algorithm.
type AlgorithmParameter string

const (
	// QuantizeOutputType is the target precision: uint8 or int16.
	QuantizeOutputType AlgorithmParameter = "Quantize_output_type"
)

var (
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
	ErrUnknownParameter = errors.New("unknown algorithm parameter")
	ErrInvalidParameter = errors.New("invalid algorithm parameter value")
)

var algorithms = []Algorithm{QuantizeActivation}

var defaults = map[AlgorithmParameter]string{
	QuantizeOutputType: quant.U8.String(),
}

// Options is the set of enabled algorithms plus their string parameters.
// The zero value is ready to use.
type Options struct {
	enabled map[Algorithm]bool
	params  map[AlgorithmParameter]string
}

// Enable switches a on.
func (o *Options) Enable(a Algorithm) error {
	if !slices.Contains(algorithms, a) {
		return fmt.Errorf("%w: %q", ErrUnknownAlgorithm, a)
	}
	if o.enabled == nil {
		o.enabled = make(map[Algorithm]bool)
	}
	o.enabled[a] = true
	return nil
}

// Query reports whether a is enabled.
func (o *Options) Query(a Algorithm) bool { return o.enabled[a] }

// Param sets key to value. The value is checked when the key has a known
// domain.
func (o *Options) Param(key AlgorithmParameter, value string) error {
	if _, ok := defaults[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, key)
	}
	if key == QuantizeOutputType {
		p, err := quant.ParsePrecision(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidParameter, key, err)
		}
		value = p.String()
	}
	if o.params == nil {
		o.params = make(map[AlgorithmParameter]string)
	}
	o.params[key] = value
	return nil
}

// Value returns the value of key, or its default when unset.
func (o *Options) Value(key AlgorithmParameter) string {
	if v, ok := o.params[key]; ok {
		return v
	}
	return defaults[key]
}

// Enabled lists the enabled algorithms in name order.
func (o *Options) Enabled() []Algorithm {
	out := make([]Algorithm, 0, len(o.enabled))
	for a, on := range o.enabled {
		if on {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Precision parses QuantizeOutputType.
func (o *Options) Precision() (quant.Precision, error) {
	return quant.ParsePrecision(o.Value(QuantizeOutputType))
}

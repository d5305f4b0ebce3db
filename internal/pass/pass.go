// Package pass implements the activation quantization passes.
//
// A run applies three phases to one graph, in order and once each:
// QuantizeActivation assigns parameters from calibrated ranges,
// QuantizeSpecialActivation overrides them for fixed-range and
// integer-valued ops, and QuantizeConstInputActivation quantizes constants
// that feed ops as activations. The first error aborts the run; the graph is
// left as mutated so far.
package pass

import (
	"context"
	"fmt"

	"github.com/samcharles93/actquant/internal/logger"
	"github.com/samcharles93/actquant/pkg/graph"
	"github.com/samcharles93/actquant/pkg/quant"
)

// Phase is one full traversal of a graph.
type Phase interface {
	Name() string
	Run(ctx context.Context, g *graph.Graph, r *Report) error
}

// Report counts what a run changed.
type Report struct {
	Precision    quant.Precision `json:"precision" yaml:"precision"`
	Activations  int             `json:"activations" yaml:"activations"`
	CastsFixed   int             `json:"casts_fixed" yaml:"casts_fixed"`
	FixedRange   int             `json:"fixed_range" yaml:"fixed_range"`
	IntegerScale int             `json:"integer_scale" yaml:"integer_scale"`
	ConstsCloned int             `json:"consts_cloned" yaml:"consts_cloned"`
}

// Phases returns the phases of a run in execution order.
func Phases(p quant.Precision) []Phase {
	return []Phase{
		QuantizeActivation{Precision: p},
		QuantizeSpecialActivation{Precision: p},
		QuantizeConstInputActivation{Precision: p},
	}
}

// Run applies every phase to g with target precision p.
func Run(ctx context.Context, g *graph.Graph, p quant.Precision) (Report, error) {
	r := Report{Precision: p}
	if err := checkPrecision(p); err != nil {
		return r, err
	}
	log := logger.FromContext(ctx)
	for _, ph := range Phases(p) {
		if err := ph.Run(ctx, g, &r); err != nil {
			return r, err
		}
		log.Debug("phase done", "phase", ph.Name(), "graph", g.Name)
	}
	return r, nil
}

func checkPrecision(p quant.Precision) error {
	if !p.Valid() {
		return fmt.Errorf("%w: target precision %s", ErrUnsupportedDataType, p)
	}
	return nil
}

func dtypeFor(p quant.Precision) graph.DType {
	if p == quant.S16 {
		return graph.Int16
	}
	return graph.Uint8
}

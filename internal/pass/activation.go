package pass

import (
	"context"

	"github.com/samcharles93/actquant/internal/logger"
	"github.com/samcharles93/actquant/pkg/graph"
	"github.com/samcharles93/actquant/pkg/quant"
)

// QuantizeActivation quantizes every calibrated float activation using its
// recorded range, and fixes Cast data types to match quantized operands.
type QuantizeActivation struct {
	Precision quant.Precision
}

func (QuantizeActivation) Name() string { return "QuantizeActivation" }

func (q QuantizeActivation) Run(ctx context.Context, g *graph.Graph, r *Report) error {
	if err := checkPrecision(q.Precision); err != nil {
		return err
	}
	log := logger.FromContext(ctx).With("phase", q.Name())
	uses := g.Uses()
	for _, n := range g.PostOrder() {
		if err := q.visit(log, n, uses, r); err != nil {
			return nodeError(q.Name(), n, err)
		}
	}
	return nil
}

func (q QuantizeActivation) visit(log logger.Logger, n *graph.Node, uses graph.UseIndex, r *Report) error {
	log.Debug("visit node", "node", n.Name(), "op", n.Op())

	if graph.IsQuantized(n) {
		return nil
	}
	// bias is quantized later from the layer's input and weight scales
	if len(graph.BiasOf(n, uses)) > 0 {
		return nil
	}
	if n.DType == graph.Bool {
		return nil
	}

	// constants are quantized from their values by QuantizeConstInputActivation
	if n.DType.IsFloat() && n.QuantParam.HasMinMax() && !n.IsConst() && !graph.IsWeights(n, uses) {
		qp := n.QuantParam
		if len(qp.Min) != 1 || len(qp.Max) != 1 {
			return invariantf("layer-wise range expected, got %d min and %d max values", len(qp.Min), len(qp.Max))
		}
		if len(qp.Scale) != 0 || len(qp.ZeroPoint) != 0 {
			return invariantf("float32 node already has %d scale and %d zero point values", len(qp.Scale), len(qp.ZeroPoint))
		}
		lo, hi := qp.Min[0], qp.Max[0]
		if !(lo <= hi) {
			return invariantf("calibrated range [%v, %v] is inverted", lo, hi)
		}

		p := q.Precision.Scheme().Params(lo, hi)
		n.DType = dtypeFor(q.Precision)
		qp.Scale = append(qp.Scale, p.Scale)
		qp.ZeroPoint = append(qp.ZeroPoint, p.ZeroPoint)
		r.Activations++
		log.Debug("quantized activation", "node", n.Name(), "scale", p.Scale, "zerop", p.ZeroPoint)
	}

	if n.Op() == graph.OpCast {
		in := n.Arg(0)
		if in == nil {
			return invariantf("cast has no operand")
		}
		if in.DType.IsFloat() {
			return invariantf("cast operand %q is still %s", in.Name(), in.DType)
		}
		n.Cast = graph.CastAttrs{InDataType: in.DType, OutDataType: n.DType}
		r.CastsFixed++
	}
	return nil
}

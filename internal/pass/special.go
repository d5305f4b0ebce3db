package pass

import (
	"context"
	"math"

	"github.com/samcharles93/actquant/internal/logger"
	"github.com/samcharles93/actquant/pkg/graph"
	"github.com/samcharles93/actquant/pkg/quant"
)

// QuantizeSpecialActivation replaces the calibrated parameters of ops whose
// output range is known in advance, and snaps integer-valued ops to an
// integer scale.
type QuantizeSpecialActivation struct {
	Precision quant.Precision
}

func (QuantizeSpecialActivation) Name() string { return "QuantizeSpecialActivation" }

type fixedParams struct {
	scale float32
	zerop int64
}

var (
	// tanh: [-1, 1]
	tanhParams = map[quant.Precision]fixedParams{
		quant.U8:  {2.0 / 256.0, 128},
		quant.S16: {1.0 / 32768.0, 0},
	}
	// logistic: [0, 1]
	logisticParams = map[quant.Precision]fixedParams{
		quant.U8:  {1.0 / 256.0, 0},
		quant.S16: {1.0 / 32768.0, 0},
	}
	// softmax: [0, 1], 1.0 must be representable
	softmaxParams = map[quant.Precision]fixedParams{
		quant.U8:  {1.0 / 255.0, 0},
		quant.S16: {1.0 / 32767.0, 0},
	}
)

func (q QuantizeSpecialActivation) Run(ctx context.Context, g *graph.Graph, r *Report) error {
	if err := checkPrecision(q.Precision); err != nil {
		return err
	}
	log := logger.FromContext(ctx).With("phase", q.Name())
	for _, n := range g.PostOrder() {
		if err := q.visit(log, n, r); err != nil {
			return nodeError(q.Name(), n, err)
		}
	}
	return nil
}

func (q QuantizeSpecialActivation) visit(log logger.Logger, n *graph.Node, r *Report) error {
	switch n.Op() {
	case graph.OpTanh:
		return q.setFixed(log, n, tanhParams, r)
	case graph.OpLogistic:
		return q.setFixed(log, n, logisticParams, r)
	case graph.OpSoftmax:
		return q.setFixed(log, n, softmaxParams, r)
	case graph.OpFloor, graph.OpFloorDiv, graph.OpFloorMod, graph.OpCeil:
		return setIntegerScale(log, n, r)
	}
	if n.Fused == graph.FusedTanh && n.Op().Signature().FusedAct {
		return q.setFixed(log, n, tanhParams, r)
	}
	return nil
}

func (q QuantizeSpecialActivation) setFixed(log logger.Logger, n *graph.Node, table map[quant.Precision]fixedParams, r *Report) error {
	if err := requireLayerwise(n); err != nil {
		return err
	}
	fp := table[q.Precision]
	n.QuantParam.Scale[0] = fp.scale
	n.QuantParam.ZeroPoint[0] = fp.zerop
	r.FixedRange++
	log.Debug("fixed-range override", "node", n.Name(), "scale", fp.scale, "zerop", fp.zerop)
	return nil
}

// setIntegerScale keeps integer outputs on integer codes: scales below 1
// become 1, larger ones round to the nearest integer.
func setIntegerScale(log logger.Logger, n *graph.Node, r *Report) error {
	if err := requireLayerwise(n); err != nil {
		return err
	}
	s := n.QuantParam.Scale[0]
	if s < 1 {
		n.QuantParam.Scale[0] = 1
	} else {
		n.QuantParam.Scale[0] = float32(math.Round(float64(s)))
	}
	r.IntegerScale++
	log.Debug("integer scale", "node", n.Name(), "from", s, "to", n.QuantParam.Scale[0])
	return nil
}

func requireLayerwise(n *graph.Node) error {
	qp := n.QuantParam
	if qp == nil {
		return invariantf("no quant param record")
	}
	if !qp.Layerwise() {
		return invariantf("expected one scale and one zero point, got %d and %d", len(qp.Scale), len(qp.ZeroPoint))
	}
	return nil
}

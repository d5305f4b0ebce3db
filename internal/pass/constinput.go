package pass

import (
	"context"
	"fmt"

	"github.com/samcharles93/actquant/internal/logger"
	"github.com/samcharles93/actquant/pkg/graph"
	"github.com/samcharles93/actquant/pkg/quant"
)

// QuantizeConstInputActivation quantizes constants consumed as activations.
// Each quantized constant is a fresh clone wired into the one consumer being
// visited; the source constant keeps serving its other consumers untouched.
type QuantizeConstInputActivation struct {
	Precision quant.Precision
}

func (QuantizeConstInputActivation) Name() string { return "QuantizeConstInputActivation" }

// selector picks the activation inputs of an op kind. A zero selector means
// the kind is known and none of its inputs are handled here.
type selector struct {
	inputs []string
	all    bool
}

func inputs(names ...string) selector { return selector{inputs: names} }

var (
	skip    = selector{}
	allArgs = selector{all: true}
)

var constInputs = map[graph.OpKind]selector{
	// single activation input
	graph.OpArgMax:                     inputs("input"),
	graph.OpArgMin:                     inputs("input"),
	graph.OpBatchToSpaceND:             inputs("input"),
	graph.OpDepthToSpace:               inputs("input"),
	graph.OpElu:                        inputs("features"),
	graph.OpExp:                        inputs("x"),
	graph.OpFloor:                      inputs("x"),
	graph.OpGather:                     inputs("params"),
	graph.OpLocalResponseNormalization: inputs("input"),
	graph.OpLogistic:                   inputs("x"),
	graph.OpMean:                       inputs("input"),
	graph.OpMirrorPad:                  inputs("input"),
	graph.OpPad:                        inputs("input"),
	graph.OpReduceAny:                  inputs("input"),
	graph.OpReduceProd:                 inputs("input"),
	graph.OpReduceMax:                  inputs("input"),
	graph.OpReduceMin:                  inputs("input"),
	graph.OpReshape:                    inputs("tensor"),
	graph.OpResizeBilinear:             inputs("input"),
	graph.OpResizeNearestNeighbor:      inputs("input"),
	graph.OpReverseSequence:            inputs("input"),
	graph.OpRsqrt:                      inputs("x"),
	graph.OpSlice:                      inputs("input"),
	graph.OpSoftmax:                    inputs("logits"),
	graph.OpSpaceToBatchND:             inputs("input"),
	graph.OpSpaceToDepth:               inputs("input"),
	graph.OpSplit:                      inputs("input"),
	graph.OpSplitV:                     inputs("input"),
	graph.OpSqrt:                       inputs("x"),
	graph.OpStridedSlice:               inputs("input"),
	graph.OpSum:                        inputs("input"),
	graph.OpTanh:                       inputs("x"),
	graph.OpTile:                       inputs("input"),
	graph.OpTopKV2:                     inputs("input"),
	graph.OpTranspose:                  inputs("a"),
	graph.OpUnpack:                     inputs("value"),

	// two activation inputs
	graph.OpAdd:          inputs("x", "y"),
	graph.OpBatchMatMul:  inputs("x", "y"),
	graph.OpDiv:          inputs("x", "y"),
	graph.OpEqual:        inputs("x", "y"),
	graph.OpFloorDiv:     inputs("x", "y"),
	graph.OpGreater:      inputs("x", "y"),
	graph.OpGreaterEqual: inputs("x", "y"),
	graph.OpLess:         inputs("x", "y"),
	graph.OpLessEqual:    inputs("x", "y"),
	graph.OpMaximum:      inputs("x", "y"),
	graph.OpMinimum:      inputs("x", "y"),
	graph.OpMul:          inputs("x", "y"),
	graph.OpNotEqual:     inputs("x", "y"),
	graph.OpPow:          inputs("x", "y"),
	graph.OpSub:          inputs("x", "y"),

	graph.OpAddN: allArgs,

	// weights and bias are quantized by the weight/bias passes
	graph.OpConv2D:          skip,
	graph.OpDepthwiseConv2D: skip,
	graph.OpFullyConnected:  skip,
	graph.OpInstanceNorm:    skip,
	graph.OpPRelu:           skip,
	graph.OpTransposeConv:   skip,

	// parameters come from backward qparam propagation
	graph.OpConcatenation: skip,
	graph.OpPadV2:         skip,
	graph.OpPack:          skip,
	graph.OpOneHot:        skip,

	// bool inputs
	graph.OpLogicalAnd: skip,
	graph.OpLogicalOr:  skip,
	graph.OpLogicalNot: skip,
}

// ConstInputs reports the input names QuantizeConstInputActivation
// quantizes for op. all is set for variadic kinds where every input counts;
// ok is false when the kind has no entry.
func ConstInputs(op graph.OpKind) (names []string, all, ok bool) {
	sel, ok := constInputs[op]
	return sel.inputs, sel.all, ok
}

func (sel selector) positions(n *graph.Node) []int {
	if sel.all {
		pos := make([]int, n.Arity())
		for i := range pos {
			pos[i] = i
		}
		return pos
	}
	pos := make([]int, 0, len(sel.inputs))
	for _, name := range sel.inputs {
		if i := n.Op().InputIndex(name); i >= 0 && i < n.Arity() {
			pos = append(pos, i)
		}
	}
	return pos
}

func (q QuantizeConstInputActivation) Run(ctx context.Context, g *graph.Graph, r *Report) error {
	if err := checkPrecision(q.Precision); err != nil {
		return err
	}
	log := logger.FromContext(ctx).With("phase", q.Name())
	// Clones created below are not revisited: the order is a snapshot.
	for _, n := range g.PostOrder() {
		if err := q.visit(log, g, n, r); err != nil {
			return nodeError(q.Name(), n, err)
		}
	}
	return nil
}

func (q QuantizeConstInputActivation) visit(log logger.Logger, g *graph.Graph, n *graph.Node, r *Report) error {
	sel, ok := constInputs[n.Op()]
	if !ok {
		for i := 0; i < n.Arity(); i++ {
			if n.Arg(i).IsConst() {
				return fmt.Errorf("%w: %s has constant input %d", ErrUnsupportedOperation, n.Op(), i)
			}
		}
		return nil
	}

	var pending []int
	for _, i := range sel.positions(n) {
		in := n.Arg(i)
		if !in.IsConst() || graph.IsQuantized(in) {
			continue
		}
		if !in.DType.IsFloat() {
			return fmt.Errorf("%w: constant %q is %s, want float32", ErrUnsupportedDataType, in.Name(), in.DType)
		}
		pending = append(pending, i)
	}

	clones := make(map[*graph.Node]*graph.Node, len(pending))
	for _, i := range pending {
		src := n.Arg(i)
		clone, ok := clones[src]
		if !ok {
			var err error
			if clone, err = q.quantizeClone(g, src); err != nil {
				return err
			}
			clones[src] = clone
			r.ConstsCloned++
			log.Debug("quantized const input", "node", n.Name(), "const", src.Name(), "clone", clone.Name(),
				"scale", clone.QuantParam.Scale[0], "zerop", clone.QuantParam.ZeroPoint[0])
		}
		if err := g.SetInput(n, i, clone); err != nil {
			return err
		}
	}
	return nil
}

func (q QuantizeConstInputActivation) quantizeClone(g *graph.Graph, src *graph.Node) (*graph.Node, error) {
	values, err := src.Buffer.Float32s()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedDataType, err)
	}
	clone, err := g.CloneConst(src)
	if err != nil {
		return nil, err
	}
	qt := q.Precision.Scheme().Quantise(values)
	dt := dtypeFor(q.Precision)
	buf, err := graph.IntBuffer(dt, qt.Codes)
	if err != nil {
		return nil, err
	}
	clone.DType = dt
	clone.Buffer = buf
	clone.QuantParam = &graph.QuantParam{
		Scale:     []float32{qt.Scale},
		ZeroPoint: []int64{qt.ZeroPoint},
	}
	return clone, nil
}

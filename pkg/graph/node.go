package graph

import "slices"

// QuantParam is the quantization record attached to a node. Min/Max are
// written by calibration; Scale/ZeroPoint by the quantization passes.
type QuantParam struct {
	Min       []float32
	Max       []float32
	Scale     []float32
	ZeroPoint []int64
}

// HasMinMax reports whether calibration recorded a range for the node.
func (q *QuantParam) HasMinMax() bool {
	return q != nil && len(q.Min) > 0 && len(q.Max) > 0
}

// Layerwise reports whether q holds exactly one scale/zero-point pair.
func (q *QuantParam) Layerwise() bool {
	return q != nil && len(q.Scale) == 1 && len(q.ZeroPoint) == 1
}

// Clone deep-copies q.
func (q *QuantParam) Clone() *QuantParam {
	if q == nil {
		return nil
	}
	return &QuantParam{
		Min:       slices.Clone(q.Min),
		Max:       slices.Clone(q.Max),
		Scale:     slices.Clone(q.Scale),
		ZeroPoint: slices.Clone(q.ZeroPoint),
	}
}

// CastAttrs are the data types recorded on a Cast node.
type CastAttrs struct {
	InDataType  DType
	OutDataType DType
}

// Node is a single operation in a Graph. Nodes are created through the
// owning Graph so that ids and names stay unique.
type Node struct {
	id     int
	name   string
	op     OpKind
	inputs []*Node

	DType      DType
	Shape      []int
	Fused      FusedActivation
	QuantParam *QuantParam
	Cast       CastAttrs
	// Buffer holds the values of an OpConst node; nil otherwise.
	Buffer *Buffer
}

func (n *Node) ID() int      { return n.id }
func (n *Node) Name() string { return n.name }
func (n *Node) Op() OpKind   { return n.op }

// Arity returns the number of inputs.
func (n *Node) Arity() int { return len(n.inputs) }

// Arg returns input i, or nil when i is out of range.
func (n *Node) Arg(i int) *Node {
	if i < 0 || i >= len(n.inputs) {
		return nil
	}
	return n.inputs[i]
}

// Inputs returns a copy of the input list.
func (n *Node) Inputs() []*Node { return slices.Clone(n.inputs) }

// Input returns the input bound to the named signature position.
func (n *Node) Input(name string) *Node {
	return n.Arg(n.op.InputIndex(name))
}

// IsConst reports whether n is a constant tensor.
func (n *Node) IsConst() bool { return n != nil && n.op == OpConst }

// Rank returns len(Shape).
func (n *Node) Rank() int { return len(n.Shape) }

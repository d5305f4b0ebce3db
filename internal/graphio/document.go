// Package graphio reads and writes graph documents.
//
// A document lists nodes by name; inputs refer to other nodes by name, so
// node order in the file does not matter. Constant values are stored as a
// flat number list in the node's dtype.
package graphio

import (
	"errors"
	"fmt"
	"math"

	"github.com/samcharles93/actquant/pkg/graph"
)

// ErrInvalidDocument wraps every structural problem found while building a
// graph from a document.
var ErrInvalidDocument = errors.New("invalid graph document")

type Document struct {
	Name    string    `json:"name" yaml:"name"`
	Nodes   []NodeDoc `json:"nodes" yaml:"nodes"`
	Outputs []string  `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

type NodeDoc struct {
	Name            string         `json:"name" yaml:"name"`
	Op              string         `json:"op" yaml:"op"`
	DType           string         `json:"dtype" yaml:"dtype"`
	Shape           []int          `json:"shape,omitempty" yaml:"shape,omitempty,flow"`
	Inputs          []string       `json:"inputs,omitempty" yaml:"inputs,omitempty,flow"`
	FusedActivation string         `json:"fused_activation,omitempty" yaml:"fused_activation,omitempty"`
	QuantParam      *QuantParamDoc `json:"quantparam,omitempty" yaml:"quantparam,omitempty"`
	InDataType      string         `json:"in_data_type,omitempty" yaml:"in_data_type,omitempty"`
	OutDataType     string         `json:"out_data_type,omitempty" yaml:"out_data_type,omitempty"`
	Data            []float64      `json:"data,omitempty" yaml:"data,omitempty,flow"`
}

type QuantParamDoc struct {
	Min   []float32 `json:"min,omitempty" yaml:"min,omitempty,flow"`
	Max   []float32 `json:"max,omitempty" yaml:"max,omitempty,flow"`
	Scale []float32 `json:"scale,omitempty" yaml:"scale,omitempty,flow"`
	ZeroP []int64   `json:"zerop,omitempty" yaml:"zerop,omitempty,flow"`
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...))
}

// Build converts doc into a graph. Nodes are inserted operands first.
func Build(doc *Document) (*graph.Graph, error) {
	byName := make(map[string]*NodeDoc, len(doc.Nodes))
	for i := range doc.Nodes {
		nd := &doc.Nodes[i]
		if nd.Name == "" {
			return nil, invalidf("node %d has no name", i)
		}
		if _, dup := byName[nd.Name]; dup {
			return nil, invalidf("duplicate node name %q", nd.Name)
		}
		byName[nd.Name] = nd
	}

	g := graph.New(doc.Name)
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(doc.Nodes))

	var visit func(nd *NodeDoc) error
	visit = func(nd *NodeDoc) error {
		switch state[nd.Name] {
		case done:
			return nil
		case visiting:
			return invalidf("cycle through node %q", nd.Name)
		}
		state[nd.Name] = visiting
		inputs := make([]*graph.Node, len(nd.Inputs))
		for i, in := range nd.Inputs {
			src, ok := byName[in]
			if !ok {
				return invalidf("node %q: input %d refers to unknown node %q", nd.Name, i, in)
			}
			if err := visit(src); err != nil {
				return err
			}
			inputs[i] = g.Node(in)
		}
		if err := addNode(g, nd, inputs); err != nil {
			return err
		}
		state[nd.Name] = done
		return nil
	}
	for i := range doc.Nodes {
		if err := visit(&doc.Nodes[i]); err != nil {
			return nil, err
		}
	}

	outputs := make([]*graph.Node, len(doc.Outputs))
	for i, name := range doc.Outputs {
		if outputs[i] = g.Node(name); outputs[i] == nil {
			return nil, invalidf("output %q is not a node", name)
		}
	}
	if err := g.SetOutputs(outputs...); err != nil {
		return nil, err
	}
	return g, nil
}

func addNode(g *graph.Graph, nd *NodeDoc, inputs []*graph.Node) error {
	op, err := graph.ParseOpKind(nd.Op)
	if err != nil {
		return invalidf("node %q: %v", nd.Name, err)
	}
	dt, err := graph.ParseDType(nd.DType)
	if err != nil {
		return invalidf("node %q: %v", nd.Name, err)
	}

	var n *graph.Node
	if op == graph.OpConst {
		if len(inputs) > 0 {
			return invalidf("const %q has inputs", nd.Name)
		}
		buf, err := encodeData(dt, nd.Data)
		if err != nil {
			return invalidf("const %q: %v", nd.Name, err)
		}
		if n, err = g.AddConst(nd.Name, nd.Shape, buf); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
	} else {
		if len(nd.Data) > 0 {
			return invalidf("node %q: only const nodes carry data", nd.Name)
		}
		if n, err = g.Add(op, nd.Name, dt, inputs...); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
		n.Shape = nd.Shape
	}

	if n.Fused, err = graph.ParseFusedActivation(nd.FusedActivation); err != nil {
		return invalidf("node %q: %v", nd.Name, err)
	}
	if n.Fused != graph.FusedNone && !op.Signature().FusedAct {
		return invalidf("node %q: %s cannot carry fused activation %s", nd.Name, op, n.Fused)
	}
	if nd.InDataType != "" || nd.OutDataType != "" {
		if op != graph.OpCast {
			return invalidf("node %q: cast attributes on %s", nd.Name, op)
		}
		if n.Cast.InDataType, err = graph.ParseDType(nd.InDataType); err != nil {
			return invalidf("node %q: in_data_type: %v", nd.Name, err)
		}
		if n.Cast.OutDataType, err = graph.ParseDType(nd.OutDataType); err != nil {
			return invalidf("node %q: out_data_type: %v", nd.Name, err)
		}
	}
	if qp := nd.QuantParam; qp != nil {
		n.QuantParam = &graph.QuantParam{Min: qp.Min, Max: qp.Max, Scale: qp.Scale, ZeroPoint: qp.ZeroP}
	}
	return nil
}

func encodeData(dt graph.DType, data []float64) (*graph.Buffer, error) {
	if dt == graph.Float32 {
		values := make([]float32, len(data))
		for i, v := range data {
			values[i] = float32(v)
		}
		return graph.Float32Buffer(values), nil
	}
	codes := make([]int64, len(data))
	for i, v := range data {
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("value %d (%v) is not an integer", i, v)
		}
		codes[i] = int64(v)
	}
	return graph.IntBuffer(dt, codes)
}

// FromGraph converts g into a document. Nodes appear in insertion order.
func FromGraph(g *graph.Graph) (*Document, error) {
	doc := &Document{Name: g.Name}
	for _, n := range g.Nodes() {
		nd := NodeDoc{
			Name:  n.Name(),
			Op:    n.Op().String(),
			DType: n.DType.String(),
			Shape: n.Shape,
		}
		for _, in := range n.Inputs() {
			nd.Inputs = append(nd.Inputs, in.Name())
		}
		if n.Fused != graph.FusedNone {
			nd.FusedActivation = n.Fused.String()
		}
		if n.Op() == graph.OpCast && n.Cast != (graph.CastAttrs{}) {
			nd.InDataType = n.Cast.InDataType.String()
			nd.OutDataType = n.Cast.OutDataType.String()
		}
		if qp := n.QuantParam; qp != nil {
			nd.QuantParam = &QuantParamDoc{Min: qp.Min, Max: qp.Max, Scale: qp.Scale, ZeroP: qp.ZeroPoint}
		}
		if n.IsConst() {
			data, err := decodeData(n.Buffer)
			if err != nil {
				return nil, fmt.Errorf("const %q: %w", n.Name(), err)
			}
			nd.Data = data
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, out := range g.Outputs() {
		doc.Outputs = append(doc.Outputs, out.Name())
	}
	return doc, nil
}

func decodeData(buf *graph.Buffer) ([]float64, error) {
	if buf.DType == graph.Float32 {
		values, err := buf.Float32s()
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(values))
		for i, v := range values {
			out[i] = float64(v)
		}
		return out, nil
	}
	codes, err := buf.Int64s()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(codes))
	for i, v := range codes {
		out[i] = float64(v)
	}
	return out, nil
}

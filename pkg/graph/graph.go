package graph

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

var (
	ErrDuplicateName = errors.New("graph: duplicate node name")
	ErrArity         = errors.New("graph: wrong number of inputs")
	ErrForeignNode   = errors.New("graph: node belongs to another graph")
)

// Graph is an arena of nodes. Nodes are never removed; edges are ordered
// input lists on the consumer side.
type Graph struct {
	Name string

	nodes   []*Node
	byName  map[string]*Node
	owner   map[*Node]struct{}
	outputs []*Node
}

// New returns an empty graph.
func New(name string) *Graph {
	return &Graph{
		Name:   name,
		byName: make(map[string]*Node),
		owner:  make(map[*Node]struct{}),
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns a snapshot of the node list in insertion order. Nodes added
// after the call are not part of the snapshot.
func (g *Graph) Nodes() []*Node { return slices.Clone(g.nodes) }

// Node looks a node up by name.
func (g *Graph) Node(name string) *Node { return g.byName[name] }

// Outputs returns the graph outputs.
func (g *Graph) Outputs() []*Node { return slices.Clone(g.outputs) }

// SetOutputs replaces the graph outputs.
func (g *Graph) SetOutputs(nodes ...*Node) error {
	for _, n := range nodes {
		if !g.owns(n) {
			return fmt.Errorf("%w: output %q", ErrForeignNode, nodeName(n))
		}
	}
	g.outputs = slices.Clone(nodes)
	return nil
}

// Add appends a node of kind op. The number of inputs must match the kind's
// signature (at least one for variadic kinds).
func (g *Graph) Add(op OpKind, name string, dtype DType, inputs ...*Node) (*Node, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("graph: node %q: invalid op kind %d", name, uint16(op))
	}
	sig := op.Signature()
	switch {
	case sig.Variadic && len(inputs) == 0:
		return nil, fmt.Errorf("%w: %s %q needs at least one input", ErrArity, op, name)
	case !sig.Variadic && len(inputs) != len(sig.Inputs):
		return nil, fmt.Errorf("%w: %s %q has %d inputs, want %d", ErrArity, op, name, len(inputs), len(sig.Inputs))
	}
	for i, in := range inputs {
		if !g.owns(in) {
			return nil, fmt.Errorf("%w: input %d of %q", ErrForeignNode, i, name)
		}
	}
	if name == "" {
		name = g.uniqueName(op.String())
	}
	if _, ok := g.byName[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	n := &Node{
		id:     len(g.nodes),
		name:   name,
		op:     op,
		inputs: slices.Clone(inputs),
		DType:  dtype,
	}
	g.insert(n)
	return n, nil
}

// AddConst appends a constant node that owns buf.
func (g *Graph) AddConst(name string, shape []int, buf *Buffer) (*Node, error) {
	if buf == nil {
		return nil, fmt.Errorf("graph: const %q has no buffer", name)
	}
	if want := numElements(shape); want != buf.Len() {
		return nil, fmt.Errorf("graph: const %q has %d values, shape %v wants %d", name, buf.Len(), shape, want)
	}
	n, err := g.Add(OpConst, name, buf.DType)
	if err != nil {
		return nil, err
	}
	n.Shape = slices.Clone(shape)
	n.Buffer = buf
	return n, nil
}

// SetInput redirects input i of consumer to src. Only that one edge changes.
func (g *Graph) SetInput(consumer *Node, i int, src *Node) error {
	if !g.owns(consumer) || !g.owns(src) {
		return ErrForeignNode
	}
	if i < 0 || i >= len(consumer.inputs) {
		return fmt.Errorf("%w: %q has no input %d", ErrArity, consumer.name, i)
	}
	consumer.inputs[i] = src
	return nil
}

// CloneConst allocates a new constant node with the same shape and an
// independent copy of src's buffer. The quant record is not copied. The
// clone gets a fresh name derived from src.
func (g *Graph) CloneConst(src *Node) (*Node, error) {
	if !src.IsConst() {
		return nil, fmt.Errorf("graph: clone of non-const %q (%s)", nodeName(src), src.op)
	}
	if !g.owns(src) {
		return nil, ErrForeignNode
	}
	n := &Node{
		id:     len(g.nodes),
		name:   g.uniqueName(src.name),
		op:     OpConst,
		DType:  src.DType,
		Shape:  slices.Clone(src.Shape),
		Buffer: src.Buffer.Clone(),
	}
	g.insert(n)
	return n, nil
}

// PostOrder returns every node ordered so that each node follows its inputs.
// Nodes unreachable from the outputs are included; ties keep insertion order.
func (g *Graph) PostOrder() []*Node {
	order := make([]*Node, 0, len(g.nodes))
	state := make(map[*Node]uint8, len(g.nodes))
	type frame struct {
		n    *Node
		next int
	}
	for _, root := range g.nodes {
		if state[root] != 0 {
			continue
		}
		stack := []frame{{n: root}}
		state[root] = 1
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(top.n.inputs) {
				in := top.n.inputs[top.next]
				top.next++
				if state[in] == 0 {
					state[in] = 1
					stack = append(stack, frame{n: in})
				}
				continue
			}
			state[top.n] = 2
			order = append(order, top.n)
			stack = stack[:len(stack)-1]
		}
	}
	return order
}

// Use is one edge seen from its source: Consumer reads the source at Index.
type Use struct {
	Consumer *Node
	Index    int
}

// UseIndex maps each node to the edges that read it.
type UseIndex map[*Node][]Use

// Of returns the uses of n.
func (u UseIndex) Of(n *Node) []Use { return u[n] }

// Uses builds a reverse-edge index. The index is a snapshot; edges rewired
// afterwards are not reflected.
func (g *Graph) Uses() UseIndex {
	idx := make(UseIndex, len(g.nodes))
	for _, n := range g.nodes {
		for i, in := range n.inputs {
			idx[in] = append(idx[in], Use{Consumer: n, Index: i})
		}
	}
	return idx
}

// Clone deep-copies the graph, including buffers and quant records.
func (g *Graph) Clone() *Graph {
	out := New(g.Name)
	mapped := make(map[*Node]*Node, len(g.nodes))
	for _, n := range g.nodes {
		c := &Node{
			id:         n.id,
			name:       n.name,
			op:         n.op,
			DType:      n.DType,
			Shape:      slices.Clone(n.Shape),
			Fused:      n.Fused,
			QuantParam: n.QuantParam.Clone(),
			Cast:       n.Cast,
			Buffer:     n.Buffer.Clone(),
		}
		mapped[n] = c
		out.insert(c)
	}
	for _, n := range g.nodes {
		c := mapped[n]
		c.inputs = make([]*Node, len(n.inputs))
		for i, in := range n.inputs {
			c.inputs[i] = mapped[in]
		}
	}
	for _, o := range g.outputs {
		out.outputs = append(out.outputs, mapped[o])
	}
	return out
}

func (g *Graph) insert(n *Node) {
	g.nodes = append(g.nodes, n)
	g.byName[n.name] = n
	g.owner[n] = struct{}{}
}

func (g *Graph) owns(n *Node) bool {
	if n == nil {
		return false
	}
	_, ok := g.owner[n]
	return ok
}

func (g *Graph) uniqueName(base string) string {
	if _, taken := g.byName[base]; !taken {
		return base
	}
	for i := 1; ; i++ {
		name := base + "_" + strconv.Itoa(i)
		if _, taken := g.byName[name]; !taken {
			return name
		}
	}
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func nodeName(n *Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.name
}

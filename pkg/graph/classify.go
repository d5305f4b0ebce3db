package graph

// IsQuantized reports whether n already carries quantized data: a quant
// record plus an integer storage type (activations/weights in U8 or S16,
// biases in S32 or S64).
func IsQuantized(n *Node) bool {
	if n == nil || n.QuantParam == nil {
		return false
	}
	switch n.DType {
	case Uint8, Int16, Int32, Int64:
		return true
	default:
		return false
	}
}

// IsWeights reports whether n is a constant whose every consumer reads it as
// the filter/weights operand of a conv or fully connected layer. Transpose
// conv filters count only when rank 4.
func IsWeights(n *Node, uses UseIndex) bool {
	if !n.IsConst() {
		return false
	}
	for _, u := range uses.Of(n) {
		c := u.Consumer
		weights := false
		switch c.Op() {
		case OpConv2D, OpDepthwiseConv2D:
			weights = c.Input("filter") == n
		case OpTransposeConv:
			weights = c.Input("filter") == n && n.Rank() == 4
		case OpFullyConnected:
			weights = c.Input("weights") == n
		}
		if !weights {
			return false
		}
	}
	return true
}

// BiasOf returns the layers that read n as their bias operand.
func BiasOf(n *Node, uses UseIndex) []*Node {
	var layers []*Node
	for _, u := range uses.Of(n) {
		switch u.Consumer.Op() {
		case OpConv2D, OpDepthwiseConv2D, OpFullyConnected, OpTransposeConv:
			if u.Consumer.Op().InputIndex("bias") == u.Index {
				layers = append(layers, u.Consumer)
			}
		}
	}
	return layers
}

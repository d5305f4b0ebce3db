package graph

import (
	"fmt"
	"strings"
)

// OpKind identifies the operation a node performs. The set is closed: every
// kind has an entry in the signature table below.
type OpKind uint16

const (
	OpInvalid OpKind = iota
	OpInput
	OpConst
	OpCast
	OpAdd
	OpAddN
	OpArgMax
	OpArgMin
	OpAveragePool2D
	OpBatchMatMul
	OpBatchToSpaceND
	OpCeil
	OpConcatenation
	OpConv2D
	OpDepthToSpace
	OpDepthwiseConv2D
	OpDiv
	OpElu
	OpEqual
	OpExp
	OpFloor
	OpFloorDiv
	OpFloorMod
	OpFullyConnected
	OpGather
	OpGreater
	OpGreaterEqual
	OpInstanceNorm
	OpLess
	OpLessEqual
	OpLocalResponseNormalization
	OpLogicalAnd
	OpLogicalNot
	OpLogicalOr
	OpLogistic
	OpMaxPool2D
	OpMaximum
	OpMean
	OpMinimum
	OpMirrorPad
	OpMul
	OpNotEqual
	OpOneHot
	OpPack
	OpPad
	OpPadV2
	OpPow
	OpPRelu
	OpReduceAny
	OpReduceMax
	OpReduceMin
	OpReduceProd
	OpRelu
	OpReshape
	OpResizeBilinear
	OpResizeNearestNeighbor
	OpReverseSequence
	OpRsqrt
	OpSlice
	OpSoftmax
	OpSpaceToBatchND
	OpSpaceToDepth
	OpSplit
	OpSplitV
	OpSqrt
	OpStridedSlice
	OpSub
	OpSum
	OpTanh
	OpTile
	OpTopKV2
	OpTranspose
	OpTransposeConv
	OpUnpack

	numOpKinds
)

// Signature describes the inputs of an op kind.
type Signature struct {
	Name string
	// Inputs names each positional input. Empty for variadic kinds.
	Inputs []string
	// Variadic kinds accept any number (>= 1) of inputs.
	Variadic bool
	// FusedAct is set for kinds that may carry a fused activation function.
	FusedAct bool
}

var (
	unary        = []string{"x"}
	binaryInputs = []string{"x", "y"}
	reduce       = []string{"input", "reduction_indices"}
	resize       = []string{"input", "size"}
	convLike     = []string{"input", "filter", "bias"}
)

var signatures = [numOpKinds]Signature{
	OpInput:                      {Name: "input"},
	OpConst:                      {Name: "const"},
	OpCast:                       {Name: "cast", Inputs: unary},
	OpAdd:                        {Name: "add", Inputs: binaryInputs, FusedAct: true},
	OpAddN:                       {Name: "add_n", Variadic: true},
	OpArgMax:                     {Name: "arg_max", Inputs: []string{"input", "dimension"}},
	OpArgMin:                     {Name: "arg_min", Inputs: []string{"input", "dimension"}},
	OpAveragePool2D:              {Name: "average_pool_2d", Inputs: []string{"value"}, FusedAct: true},
	OpBatchMatMul:                {Name: "batch_matmul", Inputs: binaryInputs},
	OpBatchToSpaceND:             {Name: "batch_to_space_nd", Inputs: []string{"input", "block_shape", "crops"}},
	OpCeil:                       {Name: "ceil", Inputs: unary},
	OpConcatenation:              {Name: "concatenation", Variadic: true, FusedAct: true},
	OpConv2D:                     {Name: "conv_2d", Inputs: convLike, FusedAct: true},
	OpDepthToSpace:               {Name: "depth_to_space", Inputs: []string{"input"}},
	OpDepthwiseConv2D:            {Name: "depthwise_conv_2d", Inputs: convLike, FusedAct: true},
	OpDiv:                        {Name: "div", Inputs: binaryInputs, FusedAct: true},
	OpElu:                        {Name: "elu", Inputs: []string{"features"}},
	OpEqual:                      {Name: "equal", Inputs: binaryInputs},
	OpExp:                        {Name: "exp", Inputs: unary},
	OpFloor:                      {Name: "floor", Inputs: unary},
	OpFloorDiv:                   {Name: "floor_div", Inputs: binaryInputs},
	OpFloorMod:                   {Name: "floor_mod", Inputs: binaryInputs},
	OpFullyConnected:             {Name: "fully_connected", Inputs: []string{"input", "weights", "bias"}, FusedAct: true},
	OpGather:                     {Name: "gather", Inputs: []string{"params", "indices"}},
	OpGreater:                    {Name: "greater", Inputs: binaryInputs},
	OpGreaterEqual:               {Name: "greater_equal", Inputs: binaryInputs},
	OpInstanceNorm:               {Name: "instance_norm", Inputs: []string{"input", "gamma", "beta"}, FusedAct: true},
	OpLess:                       {Name: "less", Inputs: binaryInputs},
	OpLessEqual:                  {Name: "less_equal", Inputs: binaryInputs},
	OpLocalResponseNormalization: {Name: "local_response_normalization", Inputs: []string{"input"}},
	OpLogicalAnd:                 {Name: "logical_and", Inputs: binaryInputs},
	OpLogicalNot:                 {Name: "logical_not", Inputs: unary},
	OpLogicalOr:                  {Name: "logical_or", Inputs: binaryInputs},
	OpLogistic:                   {Name: "logistic", Inputs: unary},
	OpMaxPool2D:                  {Name: "max_pool_2d", Inputs: []string{"value"}, FusedAct: true},
	OpMaximum:                    {Name: "maximum", Inputs: binaryInputs},
	OpMean:                       {Name: "mean", Inputs: reduce},
	OpMinimum:                    {Name: "minimum", Inputs: binaryInputs},
	OpMirrorPad:                  {Name: "mirror_pad", Inputs: []string{"input", "paddings"}},
	OpMul:                        {Name: "mul", Inputs: binaryInputs, FusedAct: true},
	OpNotEqual:                   {Name: "not_equal", Inputs: binaryInputs},
	OpOneHot:                     {Name: "one_hot", Inputs: []string{"indices", "depth", "on_value", "off_value"}},
	OpPack:                       {Name: "pack", Variadic: true},
	OpPad:                        {Name: "pad", Inputs: []string{"input", "paddings"}},
	OpPadV2:                      {Name: "pad_v2", Inputs: []string{"input", "paddings", "constant_values"}},
	OpPow:                        {Name: "pow", Inputs: binaryInputs},
	OpPRelu:                      {Name: "prelu", Inputs: []string{"input", "alpha"}},
	OpReduceAny:                  {Name: "reduce_any", Inputs: reduce},
	OpReduceMax:                  {Name: "reduce_max", Inputs: reduce},
	OpReduceMin:                  {Name: "reduce_min", Inputs: reduce},
	OpReduceProd:                 {Name: "reduce_prod", Inputs: reduce},
	OpRelu:                       {Name: "relu", Inputs: []string{"features"}},
	OpReshape:                    {Name: "reshape", Inputs: []string{"tensor", "shape"}},
	OpResizeBilinear:             {Name: "resize_bilinear", Inputs: resize},
	OpResizeNearestNeighbor:      {Name: "resize_nearest_neighbor", Inputs: resize},
	OpReverseSequence:            {Name: "reverse_sequence", Inputs: []string{"input", "seq_lengths"}},
	OpRsqrt:                      {Name: "rsqrt", Inputs: unary},
	OpSlice:                      {Name: "slice", Inputs: []string{"input", "begin", "size"}},
	OpSoftmax:                    {Name: "softmax", Inputs: []string{"logits"}},
	OpSpaceToBatchND:             {Name: "space_to_batch_nd", Inputs: []string{"input", "block_shape", "paddings"}},
	OpSpaceToDepth:               {Name: "space_to_depth", Inputs: []string{"input"}},
	OpSplit:                      {Name: "split", Inputs: []string{"split_dim", "input"}},
	OpSplitV:                     {Name: "split_v", Inputs: []string{"input", "size_splits", "split_dim"}},
	OpSqrt:                       {Name: "sqrt", Inputs: unary},
	OpStridedSlice:               {Name: "strided_slice", Inputs: []string{"input", "begin", "end", "strides"}},
	OpSub:                        {Name: "sub", Inputs: binaryInputs, FusedAct: true},
	OpSum:                        {Name: "sum", Inputs: reduce},
	OpTanh:                       {Name: "tanh", Inputs: unary},
	OpTile:                       {Name: "tile", Inputs: []string{"input", "multiples"}},
	OpTopKV2:                     {Name: "top_k_v2", Inputs: []string{"input", "k"}},
	OpTranspose:                  {Name: "transpose", Inputs: []string{"a", "perm"}},
	OpTransposeConv:              {Name: "transpose_conv", Inputs: []string{"input_sizes", "filter", "out_backprop", "bias"}, FusedAct: true},
	OpUnpack:                     {Name: "unpack", Inputs: []string{"value"}},
}

var opKindsByName = func() map[string]OpKind {
	m := make(map[string]OpKind, numOpKinds)
	for k := OpKind(1); k < numOpKinds; k++ {
		m[signatures[k].Name] = k
	}
	return m
}()

// Signature returns the static input signature of k.
func (k OpKind) Signature() Signature {
	if k == OpInvalid || k >= numOpKinds {
		return Signature{}
	}
	return signatures[k]
}

// Valid reports whether k is a known operation kind.
func (k OpKind) Valid() bool { return k > OpInvalid && k < numOpKinds }

func (k OpKind) String() string {
	if k.Valid() {
		return signatures[k].Name
	}
	return fmt.Sprintf("op(%d)", uint16(k))
}

// InputIndex returns the position of the named input, or -1.
func (k OpKind) InputIndex(name string) int {
	for i, in := range k.Signature().Inputs {
		if in == name {
			return i
		}
	}
	return -1
}

// OpKinds returns every valid kind in declaration order.
func OpKinds() []OpKind {
	out := make([]OpKind, 0, numOpKinds-1)
	for k := OpKind(1); k < numOpKinds; k++ {
		out = append(out, k)
	}
	return out
}

// ParseOpKind accepts snake_case names ("conv_2d") and is case-insensitive.
func ParseOpKind(s string) (OpKind, error) {
	if k, ok := opKindsByName[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return OpInvalid, fmt.Errorf("graph: unknown op kind %q", s)
}

func (k OpKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("graph: cannot encode op kind %d", uint16(k))
	}
	return []byte(k.String()), nil
}

func (k *OpKind) UnmarshalText(b []byte) error {
	v, err := ParseOpKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// FusedActivation is an activation function executed as part of the
// preceding op rather than as a separate node.
type FusedActivation uint8

const (
	FusedNone FusedActivation = iota
	FusedRelu
	FusedRelu6
	FusedReluN1To1
	FusedTanh
)

var fusedNames = [...]string{
	FusedNone:      "none",
	FusedRelu:      "relu",
	FusedRelu6:     "relu6",
	FusedReluN1To1: "relu_n1_to_1",
	FusedTanh:      "tanh",
}

func (f FusedActivation) String() string {
	if int(f) < len(fusedNames) {
		return fusedNames[f]
	}
	return fmt.Sprintf("fused(%d)", uint8(f))
}

// ParseFusedActivation maps a name to its activation; the empty string is none.
func ParseFusedActivation(s string) (FusedActivation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FusedNone, nil
	}
	for i, name := range fusedNames {
		if name == s {
			return FusedActivation(i), nil
		}
	}
	return FusedNone, fmt.Errorf("graph: unknown fused activation %q", s)
}

package pass

import (
	"errors"
	"fmt"

	"github.com/samcharles93/actquant/pkg/graph"
)

var (
	// ErrUnsupportedDataType is returned when a tensor or the target
	// precision has a type the quantizer cannot handle.
	ErrUnsupportedDataType = errors.New("unsupported data type")
	// ErrUnsupportedOperation is returned when a node with constant inputs
	// has no const-input entry.
	ErrUnsupportedOperation = errors.New("unsupported operation for const inputs")
	// ErrInvariantViolation marks a broken precondition left by an upstream
	// step (calibration, an earlier phase, graph construction).
	ErrInvariantViolation = errors.New("invariant violation")
)

// NodeError attributes a failure to the node being visited.
type NodeError struct {
	Phase string
	Node  string
	Op    graph.OpKind
	Err   error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: node %q (%s): %v", e.Phase, e.Node, e.Op, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

func nodeError(phase string, n *graph.Node, err error) error {
	return &NodeError{Phase: phase, Node: n.Name(), Op: n.Op(), Err: err}
}

func invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}

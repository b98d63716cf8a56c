package kernel

import (
	"context"
	"fmt"
	"sync"

	"github.com/born-ml/dwconv/internal/logger"
	"github.com/google/uuid"
)

// Graph owns the nodes constructed for it.
type Graph struct {
	mu    sync.Mutex
	nodes []*Node
	log   logger.Logger
}

// NewGraph creates an empty graph. A nil logger discards output.
func NewGraph(log logger.Logger) *Graph {
	if log == nil {
		log = logger.Nop()
	}
	return &Graph{log: log}
}

// Logger returns the graph's logger.
func (g *Graph) Logger() logger.Logger {
	return g.log
}

// CreateNode attaches a queried kernel to a new node.
func (g *Graph) CreateNode(k *Kernel) (*Node, error) {
	if err := k.transition(Queried, Constructed, nil); err != nil {
		return nil, err
	}

	n := &Node{ID: uuid.New(), graph: g, kernel: k}

	g.mu.Lock()
	g.nodes = append(g.nodes, n)
	g.mu.Unlock()

	g.log.Debug("node created", "node", n.ID, "kernel", k.Info().Name)
	return n, nil
}

// RemoveNode detaches a node, drops its scalar references and releases its kernel.
func (g *Graph) RemoveNode(n *Node) {
	g.mu.Lock()
	for i, other := range g.nodes {
		if other == n {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			break
		}
	}
	g.mu.Unlock()

	n.release()
	g.log.Debug("node removed", "node", n.ID)
}

// Nodes returns the attached nodes in creation order.
func (g *Graph) Nodes() []*Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Node(nil), g.nodes...)
}

// Release removes every node.
func (g *Graph) Release() {
	for _, n := range g.Nodes() {
		g.RemoveNode(n)
	}
}

// Node is one kernel instance attached to a graph.
type Node struct {
	ID uuid.UUID

	graph  *Graph
	kernel *Kernel

	mu     sync.Mutex
	params []Param
}

// Kernel returns the node's kernel object.
func (n *Node) Kernel() *Kernel {
	return n.kernel
}

// Params returns a copy of the bound parameters.
func (n *Node) Params() []Param {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Param(nil), n.params...)
}

// PassParams validates params against the kernel schema, binds them to the
// node and makes the kernel executable. A nil pointer counts as an absent
// slot. The node takes its own reference on every scalar.
func (n *Node) PassParams(params []Param) error {
	schema := n.kernel.Info().Params
	if len(params) != len(schema) {
		return fmt.Errorf("%w: got %d, schema has %d", ErrParamCount, len(params), len(schema))
	}
	bound := make([]Param, len(params))
	for i, p := range params {
		if IsNil(p) {
			p = nil
		}
		if err := checkParam(i, schema[i], p); err != nil {
			return err
		}
		bound[i] = p
	}

	return n.kernel.transition(Constructed, Executable, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.params = bound
		for _, p := range n.params {
			if s, ok := p.(*Scalar); ok {
				s.retain()
			}
		}
	})
}

// Execute runs the kernel function once with the bound parameters.
func (n *Node) Execute(ctx context.Context) error {
	if st := n.kernel.State(); st != Executable {
		return fmt.Errorf("%w: node %s is %s", ErrState, n.ID, st)
	}
	ctx = logger.WithContext(ctx, n.graph.log.With("node", n.ID))
	return n.kernel.Info().Function(ctx, n, n.Params())
}

func (n *Node) release() {
	n.mu.Lock()
	for _, p := range n.params {
		if s, ok := p.(*Scalar); ok {
			s.Release()
		}
	}
	n.params = nil
	n.mu.Unlock()

	n.kernel.release()
}

func checkParam(i int, desc ParamDesc, p Param) error {
	if p == nil {
		if desc.State == Required {
			return fmt.Errorf("%w: slot %d", ErrMissingParam, i)
		}
		return nil
	}
	switch desc.Type {
	case TypeTensor:
		if _, ok := p.(Tensor); !ok {
			return fmt.Errorf("%w: slot %d wants a tensor, got %T", ErrParamType, i, p)
		}
	case TypeScalar:
		if _, ok := p.(*Scalar); !ok {
			return fmt.Errorf("%w: slot %d wants a scalar, got %T", ErrParamType, i, p)
		}
	}
	return nil
}

package kernel

import (
	"fmt"
	"sort"
	"sync"
)

// Backend names the implementation family a kernel belongs to.
type Backend string

// Known backends.
const (
	BackendCPU Backend = "cpu"
)

// SetupFunc builds a node for an operation. It returns (nil, nil) when the
// kernel is not applicable to the given tensors so the registry can try the
// next candidate; an error is a hard failure.
type SetupFunc func(g *Graph, inputs, outputs []Tensor, params Params) (*Node, error)

type candidate struct {
	backend Backend
	setup   SetupFunc
}

// Registry maps operation names to the kernels that can implement them.
type Registry struct {
	mu     sync.RWMutex
	setups map[string][]candidate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		setups: make(map[string][]candidate),
	}
}

// Register adds a kernel for op. Candidates are tried in registration order.
func (r *Registry) Register(op string, backend Backend, setup SetupFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setups[op] = append(r.setups[op], candidate{backend: backend, setup: setup})
}

// Get returns the backends registered for op.
func (r *Registry) Get(op string) ([]Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cands, ok := r.setups[op]
	backends := make([]Backend, len(cands))
	for i, c := range cands {
		backends[i] = c.backend
	}
	return backends, ok
}

// Setup builds a node for op with the first candidate that accepts the request.
func (r *Registry) Setup(g *Graph, op string, inputs, outputs []Tensor, params Params) (*Node, Backend, error) {
	r.mu.RLock()
	cands := append([]candidate(nil), r.setups[op]...)
	r.mu.RUnlock()

	if len(cands) == 0 {
		return nil, "", fmt.Errorf("unsupported operator: %s", op)
	}

	for _, c := range cands {
		node, err := c.setup(g, inputs, outputs, params)
		if err != nil {
			return nil, c.backend, fmt.Errorf("%s/%s: %w", c.backend, op, err)
		}
		if node != nil {
			return node, c.backend, nil
		}
		g.Logger().Debug("kernel refused", "op", op, "backend", c.backend)
	}
	return nil, "", fmt.Errorf("%w for %s", ErrNoKernel, op)
}

// SupportedOps returns the registered operation names, sorted.
func (r *Registry) SupportedOps() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ops := make([]string, 0, len(r.setups))
	for op := range r.setups {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

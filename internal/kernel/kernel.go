// Package kernel is the graph runtime the compute kernels plug into: kernel
// descriptors and their parameter schema, scalar slots, graph nodes and the
// per-backend registry that picks a kernel for an operation.
package kernel

import (
	"context"
	"fmt"
	"sync"

	"github.com/born-ml/dwconv/internal/tensor"
)

// Direction tells whether a parameter slot is read or written by the kernel.
type Direction int

// Parameter directions.
const (
	Input Direction = iota
	Output
)

// String returns a human-readable direction name.
func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// ParamType is the kind of object bound to a parameter slot.
type ParamType int

// Parameter types.
const (
	TypeTensor ParamType = iota
	TypeScalar
)

// String returns a human-readable parameter type name.
func (t ParamType) String() string {
	if t == TypeScalar {
		return "scalar"
	}
	return "tensor"
}

// ParamState tells whether a slot must be bound.
type ParamState int

// Parameter states.
const (
	Required ParamState = iota
	Optional
)

// String returns a human-readable state name.
func (s ParamState) String() string {
	if s == Optional {
		return "optional"
	}
	return "required"
}

// ParamDesc describes one slot of a kernel's parameter schema.
type ParamDesc struct {
	Direction Direction
	Type      ParamType
	State     ParamState
}

// Tensor is the handle through which a kernel borrows a tensor for one call.
// Handles must not be retained after the call returns.
type Tensor interface {
	// DType returns the static element type.
	DType() tensor.DataType
	// Describe returns the attribute descriptor.
	Describe() (tensor.Attr, error)
	// ReadBuffer copies the tensor's contents into dst.
	ReadBuffer(attr tensor.Attr, dst []byte) error
	// Write copies n elements from src into the tensor's storage.
	Write(attr tensor.Attr, src []byte, n int) error
}

// Param is the object bound to one parameter slot: a Tensor, a *Scalar, or
// nil for an absent optional slot.
type Param any

// Func is a kernel entry point. params follows the kernel's schema.
type Func func(ctx context.Context, node *Node, params []Param) error

// Info is what a kernel query binds: name, entry point and parameter schema.
type Info struct {
	Name     string
	Function Func
	Params   []ParamDesc
}

// State is a kernel object's lifecycle state.
type State int

// Lifecycle states, in order.
const (
	Unregistered State = iota
	Queried
	Constructed
	Executable
	Released
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Queried:
		return "queried"
	case Constructed:
		return "constructed"
	case Executable:
		return "executable"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

// Kernel is a kernel object moving through the lifecycle
// Unregistered → Queried → Constructed → Executable → Released.
type Kernel struct {
	mu    sync.Mutex
	info  Info
	state State
}

// New returns an unregistered kernel object.
func New() *Kernel {
	return &Kernel{}
}

// Bind records the query result and moves the kernel to Queried.
func (k *Kernel) Bind(info Info) error {
	if info.Name == "" || info.Function == nil || len(info.Params) == 0 {
		return fmt.Errorf("kernel: incomplete info for %q", info.Name)
	}
	return k.transition(Unregistered, Queried, func() { k.info = info })
}

// Info returns the bound kernel info.
func (k *Kernel) Info() Info {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.info
}

// State returns the current lifecycle state.
func (k *Kernel) State() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

func (k *Kernel) transition(from, to State, apply func()) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state != from {
		return fmt.Errorf("%w: %q is %s, want %s", ErrState, k.info.Name, k.state, from)
	}
	if apply != nil {
		apply()
	}
	k.state = to
	return nil
}

func (k *Kernel) release() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.state = Released
}

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package kernel

import (
	"log/slog"

	"github.com/born-ml/dwconv/internal/kernel"
	"github.com/born-ml/dwconv/internal/logger"
)

// Registry maps operations to the setup functions of candidate kernels.
type Registry = kernel.Registry

// Graph owns the nodes constructed for it.
type Graph = kernel.Graph

// Node is one kernel instance attached to a graph.
type Node = kernel.Node

// Kernel is a kernel object moving through its lifecycle states.
type Kernel = kernel.Kernel

// Tensor is the tensor handle contract kernels consume.
type Tensor = kernel.Tensor

// Params holds the named configuration values supplied when a node is set up.
type Params = kernel.Params

// Backend names a kernel implementation family.
type Backend = kernel.Backend

// SetupFunc builds a node for an operation, or returns (nil, nil) to refuse.
type SetupFunc = kernel.SetupFunc

// State is a kernel lifecycle state.
type State = kernel.State

// Kernel lifecycle states.
const (
	Unregistered = kernel.Unregistered
	Queried      = kernel.Queried
	Constructed  = kernel.Constructed
	Executable   = kernel.Executable
	Released     = kernel.Released
)

// BackendCPU is the CPU kernel family.
const BackendCPU = kernel.BackendCPU

// Invocation error categories.
var (
	ErrAllocation = kernel.ErrAllocation
	ErrConfig     = kernel.ErrConfig
	ErrCompute    = kernel.ErrCompute
	ErrWriteBack  = kernel.ErrWriteBack
	ErrNoKernel   = kernel.ErrNoKernel
	ErrParamRange = kernel.ErrParamRange
)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return kernel.NewRegistry()
}

// NewGraph creates an empty graph that logs through h. A nil handler
// discards output.
func NewGraph(h slog.Handler) *Graph {
	if h == nil {
		return kernel.NewGraph(nil)
	}
	return kernel.NewGraph(logger.New(h))
}

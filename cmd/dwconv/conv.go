package main

import (
	"errors"
	"fmt"

	"github.com/born-ml/dwconv/internal/bufpool"
	"github.com/born-ml/dwconv/internal/kernel"
	"github.com/born-ml/dwconv/internal/kernel/cpu"
	"github.com/born-ml/dwconv/internal/tensor"
)

// convJob is one depthwise Conv1D problem: operands, configuration and the
// quantization of the output to produce.
type convJob struct {
	input, kernel *tensor.RawTensor
	bias          *tensor.RawTensor // optional
	params        cpu.Conv1DParams
	outQuant      tensor.Quantization
}

// newRegistry returns a registry with the CPU kernel registered over alloc.
func newRegistry(alloc bufpool.Allocator) *kernel.Registry {
	r := kernel.NewRegistry()
	cpu.NewDepthwiseConv1D(cpu.WithAllocator(alloc)).Register(r)
	return r
}

// prepare allocates the output tensor and sets up an executable node for the
// job in g.
func (j convJob) prepare(g *kernel.Graph, r *kernel.Registry) (*tensor.RawTensor, *kernel.Node, error) {
	if j.input == nil || j.kernel == nil {
		return nil, nil, errors.New("input and kernel tensors are required")
	}
	if err := j.outQuant.Validate(); err != nil {
		return nil, nil, fmt.Errorf("output: %w", err)
	}

	outShape, err := cpu.OutputShape(j.input.Shape(), j.kernel.Shape()[0], j.params)
	if err != nil {
		return nil, nil, err
	}
	out, err := tensor.NewQuantized(outShape, tensor.Uint8, j.outQuant)
	if err != nil {
		return nil, nil, err
	}

	inputs := []kernel.Tensor{j.input, j.kernel}
	if j.bias != nil {
		inputs = append(inputs, j.bias)
	}
	node, _, err := r.Setup(g, cpu.OpName, inputs, []kernel.Tensor{out}, j.params.Named())
	if err != nil {
		return nil, nil, err
	}
	return out, node, nil
}

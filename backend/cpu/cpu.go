// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"github.com/born-ml/dwconv/internal/bufpool"
	internalcpu "github.com/born-ml/dwconv/internal/kernel/cpu"
	"github.com/born-ml/dwconv/internal/npuref"
	"github.com/born-ml/dwconv/tensor"
)

// DepthwiseConv1D is the CPU quantized depthwise Conv1D kernel. One value
// serves any number of concurrent invocations.
type DepthwiseConv1D = internalcpu.DepthwiseConv1D

// Conv1DParams are the scalar configuration values of one invocation.
type Conv1DParams = internalcpu.Conv1DParams

// Option configures a DepthwiseConv1D.
type Option = internalcpu.Option

// Operation and kernel names.
const (
	OpName     = internalcpu.OpName
	KernelName = internalcpu.KernelName
)

// New creates the kernel. With no options it uses heap buffers and the
// built-in reference backend.
//
// Example:
//
//	d := cpu.New(cpu.WithPool(0))
//	d.Register(registry)
func New(opts ...Option) *DepthwiseConv1D {
	return internalcpu.NewDepthwiseConv1D(opts...)
}

// WithPool makes the kernel draw its flat buffers from a reuse pool keeping at
// most maxPerClass idle buffers per size class (0 selects the default).
func WithPool(maxPerClass int) Option {
	return internalcpu.WithAllocator(bufpool.New(maxPerClass))
}

// OutputShape returns the output shape [OL, C*multiplier, N] for an input of
// shape [L, C, N] and a kernel of length kernelLen.
func OutputShape(input tensor.Shape, kernelLen int, p Conv1DParams) (tensor.Shape, error) {
	return internalcpu.OutputShape(input, kernelLen, p)
}

// Available reports whether the reference backend was compiled in.
func Available() bool {
	return npuref.Exists()
}

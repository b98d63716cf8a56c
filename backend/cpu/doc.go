// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the CPU quantized depthwise Conv1D kernel.
//
// # Overview
//
// The kernel accepts uint8 quantized input, kernel and output tensors, an
// optional int32 bias, and five int32 configuration values: stride, front
// padding, end padding, dilation and depth multiplier. It rewrites the 1-D
// problem as a 2-D depthwise convolution with a synthetic width axis of
// extent 1 and runs the reference quantized arithmetic over flat buffers.
//
// Requests the kernel cannot serve (other element types, or a build without
// the reference backend) are refused rather than failed, so the registry
// moves on to the next candidate.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/dwconv/backend/cpu"
//	    "github.com/born-ml/dwconv/kernel"
//	)
//
//	r := kernel.NewRegistry()
//	cpu.New().Register(r)
//
//	p := cpu.Conv1DParams{Stride: 1, PadFront: 1, PadEnd: 1, Dilation: 1, Multiplier: 1}
//	outShape, _ := cpu.OutputShape(input.Shape(), kernelLen, p)
//
// Build with the nonpuref tag to compile the reference backend out.
package cpu

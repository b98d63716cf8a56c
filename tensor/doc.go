// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the quantized tensor types consumed by the
// depthwise Conv1D kernel.
//
// # Layout
//
// Shapes are innermost-first: a 1-D convolution tensor has shape
// [L, C, N] and element (l, c, n) lives at flat index l + L*(c + C*n).
// Rank is at most 4.
//
// # Quantization
//
// Uint8 tensors carry an affine (scale, zero point) pair mapping a stored
// value q to the real value (q - zero_point) * scale.
//
// # Basic Usage
//
//	import "github.com/born-ml/dwconv/tensor"
//
//	q := tensor.Quantization{Scale: 0.05, ZeroPoint: 128}
//	x, err := tensor.FromUint8(data, tensor.Shape{10, 4, 1}, q)
//	if err != nil {
//	    return err
//	}
//	attr, _ := x.Describe()
//	fmt.Println(attr.NumElements()) // 40
package tensor

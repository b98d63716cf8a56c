// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/dwconv/internal/tensor"
)

// RawTensor is a shaped, typed byte buffer with optional quantization.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Quant()
//   - Typed views via AsUint8(), AsInt8(), AsInt32()
//   - The kernel tensor handle contract via Describe(), ReadBuffer(), Write()
//
// Example:
//
//	raw, _ := tensor.NewQuantized(tensor.Shape{10, 4, 1}, tensor.Uint8, q)
//	data := raw.AsUint8()
type RawTensor = tensor.RawTensor

// Shape represents tensor dimensions, innermost first.
type Shape = tensor.Shape

// DataType represents the element type of a tensor.
type DataType = tensor.DataType

// Supported data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int32   = tensor.Int32
	Int64   = tensor.Int64
	Uint8   = tensor.Uint8
	Int8    = tensor.Int8
	Bool    = tensor.Bool
)

// Quantization is the affine (scale, zero point) pair of a quantized tensor.
type Quantization = tensor.Quantization

// Attr is a tensor's descriptor: element type, shape and quantization.
type Attr = tensor.Attr

// MaxRank is the highest supported tensor rank.
const MaxRank = tensor.MaxRank

// Errors returned by descriptor checks.
var (
	ErrDTypeMismatch = tensor.ErrDTypeMismatch
	ErrShapeMismatch = tensor.ErrShapeMismatch
	ErrBufferSize    = tensor.ErrBufferSize
)

// NewRaw creates a zeroed tensor.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// NewQuantized creates a zeroed tensor with quantization q.
func NewQuantized(shape Shape, dtype DataType, q Quantization) (*RawTensor, error) {
	return tensor.NewQuantized(shape, dtype, q)
}

// FromUint8 creates a quantized uint8 tensor holding a copy of data.
func FromUint8(data []uint8, shape Shape, q Quantization) (*RawTensor, error) {
	return tensor.FromUint8(data, shape, q)
}

// FromInt32 creates an int32 tensor holding a copy of data.
func FromInt32(data []int32, shape Shape) (*RawTensor, error) {
	return tensor.FromInt32(data, shape)
}

// ParseDataType returns the data type named s.
func ParseDataType(s string) (DataType, bool) {
	return tensor.ParseDataType(s)
}

// Package safetensors reads and writes tensors in the SafeTensors format,
// carrying uint8 quantization parameters in the header metadata.
//
// Format:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header]
//	[tensor data: raw bytes]
//
// SafeTensors shapes are outermost-first. Tensors in this module are
// innermost-first, so shapes are reversed on the way in and out; the data
// bytes are identical in both conventions.
package safetensors

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/born-ml/dwconv/internal/tensor"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB
	MaxTensorNameLen = 4096
)

const metadataKey = "__metadata__"

// Metadata key suffixes for quantization parameters.
const (
	scaleSuffix     = ".scale"
	zeroPointSuffix = ".zero_point"
)

// Common errors.
var (
	ErrHeaderTooLarge = errors.New("header exceeds maximum size")
	ErrNotFound       = errors.New("tensor not found")
	ErrOutOfBounds    = errors.New("tensor extends beyond data section")
	ErrDType          = errors.New("unsupported dtype")
	ErrInvalidName    = errors.New("invalid tensor name")
)

// DType is a SafeTensors element type name.
type DType string

// Supported SafeTensors dtypes.
const (
	F32  DType = "F32"
	F64  DType = "F64"
	I32  DType = "I32"
	I64  DType = "I64"
	U8   DType = "U8"
	I8   DType = "I8"
	Bool DType = "BOOL"
)

// TensorInfo describes a tensor in the header.
type TensorInfo struct {
	DType       DType    `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end] relative to the data section
}

func toDataType(dt DType) (tensor.DataType, error) {
	switch dt {
	case F32:
		return tensor.Float32, nil
	case F64:
		return tensor.Float64, nil
	case I32:
		return tensor.Int32, nil
	case I64:
		return tensor.Int64, nil
	case U8:
		return tensor.Uint8, nil
	case I8:
		return tensor.Int8, nil
	case Bool:
		return tensor.Bool, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrDType, dt)
	}
}

func fromDataType(dt tensor.DataType) (DType, error) {
	switch dt {
	case tensor.Float32:
		return F32, nil
	case tensor.Float64:
		return F64, nil
	case tensor.Int32:
		return I32, nil
	case tensor.Int64:
		return I64, nil
	case tensor.Uint8:
		return U8, nil
	case tensor.Int8:
		return I8, nil
	case tensor.Bool:
		return Bool, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrDType, dt)
	}
}

func reversed(dims []int) []int {
	out := make([]int, len(dims))
	for i, d := range dims {
		out[len(dims)-1-i] = d
	}
	return out
}

// quantFromMetadata returns the quantization stored for name, if any.
func quantFromMetadata(meta map[string]string, name string) (tensor.Quantization, bool, error) {
	scaleText, hasScale := meta[name+scaleSuffix]
	zpText, hasZP := meta[name+zeroPointSuffix]
	if !hasScale && !hasZP {
		return tensor.Quantization{}, false, nil
	}

	var q tensor.Quantization
	if hasScale {
		scale, err := strconv.ParseFloat(scaleText, 32)
		if err != nil {
			return q, false, fmt.Errorf("tensor %s: scale %q: %w", name, scaleText, err)
		}
		q.Scale = float32(scale)
	}
	if hasZP {
		zp, err := strconv.ParseInt(zpText, 10, 32)
		if err != nil {
			return q, false, fmt.Errorf("tensor %s: zero point %q: %w", name, zpText, err)
		}
		q.ZeroPoint = int32(zp)
	}
	if err := q.Validate(); err != nil {
		return q, false, fmt.Errorf("tensor %s: %w", name, err)
	}
	return q, true, nil
}

func quantToMetadata(meta map[string]string, name string, q tensor.Quantization) {
	meta[name+scaleSuffix] = strconv.FormatFloat(float64(q.Scale), 'g', -1, 32)
	meta[name+zeroPointSuffix] = strconv.FormatInt(int64(q.ZeroPoint), 10)
}

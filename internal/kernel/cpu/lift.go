package cpu

import (
	"fmt"

	"github.com/born-ml/dwconv/internal/npuref"
	"github.com/born-ml/dwconv/internal/tensor"
)

// Lift1D rewrites a 1-D convolution shape [L, C, N] (innermost-first) as the
// rank-4 shape [1, L, C, N] consumed by the 2-D reference routine. Shapes of
// rank 1 or 2 are padded with trailing unit extents first.
//
// The prepended axis becomes the 2-D width with extent 1. A convolution over
// an axis of extent 1 with a kernel of extent 1, zero padding, unit stride
// and unit dilation reads exactly one tap at offset 0 and produces exactly
// one output position: out_w = (1 + 0 + 0 - 1*(1-1) - 1)/1 + 1 = 1. The sum
// over that axis therefore has a single term and the 2-D result equals the
// 1-D convolution along L. Lifting changes no strides, so the flat buffers
// are reused unchanged.
func Lift1D(shape tensor.Shape) (tensor.Shape, error) {
	if len(shape) == 0 || len(shape) > 3 {
		return nil, fmt.Errorf("conv1d shape %v: rank must be 1 to 3", shape)
	}
	lifted := tensor.Shape{1, 1, 1, 1}
	copy(lifted[1:], shape)
	return lifted, nil
}

// LiftAxes returns the per-axis parameters for a lifted convolution: the
// real axis (2-D height) carries the 1-D padding, stride and dilation; the
// synthetic width axis is the identity.
func LiftAxes(p Conv1DParams) (h, w npuref.Axis) {
	h = npuref.Axis{
		PadFront: int(p.PadFront),
		PadEnd:   int(p.PadEnd),
		Stride:   int(p.Stride),
		Dilation: int(p.Dilation),
	}
	return h, npuref.Identity
}

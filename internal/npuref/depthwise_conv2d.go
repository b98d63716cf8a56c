package npuref

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/dwconv/internal/tensor"
)

// Errors reported by the reference routines.
var (
	ErrRank   = errors.New("npuref: shape must be rank 4")
	ErrShape  = errors.New("npuref: inconsistent shapes")
	ErrBuffer = errors.New("npuref: buffer size does not match shape")
	ErrParam  = errors.New("npuref: invalid parameter")
)

// Axis carries the padding, stride and dilation applied along one spatial axis.
type Axis struct {
	PadFront int
	PadEnd   int
	Stride   int
	Dilation int
}

// Identity is the axis configuration that leaves an axis of extent 1 untouched:
// no padding, unit stride, unit dilation.
var Identity = Axis{PadFront: 0, PadEnd: 0, Stride: 1, Dilation: 1}

func (a Axis) validate() error {
	if a.Stride < 1 || a.Dilation < 1 || a.PadFront < 0 || a.PadEnd < 0 {
		return fmt.Errorf("%w: pad=(%d,%d) stride=%d dilation=%d",
			ErrParam, a.PadFront, a.PadEnd, a.Stride, a.Dilation)
	}
	return nil
}

// OutputSize returns the output extent along an axis of the given input and
// kernel extents: (in + padFront + padEnd - dilation*(kernel-1) - 1)/stride + 1.
func OutputSize(in, kernel int, a Axis) int {
	if a.Stride < 1 {
		return 0
	}
	span := a.Dilation*(kernel-1) + 1
	padded := in + a.PadFront + a.PadEnd
	if padded < span {
		return 0
	}
	return (padded-span)/a.Stride + 1
}

// DepthwiseConv2DArgs bundles the operands of QuantDepthwiseConv2D.
//
// Shapes are rank 4 and innermost-first:
//
//	input  [W,  H,  C_in,  N]
//	kernel [KW, KH, C_out, 1]
//	output [OW, OH, C_out, N]
//
// Input, Kernel and Output hold uint8 values; Bias, when non-empty, holds one
// native-endian int32 per output channel.
type DepthwiseConv2DArgs struct {
	Input  []byte
	Kernel []byte
	Bias   []byte
	Output []byte

	InputShape  tensor.Shape
	KernelShape tensor.Shape
	OutputShape tensor.Shape

	InputQuant  tensor.Quantization
	KernelQuant tensor.Quantization
	OutputQuant tensor.Quantization

	H Axis
	W Axis
}

// QuantDepthwiseConv2D computes a uint8 asymmetric quantized depthwise 2-D
// convolution into args.Output. It returns an error and leaves Output
// untouched when the operands are inconsistent.
func QuantDepthwiseConv2D(args DepthwiseConv2DArgs) error {
	g, err := args.geometry()
	if err != nil {
		return err
	}

	var bias []int32
	if len(args.Bias) > 0 {
		bias = tensor.BytesAsInt32(args.Bias)
	}

	in, kern, out := args.Input, args.Kernel, args.Output
	zx := int64(args.InputQuant.ZeroPoint)
	zw := int64(args.KernelQuant.ZeroPoint)
	zy := float64(args.OutputQuant.ZeroPoint)
	scale := float64(args.InputQuant.Scale) * float64(args.KernelQuant.Scale) / float64(args.OutputQuant.Scale)

	for n := 0; n < g.n; n++ {
		for oc := 0; oc < g.cOut; oc++ {
			ic := oc / g.mult
			inPlane := (ic + g.cIn*n) * g.h * g.w
			kPlane := oc * g.kh * g.kw
			outPlane := (oc + g.cOut*n) * g.oh * g.ow

			for oy := 0; oy < g.oh; oy++ {
				for ox := 0; ox < g.ow; ox++ {
					var acc int64
					if bias != nil {
						acc = int64(bias[oc])
					}

					for ky := 0; ky < g.kh; ky++ {
						iy := oy*args.H.Stride - args.H.PadFront + ky*args.H.Dilation
						if iy < 0 || iy >= g.h {
							continue
						}
						for kx := 0; kx < g.kw; kx++ {
							ix := ox*args.W.Stride - args.W.PadFront + kx*args.W.Dilation
							if ix < 0 || ix >= g.w {
								continue
							}
							x := int64(in[inPlane+iy*g.w+ix]) - zx
							w := int64(kern[kPlane+ky*g.kw+kx]) - zw
							acc += x * w
						}
					}

					out[outPlane+oy*g.ow+ox] = requantize(acc, scale, zy)
				}
			}
		}
	}

	return nil
}

func requantize(acc int64, scale, zeroPoint float64) uint8 {
	v := math.Round(float64(acc)*scale) + zeroPoint
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint8:
		return math.MaxUint8
	default:
		return uint8(v)
	}
}

// geometry is the validated view of the operand shapes.
type geometry struct {
	w, h, cIn, n int
	kw, kh, cOut int
	ow, oh       int
	mult         int
}

func (a *DepthwiseConv2DArgs) geometry() (geometry, error) {
	for _, op := range []struct {
		name  string
		shape tensor.Shape
	}{
		{"input", a.InputShape},
		{"kernel", a.KernelShape},
		{"output", a.OutputShape},
	} {
		if len(op.shape) != 4 {
			return geometry{}, fmt.Errorf("%w: %s has rank %d", ErrRank, op.name, len(op.shape))
		}
		if err := op.shape.Validate(); err != nil {
			return geometry{}, fmt.Errorf("%w: %s: %w", ErrShape, op.name, err)
		}
	}
	if err := a.H.validate(); err != nil {
		return geometry{}, err
	}
	if err := a.W.validate(); err != nil {
		return geometry{}, err
	}
	for _, op := range []struct {
		name  string
		quant tensor.Quantization
	}{
		{"input", a.InputQuant},
		{"kernel", a.KernelQuant},
		{"output", a.OutputQuant},
	} {
		if err := op.quant.Validate(); err != nil {
			return geometry{}, fmt.Errorf("%w: %s: %w", ErrParam, op.name, err)
		}
	}

	g := geometry{
		w: a.InputShape[0], h: a.InputShape[1], cIn: a.InputShape[2], n: a.InputShape[3],
		kw: a.KernelShape[0], kh: a.KernelShape[1], cOut: a.KernelShape[2],
		ow: a.OutputShape[0], oh: a.OutputShape[1],
	}

	if a.KernelShape[3] != 1 {
		return geometry{}, fmt.Errorf("%w: kernel batch extent %d, want 1", ErrShape, a.KernelShape[3])
	}
	if g.cOut%g.cIn != 0 {
		return geometry{}, fmt.Errorf("%w: %d output channels not a multiple of %d input channels",
			ErrShape, g.cOut, g.cIn)
	}
	g.mult = g.cOut / g.cIn
	if a.OutputShape[2] != g.cOut || a.OutputShape[3] != g.n {
		return geometry{}, fmt.Errorf("%w: output %v does not match %d channels, batch %d",
			ErrShape, a.OutputShape, g.cOut, g.n)
	}
	if want := OutputSize(g.w, g.kw, a.W); g.ow != want {
		return geometry{}, fmt.Errorf("%w: output width %d, want %d", ErrShape, g.ow, want)
	}
	if want := OutputSize(g.h, g.kh, a.H); g.oh != want {
		return geometry{}, fmt.Errorf("%w: output height %d, want %d", ErrShape, g.oh, want)
	}

	if len(a.Input) < a.InputShape.NumElements() {
		return geometry{}, fmt.Errorf("%w: input has %d bytes", ErrBuffer, len(a.Input))
	}
	if len(a.Kernel) < a.KernelShape.NumElements() {
		return geometry{}, fmt.Errorf("%w: kernel has %d bytes", ErrBuffer, len(a.Kernel))
	}
	if len(a.Output) < a.OutputShape.NumElements() {
		return geometry{}, fmt.Errorf("%w: output has %d bytes", ErrBuffer, len(a.Output))
	}
	if len(a.Bias) > 0 && len(a.Bias) != 4*g.cOut {
		return geometry{}, fmt.Errorf("%w: bias has %d bytes for %d channels", ErrBuffer, len(a.Bias), g.cOut)
	}

	return g, nil
}

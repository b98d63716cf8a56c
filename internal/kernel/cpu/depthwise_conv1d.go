// Package cpu implements CPU kernels for the graph runtime.
package cpu

import (
	"context"
	"errors"
	"fmt"

	"github.com/born-ml/dwconv/internal/bufpool"
	"github.com/born-ml/dwconv/internal/kernel"
	"github.com/born-ml/dwconv/internal/logger"
	"github.com/born-ml/dwconv/internal/npuref"
	"github.com/born-ml/dwconv/internal/tensor"
)

// OpName is the operation the kernel registers for.
const OpName = "depthwise_conv1d"

// KernelName is the name the kernel binds on query.
const KernelName = "cpu.depthwise_conv1d"

// Parameter slots of the depthwise Conv1D kernel.
const (
	ParamInput = iota
	ParamKernel
	ParamBias
	ParamOutput
	ParamStride
	ParamPadFront
	ParamPadEnd
	ParamDilation
	ParamMultiplier
	ParamNum
)

// inputSlots is the number of leading tensor input slots (input, kernel, bias).
const inputSlots = ParamOutput

var paramDefs = [ParamNum]kernel.ParamDesc{
	ParamInput:      {Direction: kernel.Input, Type: kernel.TypeTensor, State: kernel.Required},
	ParamKernel:     {Direction: kernel.Input, Type: kernel.TypeTensor, State: kernel.Required},
	ParamBias:       {Direction: kernel.Input, Type: kernel.TypeTensor, State: kernel.Optional},
	ParamOutput:     {Direction: kernel.Output, Type: kernel.TypeTensor, State: kernel.Required},
	ParamStride:     {Direction: kernel.Input, Type: kernel.TypeScalar, State: kernel.Required},
	ParamPadFront:   {Direction: kernel.Input, Type: kernel.TypeScalar, State: kernel.Required},
	ParamPadEnd:     {Direction: kernel.Input, Type: kernel.TypeScalar, State: kernel.Required},
	ParamDilation:   {Direction: kernel.Input, Type: kernel.TypeScalar, State: kernel.Required},
	ParamMultiplier: {Direction: kernel.Input, Type: kernel.TypeScalar, State: kernel.Required},
}

var paramNames = [ParamNum]string{
	ParamInput:      "input",
	ParamKernel:     "kernel",
	ParamBias:       "bias",
	ParamOutput:     "output",
	ParamStride:     "stride",
	ParamPadFront:   "pad_front",
	ParamPadEnd:     "pad_end",
	ParamDilation:   "dilation",
	ParamMultiplier: "multiplier",
}

// ParamName returns the name of parameter slot i, which is also the key the
// slot's value is read from in Params for scalar slots.
func ParamName(i int) string {
	if i < 0 || i >= ParamNum {
		return "unknown"
	}
	return paramNames[i]
}

// ParamDefs returns the kernel's parameter schema.
func ParamDefs() []kernel.ParamDesc {
	return append([]kernel.ParamDesc(nil), paramDefs[:]...)
}

// Conv1DParams are the scalar configuration values of one invocation.
type Conv1DParams struct {
	Stride     int32
	PadFront   int32
	PadEnd     int32
	Dilation   int32
	Multiplier int32
}

// ParamsFrom reads the named configuration values, defaulting stride,
// dilation and multiplier to 1 and paddings to 0. A value that is not an
// integer or does not fit in int32 is an error.
func ParamsFrom(p kernel.Params) (Conv1DParams, error) {
	var c Conv1DParams
	for _, f := range []struct {
		index int
		def   int32
		dst   *int32
	}{
		{ParamStride, 1, &c.Stride},
		{ParamPadFront, 0, &c.PadFront},
		{ParamPadEnd, 0, &c.PadEnd},
		{ParamDilation, 1, &c.Dilation},
		{ParamMultiplier, 1, &c.Multiplier},
	} {
		v, err := p.Int32(paramNames[f.index], f.def)
		if err != nil {
			return Conv1DParams{}, err
		}
		*f.dst = v
	}
	return c, nil
}

// Named returns p as named configuration values, the inverse of ParamsFrom.
func (p Conv1DParams) Named() kernel.Params {
	return kernel.Params{
		paramNames[ParamStride]:     p.Stride,
		paramNames[ParamPadFront]:   p.PadFront,
		paramNames[ParamPadEnd]:     p.PadEnd,
		paramNames[ParamDilation]:   p.Dilation,
		paramNames[ParamMultiplier]: p.Multiplier,
	}
}

// OutputShape returns the 1-D output shape [OL, C*multiplier, N] for an input
// shape [L, C, N] and a kernel of length kernelLen. Missing trailing input
// extents count as 1.
func OutputShape(input tensor.Shape, kernelLen int, p Conv1DParams) (tensor.Shape, error) {
	if p.Multiplier < 1 {
		return nil, fmt.Errorf("conv1d: multiplier %d, want at least 1", p.Multiplier)
	}
	lifted, err := Lift1D(input)
	if err != nil {
		return nil, err
	}
	h, _ := LiftAxes(p)
	ol := npuref.OutputSize(lifted[1], kernelLen, h)
	if ol <= 0 {
		return nil, fmt.Errorf("conv1d: non-positive output length for input %v, kernel %d", input, kernelLen)
	}
	return tensor.Shape{ol, lifted[2] * int(p.Multiplier), lifted[3]}, nil
}

// DepthwiseConv1D is the CPU quantized depthwise Conv1D kernel. It lifts the
// 1-D problem to a 2-D one and delegates the arithmetic to the reference
// backend. It keeps no per-invocation state, so one value serves any number
// of concurrent invocations.
type DepthwiseConv1D struct {
	alloc     bufpool.Allocator
	available func() bool
	reference func(npuref.DepthwiseConv2DArgs) error
}

// Option configures a DepthwiseConv1D.
type Option func(*DepthwiseConv1D)

// WithAllocator sets the allocator for flat buffers.
func WithAllocator(a bufpool.Allocator) Option {
	return func(d *DepthwiseConv1D) { d.alloc = a }
}

// WithReferenceCheck replaces the reference backend capability check.
func WithReferenceCheck(available func() bool) Option {
	return func(d *DepthwiseConv1D) { d.available = available }
}

// WithReference replaces the reference depthwise convolution routine.
func WithReference(fn func(npuref.DepthwiseConv2DArgs) error) Option {
	return func(d *DepthwiseConv1D) { d.reference = fn }
}

// NewDepthwiseConv1D creates the kernel with heap buffers and the npuref backend.
func NewDepthwiseConv1D(opts ...Option) *DepthwiseConv1D {
	d := &DepthwiseConv1D{
		alloc:     bufpool.Heap{},
		available: npuref.Exists,
		reference: npuref.QuantDepthwiseConv2D,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds the kernel to r under OpName for the CPU backend.
func (d *DepthwiseConv1D) Register(r *kernel.Registry) {
	r.Register(OpName, kernel.BackendCPU, d.Setup)
}

// Query binds the kernel name, entry point and parameter schema to k.
func (d *DepthwiseConv1D) Query(k *kernel.Kernel) error {
	return k.Bind(kernel.Info{
		Name:     KernelName,
		Function: d.Compute,
		Params:   ParamDefs(),
	})
}

// Setup builds a node for inputs {input, kernel, bias?} and outputs {output}.
// It returns (nil, nil) when the gate refuses the request. If the node cannot
// be fully constructed it is removed from the graph before returning.
func (d *DepthwiseConv1D) Setup(g *kernel.Graph, inputs, outputs []kernel.Tensor, params kernel.Params) (*kernel.Node, error) {
	if len(inputs) < 2 || len(outputs) < 1 ||
		kernel.IsNil(inputs[0]) || kernel.IsNil(inputs[1]) || kernel.IsNil(outputs[0]) {
		return nil, fmt.Errorf("%w: need input, kernel and output tensors", kernel.ErrMissingParam)
	}

	if !Applicable(inputs[0].DType(), inputs[1].DType(), outputs[0].DType(), d.available()) {
		return nil, nil
	}
	conv, err := ParamsFrom(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kernel.ErrConfig, err)
	}

	k := kernel.New()
	if err := d.Query(k); err != nil {
		return nil, err
	}
	node, err := g.CreateNode(k)
	if err != nil {
		return nil, err
	}

	if err := d.bind(node, inputs, outputs, conv); err != nil {
		g.RemoveNode(node)
		g.Logger().Warn("node construction failed", "kernel", KernelName, "err", err)
		return nil, err
	}
	return node, nil
}

func (d *DepthwiseConv1D) bind(node *kernel.Node, inputs, outputs []kernel.Tensor, conv Conv1DParams) error {
	nodeParams := make([]kernel.Param, ParamNum)
	if err := kernel.PackIO(nodeParams, inputSlots, inputs, outputs); err != nil {
		return err
	}

	scalars := []*kernel.Scalar{
		kernel.NewScalarInt32(conv.Stride),
		kernel.NewScalarInt32(conv.PadFront),
		kernel.NewScalarInt32(conv.PadEnd),
		kernel.NewScalarInt32(conv.Dilation),
		kernel.NewScalarInt32(conv.Multiplier),
	}
	for i, s := range scalars {
		nodeParams[ParamStride+i] = s
	}

	err := node.PassParams(nodeParams)
	for _, s := range scalars {
		s.Release()
	}
	return err
}

// Compute is the kernel entry point. It acquires descriptors, parameters and
// flat buffers, runs the lifted convolution and writes the result back into
// the output tensor. Every acquired resource is released before it returns.
func (d *DepthwiseConv1D) Compute(ctx context.Context, _ *kernel.Node, params []kernel.Param) error {
	log := logger.FromContext(ctx).With("kernel", KernelName)

	inv := newInvocation(d.alloc)
	defer func() {
		st := inv.release()
		log.Debug("released", "attrs", st.attrs, "buffers", st.buffers)
	}()

	if err := inv.acquire(params); err != nil {
		log.Warn("acquire failed", "err", err)
		return err
	}

	args, err := inv.liftedArgs()
	if err != nil {
		log.Warn("lift failed", "err", err)
		return fmt.Errorf("%w: %w", kernel.ErrCompute, err)
	}
	log.Debug("dispatch",
		"input", args.InputShape, "kernel", args.KernelShape, "output", args.OutputShape,
		"stride", inv.conv.Stride, "pad", []int32{inv.conv.PadFront, inv.conv.PadEnd},
		"dilation", inv.conv.Dilation, "bias", args.Bias != nil)

	if err := d.reference(args); err != nil {
		log.Warn("reference routine failed", "err", err)
		return fmt.Errorf("%w: %w", kernel.ErrCompute, err)
	}

	out := &inv.slots[slotOutput]
	if err := out.tensor.Write(out.attr, out.buf, inv.outElements); err != nil {
		log.Warn("write back failed", "err", err)
		return fmt.Errorf("%w: %w", kernel.ErrWriteBack, err)
	}
	return nil
}

var errMultiplier = errors.New("kernel channels do not match input channels times multiplier")

// liftedArgs builds the reference routine operands from the acquired slots.
func (inv *invocation) liftedArgs() (npuref.DepthwiseConv2DArgs, error) {
	in, k, bias, out := &inv.slots[slotInput], &inv.slots[slotKernel], &inv.slots[slotBias], &inv.slots[slotOutput]

	inShape, err := Lift1D(in.attr.Shape)
	if err != nil {
		return npuref.DepthwiseConv2DArgs{}, fmt.Errorf("input: %w", err)
	}
	kShape, err := Lift1D(k.attr.Shape)
	if err != nil {
		return npuref.DepthwiseConv2DArgs{}, fmt.Errorf("kernel: %w", err)
	}
	outShape, err := Lift1D(out.attr.Shape)
	if err != nil {
		return npuref.DepthwiseConv2DArgs{}, fmt.Errorf("output: %w", err)
	}
	if kShape[2] != inShape[2]*int(inv.conv.Multiplier) {
		return npuref.DepthwiseConv2DArgs{}, fmt.Errorf("%w: kernel %d, input %d, multiplier %d",
			errMultiplier, kShape[2], inShape[2], inv.conv.Multiplier)
	}
	if bias.hasAttr {
		if bias.attr.DType != tensor.Int32 {
			return npuref.DepthwiseConv2DArgs{}, fmt.Errorf("bias: %w: %s, want int32", tensor.ErrDTypeMismatch, bias.attr.DType)
		}
		if n := bias.attr.NumElements(); n != kShape[2] {
			return npuref.DepthwiseConv2DArgs{}, fmt.Errorf("bias: %w: %d values for %d output channels",
				tensor.ErrShapeMismatch, n, kShape[2])
		}
	}

	h, w := LiftAxes(inv.conv)
	return npuref.DepthwiseConv2DArgs{
		Input:       in.buf,
		Kernel:      k.buf,
		Bias:        bias.buf,
		Output:      out.buf,
		InputShape:  inShape,
		KernelShape: kShape,
		OutputShape: outShape,
		InputQuant:  in.attr.Quant,
		KernelQuant: k.attr.Quant,
		OutputQuant: out.attr.Quant,
		H:           h,
		W:           w,
	}, nil
}

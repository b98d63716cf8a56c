package cpu

import (
	"fmt"

	"github.com/born-ml/dwconv/internal/bufpool"
	"github.com/born-ml/dwconv/internal/kernel"
	"github.com/born-ml/dwconv/internal/tensor"
)

// slotIndex enumerates the tensor slots an invocation holds resources for.
type slotIndex int

const (
	slotInput slotIndex = iota
	slotKernel
	slotBias
	slotOutput
	numSlots
)

var slotNames = [numSlots]string{"input", "kernel", "bias", "output"}

func (i slotIndex) String() string {
	return slotNames[i]
}

// slot holds the resources acquired for one tensor: its descriptor and its
// flat buffer. A zero slot is empty.
type slot struct {
	tensor  kernel.Tensor
	attr    tensor.Attr
	hasAttr bool
	buf     []byte
}

// releaseStats counts what a release pass freed.
type releaseStats struct {
	attrs   int
	buffers int
}

// invocation is the per-call state of the marshaller. It lives for exactly
// one kernel execution and holds nothing shared with other invocations.
type invocation struct {
	alloc       bufpool.Allocator
	slots       [numSlots]slot
	outElements int
	conv        Conv1DParams
}

func newInvocation(alloc bufpool.Allocator) *invocation {
	return &invocation{alloc: alloc}
}

// acquire binds the tensor slots, describes them, reads the scalar
// parameters and materializes the flat buffers, in that order. Whatever was
// acquired before a failure stays recorded in the slots for release.
func (inv *invocation) acquire(params []kernel.Param) error {
	if len(params) != ParamNum {
		return fmt.Errorf("%w: got %d parameters, want %d", kernel.ErrParamCount, len(params), ParamNum)
	}

	for i, p := range [numSlots]kernel.Param{
		slotInput:  params[ParamInput],
		slotKernel: params[ParamKernel],
		slotBias:   params[ParamBias],
		slotOutput: params[ParamOutput],
	} {
		if kernel.IsNil(p) {
			continue
		}
		t, ok := p.(kernel.Tensor)
		if !ok {
			return fmt.Errorf("%w: %s slot holds %T", kernel.ErrAllocation, slotIndex(i), p)
		}
		inv.slots[i].tensor = t
	}

	for i := range inv.slots {
		if err := inv.describe(slotIndex(i)); err != nil {
			return err
		}
	}
	inv.outElements = inv.slots[slotOutput].attr.NumElements()

	if err := inv.readParams(params); err != nil {
		return err
	}

	for i := range inv.slots {
		if err := inv.materialize(slotIndex(i)); err != nil {
			return err
		}
	}
	return nil
}

func (inv *invocation) describe(i slotIndex) error {
	s := &inv.slots[i]
	if s.tensor == nil {
		if i == slotBias {
			return nil
		}
		return fmt.Errorf("%w: %s tensor missing", kernel.ErrAllocation, i)
	}

	attr, err := s.tensor.Describe()
	if err != nil {
		return fmt.Errorf("%w: describe %s: %w", kernel.ErrAllocation, i, err)
	}
	s.attr = attr
	s.hasAttr = true
	return nil
}

func (inv *invocation) readParams(params []kernel.Param) error {
	fields := []struct {
		index int
		dst   *int32
	}{
		{ParamStride, &inv.conv.Stride},
		{ParamPadFront, &inv.conv.PadFront},
		{ParamPadEnd, &inv.conv.PadEnd},
		{ParamDilation, &inv.conv.Dilation},
		{ParamMultiplier, &inv.conv.Multiplier},
	}

	for _, f := range fields {
		s, ok := params[f.index].(*kernel.Scalar)
		if !ok || s == nil {
			return fmt.Errorf("%w: %s slot holds %T", kernel.ErrConfig, ParamName(f.index), params[f.index])
		}
		v, err := s.ReadInt32()
		if err != nil {
			return fmt.Errorf("%w: %s: %w", kernel.ErrConfig, ParamName(f.index), err)
		}
		*f.dst = v
	}
	return nil
}

func (inv *invocation) materialize(i slotIndex) error {
	s := &inv.slots[i]
	if !s.hasAttr {
		return nil
	}

	buf, err := inv.alloc.Alloc(s.attr.ByteSize())
	if err != nil {
		return fmt.Errorf("%w: %s buffer: %w", kernel.ErrAllocation, i, err)
	}
	s.buf = buf

	if err := s.tensor.ReadBuffer(s.attr, buf); err != nil {
		return fmt.Errorf("%w: copy out %s: %w", kernel.ErrAllocation, i, err)
	}
	return nil
}

// release frees every resource held by any slot. Empty slots are skipped, so
// calling release again is a no-op.
func (inv *invocation) release() releaseStats {
	var st releaseStats
	for i := range inv.slots {
		s := &inv.slots[i]
		if s.hasAttr {
			s.attr = tensor.Attr{}
			s.hasAttr = false
			st.attrs++
		}
		if s.buf != nil {
			inv.alloc.Free(s.buf)
			s.buf = nil
			st.buffers++
		}
		s.tensor = nil
	}
	return st
}

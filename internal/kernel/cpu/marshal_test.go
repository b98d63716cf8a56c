package cpu

import (
	"math/rand"
	"testing"

	"github.com/born-ml/dwconv/internal/kernel"
	"github.com/born-ml/dwconv/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCase wraps every tensor of a case in a fakeTensor.
type fakeCase struct {
	input, kernel, bias, output *fakeTensor
	params                      []kernel.Param
}

func newFakeCase(t *testing.T, withBias bool) fakeCase {
	t.Helper()
	rng := rand.New(rand.NewSource(1)) //nolint:gosec // deterministic test data
	p := Conv1DParams{Stride: 1, PadFront: 1, PadEnd: 1, Dilation: 1, Multiplier: 1}
	c := newCase(t, rng, tensor.Shape{10, 4, 1}, 3, p, withBias)

	fc := fakeCase{
		input:  &fakeTensor{RawTensor: c.input},
		kernel: &fakeTensor{RawTensor: c.kernel},
		output: &fakeTensor{RawTensor: c.output},
	}
	fc.params = caseParams(c)
	fc.params[ParamInput] = fc.input
	fc.params[ParamKernel] = fc.kernel
	fc.params[ParamOutput] = fc.output
	if withBias {
		fc.bias = &fakeTensor{RawTensor: c.bias}
		fc.params[ParamBias] = fc.bias
	}
	return fc
}

func (fc fakeCase) tensors() []*fakeTensor {
	all := []*fakeTensor{fc.input, fc.kernel, fc.bias, fc.output}
	out := all[:0]
	for _, f := range all {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

func (fc fakeCase) successfulDescribes() int {
	var n int
	for _, f := range fc.tensors() {
		if f.describes > 0 && f.describeErr == nil {
			n++
		}
	}
	return n
}

func TestAcquireRelease(t *testing.T) {
	for _, withBias := range []bool{false, true} {
		fc := newFakeCase(t, withBias)
		alloc := &countingAlloc{}
		inv := newInvocation(alloc)

		require.NoError(t, inv.acquire(fc.params))
		want := 3
		if withBias {
			want = 4
		}
		assert.Equal(t, 40, inv.outElements)
		assert.Equal(t, want, alloc.allocs)
		assert.Equal(t, Conv1DParams{Stride: 1, PadFront: 1, PadEnd: 1, Dilation: 1, Multiplier: 1}, inv.conv)
		assert.Equal(t, fc.input.AsUint8(), inv.slots[slotInput].buf)

		st := inv.release()
		assert.Equal(t, releaseStats{attrs: want, buffers: want}, st)
		alloc.balanced(t)

		assert.Equal(t, releaseStats{}, inv.release(), "second release is a no-op")
		alloc.balanced(t)
	}
}

func TestAcquireParamCount(t *testing.T) {
	inv := newInvocation(&countingAlloc{})
	err := inv.acquire(make([]kernel.Param, ParamNum-1))
	require.ErrorIs(t, err, kernel.ErrParamCount)
	assert.Equal(t, releaseStats{}, inv.release())
}

func TestAcquireDescribeFailure(t *testing.T) {
	pick := []struct {
		name string
		get  func(fakeCase) *fakeTensor
	}{
		{"input", func(fc fakeCase) *fakeTensor { return fc.input }},
		{"kernel", func(fc fakeCase) *fakeTensor { return fc.kernel }},
		{"bias", func(fc fakeCase) *fakeTensor { return fc.bias }},
		{"output", func(fc fakeCase) *fakeTensor { return fc.output }},
	}

	for i, tt := range pick {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeCase(t, true)
			tt.get(fc).describeErr = errInjected
			alloc := &countingAlloc{}
			inv := newInvocation(alloc)

			err := inv.acquire(fc.params)
			require.ErrorIs(t, err, kernel.ErrAllocation)
			require.ErrorIs(t, err, errInjected)
			assert.Zero(t, alloc.allocs, "no buffer is allocated before every slot is described")

			st := inv.release()
			assert.Equal(t, i, st.attrs)
			assert.Equal(t, fc.successfulDescribes(), st.attrs)
			assert.Zero(t, st.buffers)
			alloc.balanced(t)
		})
	}
}

func TestAcquireConfigFailure(t *testing.T) {
	tests := []struct {
		name  string
		param kernel.Param
	}{
		{"float scalar", kernel.NewScalarFloat32(1)},
		{"released scalar", func() kernel.Param {
			s := kernel.NewScalarInt32(1)
			s.Release()
			return s
		}()},
		{"missing scalar", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeCase(t, true)
			fc.params[ParamDilation] = tt.param
			alloc := &countingAlloc{}
			inv := newInvocation(alloc)

			require.ErrorIs(t, inv.acquire(fc.params), kernel.ErrConfig)
			assert.Zero(t, alloc.allocs)

			st := inv.release()
			assert.Equal(t, releaseStats{attrs: 4}, st)
			alloc.balanced(t)
		})
	}
}

func TestAcquireAllocFailure(t *testing.T) {
	for failAt := 1; failAt <= 4; failAt++ {
		fc := newFakeCase(t, true)
		alloc := &countingAlloc{failAt: failAt}
		inv := newInvocation(alloc)

		require.ErrorIs(t, inv.acquire(fc.params), kernel.ErrAllocation, "alloc %d", failAt)
		assert.Equal(t, failAt-1, alloc.allocs)

		st := inv.release()
		assert.Equal(t, releaseStats{attrs: 4, buffers: failAt - 1}, st, "alloc %d", failAt)
		alloc.balanced(t)
	}
}

func TestAcquireReadFailure(t *testing.T) {
	for i := 0; i < 4; i++ {
		fc := newFakeCase(t, true)
		fc.tensors()[i].readErr = errInjected
		alloc := &countingAlloc{}
		inv := newInvocation(alloc)

		err := inv.acquire(fc.params)
		require.ErrorIs(t, err, kernel.ErrAllocation)
		require.ErrorIs(t, err, errInjected)

		// The buffer that failed to fill is still held and must be freed.
		st := inv.release()
		assert.Equal(t, releaseStats{attrs: 4, buffers: i + 1}, st, "tensor %d", i)
		alloc.balanced(t)
	}
}

func TestAcquireWrongSlotType(t *testing.T) {
	fc := newFakeCase(t, false)
	fc.params[ParamKernel] = kernel.NewScalarInt32(3)
	alloc := &countingAlloc{}
	inv := newInvocation(alloc)

	require.ErrorIs(t, inv.acquire(fc.params), kernel.ErrAllocation)
	assert.Equal(t, releaseStats{}, inv.release())
	alloc.balanced(t)
}

func TestAcquireMissingRequiredTensor(t *testing.T) {
	fc := newFakeCase(t, false)
	fc.params[ParamOutput] = nil
	inv := newInvocation(&countingAlloc{})

	require.ErrorIs(t, inv.acquire(fc.params), kernel.ErrAllocation)
	assert.Equal(t, releaseStats{attrs: 2}, inv.release())
}

package cpu

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/born-ml/dwconv/internal/tensor"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

// fakeTensor wraps a RawTensor and can fail any handle operation.
type fakeTensor struct {
	*tensor.RawTensor

	describeErr error
	readErr     error
	writeErr    error

	describes int
	reads     int
	writes    int
	written   []int // element counts passed to Write
}

func (f *fakeTensor) Describe() (tensor.Attr, error) {
	f.describes++
	if f.describeErr != nil {
		return tensor.Attr{}, f.describeErr
	}
	return f.RawTensor.Describe()
}

func (f *fakeTensor) ReadBuffer(attr tensor.Attr, dst []byte) error {
	f.reads++
	if f.readErr != nil {
		return f.readErr
	}
	return f.RawTensor.ReadBuffer(attr, dst)
}

func (f *fakeTensor) Write(attr tensor.Attr, src []byte, n int) error {
	f.writes++
	f.written = append(f.written, n)
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.RawTensor.Write(attr, src, n)
}

// countingAlloc tracks buffer allocations and catches double frees.
type countingAlloc struct {
	mu     sync.Mutex
	failAt int // 1-based allocation number to fail, 0 never
	allocs int
	frees  int
	live   map[*byte]bool
	double int
}

func (c *countingAlloc) Alloc(n int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAt > 0 && c.allocs+1 == c.failAt {
		c.failAt = 0
		return nil, errInjected
	}
	c.allocs++
	buf := make([]byte, n)
	if c.live == nil {
		c.live = make(map[*byte]bool)
	}
	c.live[&buf[0]] = true
	return buf, nil
}

func (c *countingAlloc) Free(buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frees++
	if !c.live[&buf[0]] {
		c.double++
		return
	}
	delete(c.live, &buf[0])
}

func (c *countingAlloc) balanced(t *testing.T) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Equal(t, c.allocs, c.frees, "every allocated buffer is freed")
	require.Zero(t, c.double, "no buffer is freed twice")
	require.Empty(t, c.live)
}

// conv1DCase is a complete quantized depthwise Conv1D problem.
type conv1DCase struct {
	input, kernel, output *tensor.RawTensor
	bias                  *tensor.RawTensor
	params                Conv1DParams
}

func newCase(t *testing.T, rng *rand.Rand, inShape tensor.Shape, kLen int, p Conv1DParams, withBias bool) conv1DCase {
	t.Helper()

	in, err := tensor.NewQuantized(inShape, tensor.Uint8, tensor.Quantization{Scale: 0.05, ZeroPoint: 120})
	require.NoError(t, err)
	rng.Read(in.AsUint8())

	cOut := inShape[1] * int(p.Multiplier)
	k, err := tensor.NewQuantized(tensor.Shape{kLen, cOut, 1}, tensor.Uint8, tensor.Quantization{Scale: 0.02, ZeroPoint: 130})
	require.NoError(t, err)
	rng.Read(k.AsUint8())

	outShape, err := OutputShape(inShape, kLen, p)
	require.NoError(t, err)
	out, err := tensor.NewQuantized(outShape, tensor.Uint8, tensor.Quantization{Scale: 0.1, ZeroPoint: 128})
	require.NoError(t, err)

	c := conv1DCase{input: in, kernel: k, output: out, params: p}
	if withBias {
		values := make([]int32, cOut)
		for i := range values {
			values[i] = int32(rng.Intn(2001) - 1000) //nolint:gosec // small test values
		}
		c.bias, err = tensor.FromInt32(values, tensor.Shape{cOut})
		require.NoError(t, err)
	}
	return c
}

// directConv1D evaluates the quantized depthwise Conv1D straight on the
// [L, C, N] layout, without lifting.
func directConv1D(c conv1DCase) []uint8 {
	inShape := c.input.Shape()
	l, ch, n := inShape[0], inShape[1], inShape[2]
	kLen := c.kernel.Shape()[0]
	outShape := c.output.Shape()
	ol, cOut := outShape[0], outShape[1]
	mult := int(c.params.Multiplier)

	qx, qw, qy := c.input.Quant(), c.kernel.Quant(), c.output.Quant()
	scale := float64(qx.Scale) * float64(qw.Scale) / float64(qy.Scale)
	x, w := c.input.AsUint8(), c.kernel.AsUint8()

	out := make([]uint8, outShape.NumElements())
	for b := 0; b < n; b++ {
		for oc := 0; oc < cOut; oc++ {
			ic := oc / mult
			for o := 0; o < ol; o++ {
				var acc int64
				if c.bias != nil {
					acc = int64(c.bias.AsInt32()[oc])
				}
				for k := 0; k < kLen; k++ {
					pos := o*int(c.params.Stride) - int(c.params.PadFront) + k*int(c.params.Dilation)
					if pos < 0 || pos >= l {
						continue
					}
					xv := int64(x[pos+l*(ic+ch*b)]) - int64(qx.ZeroPoint)
					wv := int64(w[k+kLen*oc]) - int64(qw.ZeroPoint)
					acc += xv * wv
				}
				v := math.Round(float64(acc)*scale) + float64(qy.ZeroPoint)
				v = math.Max(0, math.Min(255, v))
				out[o+ol*(oc+cOut*b)] = uint8(v)
			}
		}
	}
	return out
}

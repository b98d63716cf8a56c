package kernel

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/born-ml/dwconv/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Tensor = (*tensor.RawTensor)(nil)

// testSchema is input tensor, optional tensor, output tensor, one int32 scalar.
var testSchema = []ParamDesc{
	{Input, TypeTensor, Required},
	{Input, TypeTensor, Optional},
	{Output, TypeTensor, Required},
	{Input, TypeScalar, Required},
}

func newTensor(t *testing.T) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(tensor.Shape{2}, tensor.Uint8)
	require.NoError(t, err)
	return raw
}

func queriedKernel(t *testing.T, fn Func) *Kernel {
	t.Helper()
	k := New()
	require.Equal(t, Unregistered, k.State())
	require.NoError(t, k.Bind(Info{Name: "test.kernel", Function: fn, Params: testSchema}))
	require.Equal(t, Queried, k.State())
	return k
}

func TestKernelLifecycle(t *testing.T) {
	var calls int
	k := queriedKernel(t, func(_ context.Context, _ *Node, params []Param) error {
		calls++
		v, err := params[3].(*Scalar).ReadInt32()
		if err != nil {
			return err
		}
		if v != 7 {
			return errors.New("unexpected scalar")
		}
		return nil
	})

	g := NewGraph(nil)
	n, err := g.CreateNode(k)
	require.NoError(t, err)
	assert.Equal(t, Constructed, k.State())
	assert.Len(t, g.Nodes(), 1)

	// Not executable before parameters are passed.
	require.ErrorIs(t, n.Execute(context.Background()), ErrState)

	s := NewScalarInt32(7)
	require.NoError(t, n.PassParams([]Param{newTensor(t), nil, newTensor(t), s}))
	assert.Equal(t, Executable, k.State())
	assert.Equal(t, 2, s.Refs())
	s.Release()

	require.NoError(t, n.Execute(context.Background()))
	require.NoError(t, n.Execute(context.Background()))
	assert.Equal(t, 2, calls)

	g.RemoveNode(n)
	assert.Equal(t, Released, k.State())
	assert.Equal(t, 0, s.Refs())
	assert.Empty(t, g.Nodes())
	require.ErrorIs(t, n.Execute(context.Background()), ErrState)
}

func TestKernelBindTwice(t *testing.T) {
	k := queriedKernel(t, func(context.Context, *Node, []Param) error { return nil })
	err := k.Bind(Info{Name: "x", Function: func(context.Context, *Node, []Param) error { return nil }, Params: testSchema})
	require.ErrorIs(t, err, ErrState)
}

func TestKernelBindIncomplete(t *testing.T) {
	require.Error(t, New().Bind(Info{Name: "x"}))
}

func TestCreateNodeRequiresQueried(t *testing.T) {
	g := NewGraph(nil)
	_, err := g.CreateNode(New())
	require.ErrorIs(t, err, ErrState)
	assert.Empty(t, g.Nodes())
}

func TestPassParamsValidation(t *testing.T) {
	noop := func(context.Context, *Node, []Param) error { return nil }

	tests := []struct {
		name   string
		params func() []Param
		want   error
	}{
		{"count", func() []Param { return []Param{newTensor(t)} }, ErrParamCount},
		{"missing required", func() []Param {
			return []Param{nil, nil, newTensor(t), NewScalarInt32(1)}
		}, ErrMissingParam},
		{"scalar in tensor slot", func() []Param {
			return []Param{NewScalarInt32(1), nil, newTensor(t), NewScalarInt32(1)}
		}, ErrParamType},
		{"tensor in scalar slot", func() []Param {
			return []Param{newTensor(t), nil, newTensor(t), newTensor(t)}
		}, ErrParamType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := queriedKernel(t, noop)
			n, err := NewGraph(nil).CreateNode(k)
			require.NoError(t, err)
			require.ErrorIs(t, n.PassParams(tt.params()), tt.want)
			assert.Equal(t, Constructed, k.State())
		})
	}
}

func TestScalar(t *testing.T) {
	s := NewScalarInt32(-3)
	v, err := s.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-3), v)

	s.Release()
	_, err = s.ReadInt32()
	require.ErrorIs(t, err, ErrReleased)
	s.Release()
	assert.Equal(t, 0, s.Refs())

	f := NewScalarFloat32(1.5)
	assert.Equal(t, tensor.Float32, f.DType())
	_, err = f.ReadInt32()
	require.ErrorIs(t, err, ErrParamType)
}

func TestParamsGetInt32(t *testing.T) {
	p := Params{"a": int32(1), "b": 2, "c": int64(3), "d": "x"}
	assert.Equal(t, int32(1), p.GetInt32("a", 0))
	assert.Equal(t, int32(2), p.GetInt32("b", 0))
	assert.Equal(t, int32(3), p.GetInt32("c", 0))
	assert.Equal(t, int32(9), p.GetInt32("d", 9))
	assert.Equal(t, int32(9), p.GetInt32("missing", 9))
	assert.Equal(t, int32(9), Params{"big": int64(1) << 33}.GetInt32("big", 9))
}

func TestParamsInt32(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    int32
		wantErr error
	}{
		{"missing", nil, 5, nil},
		{"int", -7, -7, nil},
		{"int64 max", int64(math.MaxInt32), math.MaxInt32, nil},
		{"int64 min", int64(math.MinInt32), math.MinInt32, nil},
		{"wraps to 2", int64(4294967298), 0, ErrParamRange},
		{"below range", int64(math.MinInt32) - 1, 0, ErrParamRange},
		{"string", "3", 0, ErrParamType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Params{}
			if tt.value != nil {
				p["v"] = tt.value
			}
			got, err := p.Int32("v", 5)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsNil(t *testing.T) {
	var raw *tensor.RawTensor
	var s *Scalar
	assert.True(t, IsNil(nil))
	assert.True(t, IsNil(raw))
	assert.True(t, IsNil(Param(s)))
	assert.False(t, IsNil(newTensor(t)))
	assert.False(t, IsNil(NewScalarInt32(1)))
	assert.False(t, IsNil(3))
}

func TestTypedNilIsAbsent(t *testing.T) {
	var raw *tensor.RawTensor

	params := make([]Param, 4)
	require.NoError(t, PackIO(params, 2, []Tensor{newTensor(t), raw}, []Tensor{newTensor(t)}))
	assert.Nil(t, params[1])

	k := queriedKernel(t, func(context.Context, *Node, []Param) error { return nil })
	n, err := NewGraph(nil).CreateNode(k)
	require.NoError(t, err)
	require.NoError(t, n.PassParams([]Param{newTensor(t), raw, newTensor(t), NewScalarInt32(1)}))
	assert.Nil(t, n.Params()[1], "optional slot bound as absent")

	k = queriedKernel(t, func(context.Context, *Node, []Param) error { return nil })
	n, err = NewGraph(nil).CreateNode(k)
	require.NoError(t, err)
	err = n.PassParams([]Param{raw, nil, newTensor(t), NewScalarInt32(1)})
	require.ErrorIs(t, err, ErrMissingParam)
	assert.Equal(t, Constructed, k.State())
}

func TestPackIO(t *testing.T) {
	in, out := newTensor(t), newTensor(t)
	params := make([]Param, 5)
	require.NoError(t, PackIO(params, 3, []Tensor{in, nil}, []Tensor{out}))
	assert.Same(t, in, params[0])
	assert.Nil(t, params[1])
	assert.Nil(t, params[2])
	assert.Same(t, out, params[3])
	assert.Nil(t, params[4])

	require.ErrorIs(t, PackIO(params, 1, []Tensor{in, in}, nil), ErrParamCount)
	require.ErrorIs(t, PackIO(params, 3, nil, []Tensor{out, out, out}), ErrParamCount)
}

func TestRegistrySetup(t *testing.T) {
	r := NewRegistry()
	g := NewGraph(nil)

	var order []string
	r.Register("conv", "refusing", func(*Graph, []Tensor, []Tensor, Params) (*Node, error) {
		order = append(order, "refusing")
		return nil, nil
	})
	r.Register("conv", BackendCPU, func(g *Graph, _, _ []Tensor, _ Params) (*Node, error) {
		order = append(order, "cpu")
		return g.CreateNode(queriedKernel(t, func(context.Context, *Node, []Param) error { return nil }))
	})

	node, backend, err := r.Setup(g, "conv", nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, BackendCPU, backend)
	assert.Equal(t, []string{"refusing", "cpu"}, order)

	backends, ok := r.Get("conv")
	assert.True(t, ok)
	assert.Equal(t, []Backend{"refusing", BackendCPU}, backends)
	assert.Equal(t, []string{"conv"}, r.SupportedOps())
}

func TestRegistryAllRefuse(t *testing.T) {
	r := NewRegistry()
	r.Register("conv", BackendCPU, func(*Graph, []Tensor, []Tensor, Params) (*Node, error) {
		return nil, nil
	})

	_, _, err := r.Setup(NewGraph(nil), "conv", nil, nil, nil)
	require.ErrorIs(t, err, ErrNoKernel)

	_, _, err = r.Setup(NewGraph(nil), "pool", nil, nil, nil)
	require.Error(t, err)
}

func TestRegistryHardFailure(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry()
	r.Register("conv", BackendCPU, func(*Graph, []Tensor, []Tensor, Params) (*Node, error) {
		return nil, boom
	})
	r.Register("conv", "never", func(*Graph, []Tensor, []Tensor, Params) (*Node, error) {
		t.Fatal("must not be tried after a hard failure")
		return nil, nil
	})

	_, backend, err := r.Setup(NewGraph(nil), "conv", nil, nil, nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, BackendCPU, backend)
}

func TestGraphRelease(t *testing.T) {
	g := NewGraph(nil)
	k1 := queriedKernel(t, func(context.Context, *Node, []Param) error { return nil })
	k2 := queriedKernel(t, func(context.Context, *Node, []Param) error { return nil })
	_, err := g.CreateNode(k1)
	require.NoError(t, err)
	_, err = g.CreateNode(k2)
	require.NoError(t, err)

	g.Release()
	assert.Empty(t, g.Nodes())
	assert.Equal(t, Released, k1.State())
	assert.Equal(t, Released, k2.State())
}

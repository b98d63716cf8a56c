package kernel

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/born-ml/dwconv/internal/tensor"
)

// Scalar is a reference-counted scalar parameter slot. The creator holds one
// reference; a node that receives the scalar takes its own.
type Scalar struct {
	mu    sync.Mutex
	dtype tensor.DataType
	data  [8]byte
	refs  int
}

// NewScalarInt32 creates an int32 scalar holding v.
func NewScalarInt32(v int32) *Scalar {
	s := &Scalar{dtype: tensor.Int32, refs: 1}
	binary.LittleEndian.PutUint32(s.data[:], uint32(v)) //nolint:gosec // bit pattern copy
	return s
}

// NewScalarFloat32 creates a float32 scalar holding v.
func NewScalarFloat32(v float32) *Scalar {
	s := &Scalar{dtype: tensor.Float32, refs: 1}
	binary.LittleEndian.PutUint32(s.data[:], math.Float32bits(v))
	return s
}

// DType returns the scalar's element type.
func (s *Scalar) DType() tensor.DataType {
	return s.dtype
}

// ReadInt32 reads the scalar as int32.
func (s *Scalar) ReadInt32() (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs <= 0 {
		return 0, ErrReleased
	}
	if s.dtype != tensor.Int32 {
		return 0, fmt.Errorf("%w: scalar is %s, not int32", ErrParamType, s.dtype)
	}
	return int32(binary.LittleEndian.Uint32(s.data[:])), nil //nolint:gosec // bit pattern copy
}

func (s *Scalar) retain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs++
}

// Release drops one reference. Releasing an already released scalar is a no-op.
func (s *Scalar) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs > 0 {
		s.refs--
	}
}

// Refs returns the current reference count.
func (s *Scalar) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

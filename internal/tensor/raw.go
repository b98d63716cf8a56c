package tensor

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

// Errors returned by the descriptor and copy operations of RawTensor.
var (
	ErrDTypeMismatch = errors.New("dtype mismatch")
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrBufferSize    = errors.New("buffer size mismatch")
	ErrNilTensor     = errors.New("nil tensor")
)

// Attr is the attribute descriptor of a tensor: element type, shape and
// quantization pair. It is a plain value; describing a tensor allocates
// nothing that has to be released.
type Attr struct {
	DType DataType
	Shape Shape
	Quant Quantization
}

// NumElements returns the element count described by the attribute.
func (a Attr) NumElements() int {
	return a.Shape.NumElements()
}

// ByteSize returns the number of bytes a flat copy of the tensor occupies.
func (a Attr) ByteSize() int {
	return a.NumElements() * a.DType.Size()
}

// storage is the backing store of a RawTensor. Reads and writes go through
// the mutex so a write-back never races with a concurrent copy-out.
type storage struct {
	mu   sync.RWMutex
	data []byte
}

// RawTensor is the low-level tensor representation: a contiguous backing
// store plus its descriptor. It implements the tensor handle used by kernels
// (Describe, ReadBuffer, Write).
type RawTensor struct {
	store *storage
	shape Shape
	dtype DataType
	quant Quantization
}

// NewRaw creates a new RawTensor with the given shape and type.
// Memory is allocated and zeroed.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if !dtype.Valid() {
		return nil, fmt.Errorf("invalid dtype %d", int(dtype))
	}

	return &RawTensor{
		store: &storage{data: make([]byte, shape.NumElements()*dtype.Size())},
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// NewQuantized creates a zeroed RawTensor carrying a quantization pair.
func NewQuantized(shape Shape, dtype DataType, q Quantization) (*RawTensor, error) {
	raw, err := NewRaw(shape, dtype)
	if err != nil {
		return nil, err
	}
	raw.quant = q
	return raw, nil
}

// FromUint8 creates a quantized uint8 tensor holding a copy of data.
func FromUint8(data []uint8, shape Shape, q Quantization) (*RawTensor, error) {
	raw, err := NewQuantized(shape, Uint8, q)
	if err != nil {
		return nil, err
	}
	if len(data) != raw.NumElements() {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrBufferSize, len(data), shape)
	}
	copy(raw.store.data, data)
	return raw, nil
}

// FromInt32 creates an int32 tensor holding a copy of data.
func FromInt32(data []int32, shape Shape) (*RawTensor, error) {
	raw, err := NewRaw(shape, Int32)
	if err != nil {
		return nil, err
	}
	if len(data) != raw.NumElements() {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrBufferSize, len(data), shape)
	}
	copy(raw.AsInt32(), data)
	return raw, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Quant returns the tensor's quantization pair.
func (r *RawTensor) Quant() Quantization {
	return r.quant
}

// SetQuant replaces the tensor's quantization pair.
func (r *RawTensor) SetQuant(q Quantization) {
	r.quant = q
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.store.data
}

// AsUint8 interprets the data as []uint8.
// Panics if the tensor's dtype is not Uint8.
func (r *RawTensor) AsUint8() []uint8 {
	if r.dtype != Uint8 {
		panic(fmt.Sprintf("tensor dtype is %s, not uint8", r.dtype))
	}
	return r.store.data
}

// AsInt8 interprets the data as []int8.
// Panics if the tensor's dtype is not Int8.
func (r *RawTensor) AsInt8() []int8 {
	if r.dtype != Int8 {
		panic(fmt.Sprintf("tensor dtype is %s, not int8", r.dtype))
	}
	data := r.store.data
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*int8)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	if r.dtype != Int32 {
		panic(fmt.Sprintf("tensor dtype is %s, not int32", r.dtype))
	}
	return BytesAsInt32(r.store.data)
}

// BytesAsInt32 reinterprets a native-endian byte buffer as []int32.
func BytesAsInt32(data []byte) []int32 {
	if len(data) < 4 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, length derived from len(data)
	return unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), len(data)/4)
}

// Describe returns the tensor's attribute descriptor.
func (r *RawTensor) Describe() (Attr, error) {
	if r == nil {
		return Attr{}, ErrNilTensor
	}
	if err := r.shape.Validate(); err != nil {
		return Attr{}, err
	}
	return Attr{
		DType: r.dtype,
		Shape: r.shape.Clone(),
		Quant: r.quant,
	}, nil
}

// ReadBuffer copies the tensor's contents into dst, which must be exactly
// attr.ByteSize() bytes. attr must describe this tensor.
func (r *RawTensor) ReadBuffer(attr Attr, dst []byte) error {
	if err := r.check(attr); err != nil {
		return err
	}
	if len(dst) != attr.ByteSize() {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrBufferSize, len(dst), attr.ByteSize())
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	copy(dst, r.store.data)
	return nil
}

// Write copies n elements from src into the tensor's backing store.
// n must equal the element count of attr; on error the tensor is unchanged.
func (r *RawTensor) Write(attr Attr, src []byte, n int) error {
	if err := r.check(attr); err != nil {
		return err
	}
	if n != attr.NumElements() {
		return fmt.Errorf("%w: writing %d elements into %d", ErrBufferSize, n, attr.NumElements())
	}
	size := n * attr.DType.Size()
	if len(src) < size {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrBufferSize, len(src), size)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	copy(r.store.data, src[:size])
	return nil
}

func (r *RawTensor) check(attr Attr) error {
	if r == nil {
		return ErrNilTensor
	}
	if attr.DType != r.dtype {
		return fmt.Errorf("%w: descriptor %s, tensor %s", ErrDTypeMismatch, attr.DType, r.dtype)
	}
	if !attr.Shape.Equal(r.shape) {
		return fmt.Errorf("%w: descriptor %v, tensor %v", ErrShapeMismatch, attr.Shape, r.shape)
	}
	return nil
}

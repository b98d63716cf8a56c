// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/born-ml/dwconv/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRawTensorAPI verifies the RawTensor alias exposes the expected API.
func TestRawTensorAPI(t *testing.T) {
	q := tensor.Quantization{Scale: 0.5, ZeroPoint: 3}
	raw, err := tensor.FromUint8([]uint8{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2, 1}, q)
	require.NoError(t, err)

	assert.True(t, raw.Shape().Equal(tensor.Shape{3, 2, 1}))
	assert.Equal(t, tensor.Uint8, raw.DType())
	assert.Equal(t, q, raw.Quant())

	attr, err := raw.Describe()
	require.NoError(t, err)
	assert.Equal(t, 6, attr.NumElements())
	assert.Equal(t, 6, attr.ByteSize())

	dst := make([]byte, attr.ByteSize())
	require.NoError(t, raw.ReadBuffer(attr, dst))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, dst)
}

func TestConstructorErrors(t *testing.T) {
	_, err := tensor.NewRaw(tensor.Shape{1, 1, 1, 1, 1}, tensor.Uint8)
	require.Error(t, err)

	_, err = tensor.FromInt32([]int32{1, 2}, tensor.Shape{3})
	require.Error(t, err)

	dt, ok := tensor.ParseDataType("uint8")
	assert.True(t, ok)
	assert.Equal(t, tensor.Uint8, dt)
}

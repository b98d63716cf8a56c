package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/born-ml/dwconv/internal/bufpool"
	"github.com/born-ml/dwconv/internal/kernel/cpu"
	"github.com/born-ml/dwconv/internal/logger"
	"github.com/born-ml/dwconv/internal/npuref"
	"github.com/born-ml/dwconv/internal/parallel"
	"github.com/born-ml/dwconv/internal/safetensors"
	"github.com/born-ml/dwconv/internal/tensor"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unit = tensor.Quantization{Scale: 1, ZeroPoint: 0}

// writeOperands stores a 3-tap box filter problem over [1, 2, 3, 4].
func writeOperands(t *testing.T, withBias bool) string {
	t.Helper()
	input, err := tensor.FromUint8([]uint8{1, 2, 3, 4}, tensor.Shape{4, 1, 1}, unit)
	require.NoError(t, err)
	kern, err := tensor.FromUint8([]uint8{1, 1, 1}, tensor.Shape{3, 1, 1}, unit)
	require.NoError(t, err)

	tensors := map[string]*tensor.RawTensor{"input": input, "kernel": kern}
	if withBias {
		bias, err := tensor.FromInt32([]int32{10}, tensor.Shape{1})
		require.NoError(t, err)
		tensors["bias"] = bias
	}

	path := filepath.Join(t.TempDir(), "operands.safetensors")
	require.NoError(t, safetensors.Write(path, tensors, nil))
	return path
}

func TestLoadAndExecute(t *testing.T) {
	tests := []struct {
		withBias bool
		want     []uint8
	}{
		{false, []uint8{3, 6, 9, 7}},
		{true, []uint8{13, 16, 19, 17}},
	}

	for _, tt := range tests {
		job, err := loadJob(writeOperands(t, tt.withBias), "input", "kernel", "bias")
		require.NoError(t, err)
		assert.Equal(t, tt.withBias, job.bias != nil)

		job.params = cpu.Conv1DParams{Stride: 1, PadFront: 1, PadEnd: 1, Dilation: 1, Multiplier: 1}
		job.outQuant = unit

		pool := bufpool.New(0)
		out, err := execute(context.Background(), logger.Nop(), job, pool)
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{4, 1, 1}, out.Shape())
		assert.Equal(t, tt.want, out.AsUint8())
		assert.Zero(t, pool.Stats().Outstanding())
	}
}

func TestLoadJobMissingKernel(t *testing.T) {
	_, err := loadJob(writeOperands(t, false), "input", "weights", "bias")
	require.ErrorIs(t, err, safetensors.ErrNotFound)
}

func TestExecuteRejectsBadOutputQuant(t *testing.T) {
	job, err := loadJob(writeOperands(t, false), "input", "kernel", "bias")
	require.NoError(t, err)
	job.params = cpu.Conv1DParams{Stride: 1, Dilation: 1, Multiplier: 1}

	_, err = execute(context.Background(), logger.Nop(), job, bufpool.Heap{})
	require.Error(t, err)
}

func TestBench(t *testing.T) {
	spec := benchSpec{length: 32, channels: 3, batch: 2, kernelSize: 3, iterations: 12, withBias: true, seed: 9}
	conv := convValues{stride: 1, padFront: 1, padEnd: 1, dilation: 1, multiplier: 2}
	pool := bufpool.New(0)

	res, err := bench(context.Background(), logger.Nop(), spec, conv, parallel.WithWorkers(3), pool)
	require.NoError(t, err)
	assert.Equal(t, 12, res.Invocations)
	assert.Equal(t, 3, res.Workers)
	assert.Equal(t, uint64(4*12), res.Pool.Allocated)
	assert.Zero(t, res.Pool.Outstanding())

	var buf bytes.Buffer
	printBench(&buf, res)
	assert.Contains(t, buf.String(), "invocations: 12")

	_, err = bench(context.Background(), logger.Nop(), benchSpec{}, conv, parallel.WithWorkers(1), pool)
	require.Error(t, err)
}

func TestConvValuesRange(t *testing.T) {
	p, err := convValues{stride: 2, padFront: 1, dilation: 3, multiplier: 1}.params()
	require.NoError(t, err)
	assert.Equal(t, cpu.Conv1DParams{Stride: 2, PadFront: 1, Dilation: 3, Multiplier: 1}, p)

	_, err = convValues{stride: 4294967298, dilation: 1, multiplier: 1}.params()
	require.ErrorContains(t, err, "--stride")

	_, err = convValues{stride: 1, padEnd: -1 << 40, dilation: 1, multiplier: 1}.params()
	require.ErrorContains(t, err, "--pad-end")

	spec := benchSpec{length: 8, channels: 1, batch: 1, kernelSize: 3, iterations: 1}
	_, err = bench(context.Background(), logger.Nop(), spec, convValues{stride: 1, dilation: 1, multiplier: 1 << 31},
		parallel.WithWorkers(1), bufpool.New(0))
	require.ErrorContains(t, err, "--multiplier")
}

func TestWriteSchema(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSchema(&buf))

	var doc schemaDoc
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, cpu.OpName, doc.Op)
	assert.Equal(t, cpu.KernelName, doc.Kernel)
	require.Len(t, doc.Params, cpu.ParamNum)
	assert.Equal(t, schemaParam{Index: 2, Name: "bias", Direction: "input", Type: "tensor", State: "optional"}, doc.Params[2])
	assert.Equal(t, schemaParam{Index: 3, Name: "output", Direction: "output", Type: "tensor", State: "required"}, doc.Params[3])
	assert.Equal(t, "scalar", doc.Params[8].Type)
}

func TestWriteCaps(t *testing.T) {
	c := capabilities{GOOS: "linux", GOARCH: "amd64", NumCPU: 4, Reference: true, Features: map[string]bool{"avx2": true, "sse2": true}}

	var buf bytes.Buffer
	require.NoError(t, writeCaps(&buf, c, false))
	assert.Contains(t, buf.String(), "Reference backend: true")
	assert.Contains(t, buf.String(), "avx2:")

	buf.Reset()
	require.NoError(t, writeCaps(&buf, c, true))
	var got capabilities
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, c, got)

	assert.Equal(t, npuref.Exists(), hostCaps().Reference)
	assert.NotNil(t, cpuFeatures("amd64"))
	assert.NotNil(t, cpuFeatures("arm64"))
	assert.Nil(t, cpuFeatures("riscv64"))
}

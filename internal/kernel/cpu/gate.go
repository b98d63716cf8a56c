package cpu

import "github.com/born-ml/dwconv/internal/tensor"

// Applicable reports whether the CPU depthwise Conv1D kernel may run for the
// given element types. Only uint8 quantized input, kernel and output are
// supported, and only when the reference arithmetic backend is present.
//
// A false result is a refusal, not an error: the caller moves on to the next
// candidate kernel.
func Applicable(input, kernel, output tensor.DataType, refAvailable bool) bool {
	return input == tensor.Uint8 &&
		kernel == tensor.Uint8 &&
		output == tensor.Uint8 &&
		refAvailable
}

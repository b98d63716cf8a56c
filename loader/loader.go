// Package loader reads and writes kernel operands in the SafeTensors format.
//
// Quantization parameters of uint8 tensors travel in the file metadata under
// "<name>.scale" and "<name>.zero_point", so a loaded tensor is ready to be
// passed to the kernel.
//
// Example usage:
//
//	import "github.com/born-ml/dwconv/loader"
//
//	r, err := loader.Open("operands.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	input, err := r.LoadTensor("input")
//	if err != nil {
//	    log.Fatal(err)
//	}
package loader

import (
	"github.com/born-ml/dwconv/internal/safetensors"
	"github.com/born-ml/dwconv/tensor"
)

// Reader reads tensors from a SafeTensors file.
type Reader = safetensors.Reader

// TensorInfo describes a tensor entry in a SafeTensors header.
type TensorInfo = safetensors.TensorInfo

// ErrNotFound is returned for a tensor name missing from a file.
var ErrNotFound = safetensors.ErrNotFound

// Open opens a SafeTensors file and parses its header.
func Open(path string) (*Reader, error) {
	return safetensors.Open(path)
}

// Write writes tensors to a SafeTensors file, recording the quantization of
// every quantized tensor in the metadata.
func Write(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	return safetensors.Write(path, tensors, metadata)
}

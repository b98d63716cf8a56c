package safetensors

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/born-ml/dwconv/internal/tensor"
	"github.com/goccy/go-json"
)

// Write writes tensors to a SafeTensors file in alphabetical order by name.
// The quantization of every uint8 or int8 tensor is recorded in the metadata
// under "<name>.scale" and "<name>.zero_point".
func Write(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) (err error) {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := validateName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	meta := make(map[string]string, len(metadata)+2*len(tensors))
	for k, v := range metadata {
		meta[k] = v
	}

	header := make(map[string]any, len(names)+1)
	var offset int64
	for _, name := range names {
		raw := tensors[name]
		dtype, err := fromDataType(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		size := int64(raw.ByteSize())
		header[name] = TensorInfo{
			DType:       dtype,
			Shape:       reversed(raw.Shape()),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size

		if raw.DType() == tensor.Uint8 || raw.DType() == tensor.Int8 {
			quantToMetadata(meta, name, raw.Quant())
		}
	}
	if len(meta) > 0 {
		header[metadataKey] = meta
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	//nolint:gosec // G304: the path is supplied by the user on purpose
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := binary.Write(file, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, name := range names {
		if _, err := file.Write(tensors[name].Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return nil
}

func validateName(name string) error {
	switch {
	case name == "" || name == metadataKey:
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case len(name) > MaxTensorNameLen:
		return fmt.Errorf("%w: length %d > max %d", ErrInvalidName, len(name), MaxTensorNameLen)
	case strings.HasSuffix(name, scaleSuffix), strings.HasSuffix(name, zeroPointSuffix):
		return fmt.Errorf("%w: %q collides with quantization metadata keys", ErrInvalidName, name)
	}
	return nil
}

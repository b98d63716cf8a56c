package tensor

import (
	"fmt"
	"math"
)

// Quantization is the affine (scale, zero point) pair that maps a stored
// integer q to the real value it approximates: real = (q - ZeroPoint) * Scale.
type Quantization struct {
	Scale     float32
	ZeroPoint int32
}

// Validate checks that the scale is finite and positive.
func (q Quantization) Validate() error {
	s := float64(q.Scale)
	if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
		return fmt.Errorf("invalid quantization scale %v", q.Scale)
	}
	return nil
}

// Dequantize converts a stored uint8 value to its real value.
func (q Quantization) Dequantize(v uint8) float32 {
	return (float32(v) - float32(q.ZeroPoint)) * q.Scale
}

// Quantize converts a real value to uint8, rounding half away from zero and
// saturating to [0, 255].
func (q Quantization) Quantize(v float32) uint8 {
	r := math.Round(float64(v)/float64(q.Scale)) + float64(q.ZeroPoint)
	switch {
	case r < 0:
		return 0
	case r > 255:
		return 255
	default:
		return uint8(r)
	}
}

// String returns a compact representation of the pair.
func (q Quantization) String() string {
	return fmt.Sprintf("scale=%g zp=%d", q.Scale, q.ZeroPoint)
}

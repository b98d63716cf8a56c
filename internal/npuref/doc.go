// Package npuref is the reference quantized arithmetic backend.
//
// It implements the numeric contract the CPU kernels delegate to: uint8
// asymmetric quantized depthwise convolution over rank-4 tensors laid out
// innermost-first as [W, H, C, N].
//
// # Numeric contract
//
// For every output element the accumulator is
//
//	acc = bias[oc] + sum over (kh, kw) of (x - zx) * (w - zw)
//
// where taps falling into the padding region contribute nothing. The result
// is requantized as
//
//	y = clamp(round(acc * sx * sw / sy) + zy, 0, 255)
//
// with round-half-away-from-zero. Bias values are int32 with implicit scale
// sx*sw and zero point 0. Output channel oc reads input channel oc/M, where
// M = C_out / C_in is the channel multiplier.
package npuref

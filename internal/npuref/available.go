//go:build !nonpuref

package npuref

// Exists reports whether the reference quantized-arithmetic backend is
// compiled into this binary. Build with -tags nonpuref to drop it.
func Exists() bool {
	return true
}

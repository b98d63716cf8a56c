//go:build nonpuref

package npuref

func Exists() bool {
	return false
}

package kernel

import "errors"

// Invocation errors. Kernel functions wrap one of these with %w so callers
// can classify a failure with errors.Is.
var (
	ErrAllocation = errors.New("kernel: allocation failed")
	ErrConfig     = errors.New("kernel: scalar parameter unreadable")
	ErrCompute    = errors.New("kernel: compute failed")
	ErrWriteBack  = errors.New("kernel: write back failed")
)

// Runtime errors.
var (
	ErrNoKernel     = errors.New("kernel: no applicable kernel")
	ErrState        = errors.New("kernel: invalid lifecycle state")
	ErrParamCount   = errors.New("kernel: parameter count mismatch")
	ErrParamType    = errors.New("kernel: parameter type mismatch")
	ErrMissingParam = errors.New("kernel: required parameter missing")
	ErrReleased     = errors.New("kernel: scalar released")
)

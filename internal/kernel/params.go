package kernel

import (
	"errors"
	"fmt"
	"math"
	"reflect"
)

// ErrParamRange reports a configuration value outside the int32 range.
var ErrParamRange = errors.New("kernel: parameter out of range")

// Params holds the named configuration values supplied when a node is set up.
type Params map[string]any

// Int32 returns an integer parameter, or defaultVal when it is missing.
// Values of a non-integer type or outside the int32 range are errors.
func (p Params) Int32(name string, defaultVal int32) (int32, error) {
	var v int64
	switch x := p[name].(type) {
	case nil:
		return defaultVal, nil
	case int32:
		return x, nil
	case int:
		v = int64(x)
	case int64:
		v = x
	default:
		return 0, fmt.Errorf("%w: %s is %T", ErrParamType, name, x)
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s = %d", ErrParamRange, name, v)
	}
	return int32(v), nil
}

// GetInt32 returns an integer parameter or defaultVal when it is missing,
// not an integer or out of range.
func (p Params) GetInt32(name string, defaultVal int32) int32 {
	v, err := p.Int32(name, defaultVal)
	if err != nil {
		return defaultVal
	}
	return v
}

// IsNil reports whether p is absent: a nil interface or an interface holding
// a nil pointer.
func IsNil(p Param) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

// PackIO binds inputs then outputs to the leading slots of params. Inputs fill
// slots [0, inputSlots); a missing optional input stays nil. Outputs follow
// starting at inputSlots.
func PackIO(params []Param, inputSlots int, inputs, outputs []Tensor) error {
	if len(inputs) > inputSlots || inputSlots+len(outputs) > len(params) {
		return ErrParamCount
	}
	for i, in := range inputs {
		if !IsNil(in) {
			params[i] = in
		}
	}
	for i, out := range outputs {
		if !IsNil(out) {
			params[inputSlots+i] = out
		}
	}
	return nil
}

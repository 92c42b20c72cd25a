package memcore

import (
	"fmt"
	"math"

	"github.com/wippyai/tox-bridge/errors"
)

// Action arguments arrive either as Go values or as decoded JSON, so
// numbers may be float64 and byte strings may be string.

func argAt(action string, args []any, i int, name string) (any, error) {
	if i >= len(args) {
		return nil, errors.InvalidArgument(errors.PhaseInvoke, []string{action, name}, nil,
			fmt.Sprintf("missing argument %d", i))
	}
	return args[i], nil
}

func argUint32(action string, args []any, i int, name string) (uint32, error) {
	v, err := argAt(action, args, i, name)
	if err != nil {
		return 0, err
	}
	var n int64
	switch x := v.(type) {
	case uint32:
		return x, nil
	case uint16:
		return uint32(x), nil
	case uint64:
		if x > math.MaxUint32 {
			return 0, errors.OutOfRange(errors.PhaseInvoke, []string{action, name}, int(x), 0, math.MaxUint32)
		}
		return uint32(x), nil
	case int:
		n = int64(x)
	case int64:
		n = x
	case int32:
		n = int64(x)
	case float64:
		if x != math.Trunc(x) {
			return 0, errors.InvalidArgument(errors.PhaseInvoke, []string{action, name}, x, "not an integer")
		}
		n = int64(x)
	default:
		return 0, errors.InvalidArgument(errors.PhaseInvoke, []string{action, name}, v,
			fmt.Sprintf("want integer, got %T", v))
	}
	if n < 0 || n > math.MaxUint32 {
		return 0, errors.OutOfRange(errors.PhaseInvoke, []string{action, name}, int(n), 0, math.MaxUint32)
	}
	return uint32(n), nil
}

func argBytes(action string, args []any, i int, name string) ([]byte, error) {
	v, err := argAt(action, args, i, name)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	}
	return nil, errors.InvalidArgument(errors.PhaseInvoke, []string{action, name}, v,
		fmt.Sprintf("want bytes, got %T", v))
}

func argBool(action string, args []any, i int, name string) (bool, error) {
	v, err := argAt(action, args, i, name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.InvalidArgument(errors.PhaseInvoke, []string{action, name}, v,
			fmt.Sprintf("want bool, got %T", v))
	}
	return b, nil
}

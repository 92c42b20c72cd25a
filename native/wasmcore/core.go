package wasmcore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/native"
)

// Core is one guest instance holding one native handle.
type Core struct {
	mod          api.Module
	mem          api.Memory
	alloc        api.Function
	kill         api.Function
	iterate      api.Function
	interval     api.Function
	savedataSize api.Function
	savedata     api.Function
	logger       *zap.Logger
	handle       uint64
}

var _ native.Core = (*Core)(nil)

// write copies b into freshly allocated guest memory.
func (c *Core) write(ctx context.Context, b []byte) (uint32, error) {
	res, err := c.alloc.Call(ctx, uint64(len(b)))
	if err != nil {
		return 0, errors.Native(errors.PhaseInvoke, exportAlloc, err)
	}
	ptr := api.DecodeU32(res[0])
	if len(b) > 0 && !c.mem.Write(ptr, b) {
		return 0, errors.New(errors.PhaseInvoke, errors.KindNative).
			Detail("guest alloc returned out of bounds pointer %d", ptr).Build()
	}
	return ptr, nil
}

func (c *Core) Iterate(ctx context.Context, cb native.Callbacks) error {
	if _, err := c.iterate.Call(withCallbacks(ctx, cb), c.handle); err != nil {
		return errors.Native(errors.PhaseDrain, exportIterate, err)
	}
	return nil
}

func (c *Core) IterationInterval() time.Duration {
	res, err := c.interval.Call(context.Background(), c.handle)
	if err != nil {
		c.logger.Warn("guest iteration interval failed", zap.Error(err))
		return defaultInterval
	}
	return time.Duration(api.DecodeU32(res[0])) * time.Millisecond
}

// Call invokes the guest export tox_<action>. Integer and bool arguments
// take one parameter each; []byte and string arguments are copied into
// guest memory and take a (ptr, len) pair.
func (c *Core) Call(ctx context.Context, cb native.Callbacks, action string, args ...any) (any, error) {
	fn := c.mod.ExportedFunction(actionPrefix + action)
	if fn == nil || isLifecycleExport(actionPrefix+action) {
		return nil, errors.InvalidArgument(errors.PhaseInvoke, []string{"action"}, action, "unknown action")
	}
	def := fn.Definition()
	params := def.ParamTypes()

	stack := make([]uint64, 0, len(params))
	stack = append(stack, c.handle)
	for i, arg := range args {
		path := []string{action, fmt.Sprintf("args[%d]", i)}
		switch v := arg.(type) {
		case []byte:
			vals, err := c.bytesArg(ctx, v)
			if err != nil {
				return nil, err
			}
			stack = append(stack, vals...)
		case string:
			vals, err := c.bytesArg(ctx, []byte(v))
			if err != nil {
				return nil, err
			}
			stack = append(stack, vals...)
		default:
			if len(stack) >= len(params) {
				return nil, errors.InvalidArgument(errors.PhaseInvoke, path, arg, "too many arguments")
			}
			val, err := encodeScalar(params[len(stack)], arg)
			if err != nil {
				return nil, errors.InvalidArgument(errors.PhaseInvoke, path, arg, err.Error())
			}
			stack = append(stack, val)
		}
	}
	if len(stack) != len(params) {
		return nil, errors.InvalidArgument(errors.PhaseInvoke, []string{action}, len(args),
			fmt.Sprintf("guest expects %d parameters, got %d", len(params), len(stack)))
	}

	res, err := fn.Call(withCallbacks(ctx, cb), stack...)
	if err != nil {
		return nil, errors.Native(errors.PhaseInvoke, actionPrefix+action, err)
	}
	results := def.ResultTypes()
	if len(results) == 0 {
		return nil, nil
	}
	switch results[0] {
	case api.ValueTypeI64:
		return res[0], nil
	case api.ValueTypeF64:
		return api.DecodeF64(res[0]), nil
	case api.ValueTypeF32:
		return api.DecodeF32(res[0]), nil
	}
	return api.DecodeU32(res[0]), nil
}

func (c *Core) bytesArg(ctx context.Context, b []byte) ([]uint64, error) {
	ptr, err := c.write(ctx, b)
	if err != nil {
		return nil, err
	}
	return []uint64{api.EncodeU32(ptr), api.EncodeU32(uint32(len(b)))}, nil
}

func encodeScalar(t api.ValueType, arg any) (uint64, error) {
	var n int64
	switch v := arg.(type) {
	case bool:
		if v {
			n = 1
		}
	case uint32:
		n = int64(v)
	case uint16:
		n = int64(v)
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint64:
		if t == api.ValueTypeI64 {
			return v, nil
		}
		if v > math.MaxUint32 {
			return 0, fmt.Errorf("%d does not fit in i32", v)
		}
		n = int64(v)
	case float64:
		if t == api.ValueTypeF64 {
			return api.EncodeF64(v), nil
		}
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		n = int64(v)
	default:
		return 0, fmt.Errorf("unsupported argument type %T", arg)
	}

	switch t {
	case api.ValueTypeI32:
		if n < math.MinInt32 || n > math.MaxUint32 {
			return 0, fmt.Errorf("%d does not fit in i32", n)
		}
		return api.EncodeU32(uint32(n)), nil
	case api.ValueTypeI64:
		return api.EncodeI64(n), nil
	case api.ValueTypeF64:
		return api.EncodeF64(float64(n)), nil
	}
	return 0, fmt.Errorf("unsupported parameter type %s", api.ValueTypeName(t))
}

func (c *Core) SavedataSize(ctx context.Context) (int, error) {
	res, err := c.savedataSize.Call(ctx, c.handle)
	if err != nil {
		return 0, errors.Native(errors.PhaseSnapshot, exportSavedataSize, err)
	}
	return int(api.DecodeI32(res[0])), nil
}

func (c *Core) Savedata(ctx context.Context, dst []byte) error {
	res, err := c.alloc.Call(ctx, uint64(len(dst)))
	if err != nil {
		return errors.Native(errors.PhaseSnapshot, exportAlloc, err)
	}
	ptr := api.DecodeU32(res[0])
	if _, err := c.savedata.Call(ctx, c.handle, uint64(ptr)); err != nil {
		return errors.Native(errors.PhaseSnapshot, exportSavedata, err)
	}
	b, ok := c.mem.Read(ptr, uint32(len(dst)))
	if !ok {
		return errors.New(errors.PhaseSnapshot, errors.KindNative).
			Detail("savedata range %d+%d out of bounds", ptr, len(dst)).Build()
	}
	copy(dst, b)
	return nil
}

// Kill releases the native handle and closes the guest instance.
func (c *Core) Kill(ctx context.Context) error {
	_, err := c.kill.Call(ctx, c.handle)
	if cerr := c.mod.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Native(errors.PhaseKill, exportKill, err)
	}
	return nil
}

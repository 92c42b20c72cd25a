package wasmcore

import (
	"context"
	"os"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/native"
)

// Exports every guest must provide.
const (
	exportAlloc        = "alloc"
	exportNew          = "tox_new"
	exportKill         = "tox_kill"
	exportIterate      = "tox_iterate"
	exportInterval     = "tox_iteration_interval"
	exportSavedataSize = "tox_get_savedata_size"
	exportSavedata     = "tox_get_savedata"
	actionPrefix       = "tox_"
)

var requiredExports = []string{
	exportAlloc, exportNew, exportKill, exportIterate,
	exportInterval, exportSavedataSize, exportSavedata,
}

// Config holds configuration for runtime creation.
type Config struct {
	Logger *zap.Logger

	// MemoryLimitPages caps each guest's memory in 64KB pages. 0 keeps the
	// wazero default.
	MemoryLimitPages uint32
}

// Runtime hosts one compiled guest and creates cores from it. It implements
// native.Factory.
type Runtime struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	logger   *zap.Logger
}

var _ native.Factory = (*Runtime)(nil)

// Load reads a guest module from path and compiles it.
func Load(ctx context.Context, path string, cfg *Config) (*Runtime, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read guest module "+path, err)
	}
	return New(ctx, wasm, cfg)
}

// New compiles wasm and registers the callback host module.
func New(ctx context.Context, wasm []byte, cfg *Config) (*Runtime, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	logger := zap.NewNop()
	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.Logger != nil {
			logger = cfg.Logger
		}
	}

	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	if _, err := instantiateHost(ctx, rt, logger); err != nil {
		rt.Close(ctx)
		return nil, errors.Load("instantiate host module", err)
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Load("compile guest module", err)
	}

	exports := compiled.ExportedFunctions()
	for _, name := range requiredExports {
		if _, ok := exports[name]; !ok {
			rt.Close(ctx)
			return nil, errors.Load("guest module does not export "+name, nil)
		}
	}
	if _, ok := compiled.ExportedMemories()["memory"]; !ok {
		rt.Close(ctx)
		return nil, errors.Load("guest module does not export memory", nil)
	}

	return &Runtime{
		runtime:  rt,
		compiled: compiled,
		logger:   logger,
	}, nil
}

// Actions lists the action names the guest exports.
func (r *Runtime) Actions() []string {
	var out []string
	for name := range r.compiled.ExportedFunctions() {
		if len(name) > len(actionPrefix) && name[:len(actionPrefix)] == actionPrefix && !isLifecycleExport(name) {
			out = append(out, name[len(actionPrefix):])
		}
	}
	return out
}

func isLifecycleExport(name string) bool {
	for _, e := range requiredExports {
		if e == name {
			return true
		}
	}
	return false
}

// New instantiates the guest and creates a native instance inside it.
func (r *Runtime) New(ctx context.Context, opts native.Options) (native.Core, error) {
	// Anonymous, so instances can coexist.
	mod, err := r.runtime.InstantiateModule(ctx, r.compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, errors.Native(errors.PhaseCreate, "instantiate guest", err)
	}

	c := &Core{
		mod:          mod,
		mem:          mod.Memory(),
		alloc:        mod.ExportedFunction(exportAlloc),
		kill:         mod.ExportedFunction(exportKill),
		iterate:      mod.ExportedFunction(exportIterate),
		interval:     mod.ExportedFunction(exportInterval),
		savedataSize: mod.ExportedFunction(exportSavedataSize),
		savedata:     mod.ExportedFunction(exportSavedata),
		logger:       r.logger,
	}

	enc := EncodeOptions(opts)
	ptr, err := c.write(ctx, enc)
	if err != nil {
		mod.Close(ctx)
		return nil, err
	}
	res, err := mod.ExportedFunction(exportNew).Call(ctx, uint64(ptr), uint64(len(enc)))
	if err != nil {
		mod.Close(ctx)
		return nil, errors.Native(errors.PhaseCreate, exportNew, err)
	}
	h := api.DecodeI32(res[0])
	if h < 0 {
		mod.Close(ctx)
		return nil, &native.NewError{Code: native.NewErrorCode(-h)}
	}
	c.handle = uint64(h)
	return c, nil
}

// Close releases the compiled guest and every instance still open.
func (r *Runtime) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

const defaultInterval = 50 * time.Millisecond

package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/tox-bridge/bridge"
	"github.com/wippyai/tox-bridge/config"
	"github.com/wippyai/tox-bridge/metrics"
	"github.com/wippyai/tox-bridge/native"
	"github.com/wippyai/tox-bridge/native/memcore"
	"github.com/wippyai/tox-bridge/native/wasmcore"
	"github.com/wippyai/tox-bridge/server"
	"github.com/wippyai/tox-bridge/snapshot"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config (defaults apply when empty)")
		addr       = flag.String("addr", "", "Override server.addr")
		backend    = flag.String("backend", "", "Override core.backend (memory|wasm)")
		wasmPath   = flag.String("wasm", "", "Override core.wasm_path")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *backend != "" {
		cfg.Core.Backend = *backend
	}
	if *wasmPath != "" {
		cfg.Core.WasmPath = *wasmPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("toxbridged stopped", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(c config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

func newFactory(ctx context.Context, cfg config.CoreConfig, logger *zap.Logger) (native.Factory, func(context.Context) error, error) {
	switch cfg.Backend {
	case config.BackendWasm:
		rt, err := wasmcore.Load(ctx, cfg.WasmPath, &wasmcore.Config{
			Logger:           logger.Named("wasmcore"),
			MemoryLimitPages: cfg.MemoryLimitPages,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("wasm core loaded", zap.String("path", cfg.WasmPath), zap.Strings("actions", rt.Actions()))
		return rt, rt.Close, nil
	default:
		f := memcore.NewFactory(memcore.WithLogger(logger.Named("memcore")))
		return f, func(context.Context) error { return nil }, nil
	}
}

func newStore(ctx context.Context, cfg config.SnapshotConfig) (snapshot.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return snapshot.OpenSQLite(ctx, cfg.Path)
	case config.DriverRedis:
		return snapshot.DialRedis(cfg.RedisAddr, cfg.TTL), nil
	default:
		return snapshot.Disabled(), nil
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	factory, closeFactory, err := newFactory(ctx, cfg.Core, logger)
	if err != nil {
		return fmt.Errorf("core backend: %w", err)
	}
	defer closeFactory(context.Background())

	store, err := newStore(ctx, cfg.Snapshot)
	if err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}
	defer store.Close()

	bridgeOpts := []bridge.Option{bridge.WithLogger(logger.Named("bridge"))}
	serverOpts := []server.Option{
		server.WithLogger(logger.Named("server")),
		server.WithDefaults(cfg.Core.Defaults),
		server.WithMaxStreamClients(cfg.Server.MaxStreamClients),
	}
	if cfg.Metrics.Enabled {
		m := metrics.New()
		bridgeOpts = append(bridgeOpts, bridge.WithObserver(m), bridge.WithRecorder(m))
		serverOpts = append(serverOpts, server.WithMetrics(cfg.Metrics.Path, m.Handler()))
	}

	b := bridge.New(factory, bridgeOpts...)
	srv := server.New(b, store, serverOpts...)

	if cfg.Pump.Enabled {
		pump := server.NewPump(b, srv.Hub(), cfg.Pump.Interval, logger.Named("pump"))
		go pump.Run(ctx)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("backend", cfg.Core.Backend),
			zap.String("snapshots", cfg.Snapshot.Driver))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	srv.Close()
	if err := b.Close(shutdownCtx); err != nil {
		logger.Warn("session teardown", zap.Error(err))
	}
	return nil
}

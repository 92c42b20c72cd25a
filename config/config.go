// Package config loads the daemon configuration from YAML.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/native"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Core     CoreConfig     `yaml:"core"`
	Pump     PumpConfig     `yaml:"pump"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr             string `yaml:"addr"`
	MaxStreamClients int    `yaml:"max_stream_clients"`
}

type CoreConfig struct {
	// Backend is "memory" or "wasm".
	Backend  string `yaml:"backend"`
	WasmPath string `yaml:"wasm_path"`
	// MemoryLimitPages caps guest memory for the wasm backend; 0 means the
	// runtime default.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
	// Defaults are merged under every create request.
	Defaults native.Options `yaml:"defaults"`
}

type PumpConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type SnapshotConfig struct {
	// Driver is "none", "sqlite" or "redis".
	Driver    string        `yaml:"driver"`
	Path      string        `yaml:"path"`
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

const (
	BackendMemory = "memory"
	BackendWasm   = "wasm"

	DriverNone   = "none"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:             "127.0.0.1:7340",
			MaxStreamClients: 64,
		},
		Core: CoreConfig{
			Backend:  BackendMemory,
			Defaults: native.DefaultOptions(),
		},
		Pump: PumpConfig{
			Enabled:  true,
			Interval: 50 * time.Millisecond,
		},
		Snapshot: SnapshotConfig{
			Driver:    DriverNone,
			Path:      "toxbridge/snapshots.db",
			RedisAddr: "127.0.0.1:6379",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over Default and validates the result. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings and ranges.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.InvalidArgument(errors.PhaseConfig, []string{"server", "addr"}, "", "address required")
	}
	if c.Server.MaxStreamClients < 0 {
		return errors.InvalidArgument(errors.PhaseConfig, []string{"server", "max_stream_clients"},
			c.Server.MaxStreamClients, "must not be negative")
	}
	switch c.Core.Backend {
	case BackendMemory:
	case BackendWasm:
		if c.Core.WasmPath == "" {
			return errors.InvalidArgument(errors.PhaseConfig, []string{"core", "wasm_path"}, "",
				"wasm backend needs a module path")
		}
	default:
		return errors.InvalidArgument(errors.PhaseConfig, []string{"core", "backend"}, c.Core.Backend,
			"backend must be memory or wasm")
	}
	if c.Pump.Enabled && c.Pump.Interval <= 0 {
		return errors.InvalidArgument(errors.PhaseConfig, []string{"pump", "interval"}, c.Pump.Interval.String(),
			"interval must be positive")
	}
	switch c.Snapshot.Driver {
	case DriverNone:
	case DriverSQLite:
		if c.Snapshot.Path == "" {
			return errors.InvalidArgument(errors.PhaseConfig, []string{"snapshot", "path"}, "", "sqlite driver needs a path")
		}
	case DriverRedis:
		if c.Snapshot.RedisAddr == "" {
			return errors.InvalidArgument(errors.PhaseConfig, []string{"snapshot", "redis_addr"}, "", "redis driver needs an address")
		}
	default:
		return errors.InvalidArgument(errors.PhaseConfig, []string{"snapshot", "driver"}, c.Snapshot.Driver,
			"driver must be none, sqlite or redis")
	}
	if c.Metrics.Enabled && (c.Metrics.Path == "" || c.Metrics.Path[0] != '/') {
		return errors.InvalidArgument(errors.PhaseConfig, []string{"metrics", "path"}, c.Metrics.Path,
			"path must start with /")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.InvalidArgument(errors.PhaseConfig, []string{"log", "level"}, c.Log.Level,
			"level must be debug, info, warn or error")
	}
	return nil
}

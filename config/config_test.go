package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/native"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toxbridge.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Core.Backend != BackendMemory || cfg.Snapshot.Driver != DriverNone {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
core:
  backend: wasm
  wasm_path: /opt/tox/core.wasm
  defaults:
    udp_enabled: false
    proxy_type: 2
    proxy_host: 10.0.0.1
    proxy_port: 1080
pump:
  interval: 250ms
snapshot:
  driver: redis
  ttl: 24h
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.MaxStreamClients != 64 {
		t.Errorf("max_stream_clients default lost: %d", cfg.Server.MaxStreamClients)
	}
	if cfg.Core.Backend != BackendWasm || cfg.Core.WasmPath != "/opt/tox/core.wasm" {
		t.Errorf("core = %+v", cfg.Core)
	}
	d := cfg.Core.Defaults
	if d.UDPEnabled || !d.IPv6Enabled || d.ProxyType != native.ProxySOCKS5 || d.ProxyPort != 1080 || d.StartPort != 33445 {
		t.Errorf("defaults = %+v", d)
	}
	if cfg.Pump.Interval != 250*time.Millisecond || !cfg.Pump.Enabled {
		t.Errorf("pump = %+v", cfg.Pump)
	}
	if cfg.Snapshot.Driver != DriverRedis || cfg.Snapshot.TTL != 24*time.Hour || cfg.Snapshot.RedisAddr == "" {
		t.Errorf("snapshot = %+v", cfg.Snapshot)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("missing file: %v", err)
	}
	if _, err := Load(writeConfig(t, "server: [")); errors.KindOf(err) != errors.KindInvalidData {
		t.Errorf("bad yaml: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"negative clients", func(c *Config) { c.Server.MaxStreamClients = -1 }, "server.max_stream_clients"},
		{"unknown backend", func(c *Config) { c.Core.Backend = "cgo" }, "core.backend"},
		{"wasm without path", func(c *Config) { c.Core.Backend = BackendWasm }, "core.wasm_path"},
		{"zero interval", func(c *Config) { c.Pump.Interval = 0 }, "pump.interval"},
		{"unknown driver", func(c *Config) { c.Snapshot.Driver = "etcd" }, "snapshot.driver"},
		{"sqlite without path", func(c *Config) { c.Snapshot.Driver = DriverSQLite; c.Snapshot.Path = "" }, "snapshot.path"},
		{"redis without addr", func(c *Config) { c.Snapshot.Driver = DriverRedis; c.Snapshot.RedisAddr = "" }, "snapshot.redis_addr"},
		{"relative metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics.path"},
		{"unknown level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var e *errors.Error
			if !errors.As(err, &e) {
				t.Fatalf("expected *errors.Error, got %v", err)
			}
			if e.Kind != errors.KindInvalidArgument || e.Phase != errors.PhaseConfig {
				t.Fatalf("unexpected error %v", e)
			}
			if got := joinPath(e.Path); got != tt.path {
				t.Fatalf("path = %s, want %s", got, tt.path)
			}
		})
	}

	cfg := Default()
	cfg.Pump.Enabled = false
	cfg.Pump.Interval = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled pump with zero interval: %v", err)
	}
}

func joinPath(p []string) string {
	out := ""
	for i, s := range p {
		if i > 0 {
			out += "."
		}
		out += s
	}
	return out
}

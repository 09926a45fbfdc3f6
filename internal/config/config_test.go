package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Pool.KeepAliveInterval != 60*time.Second {
		t.Errorf("keep alive = %v, want 60s", cfg.Pool.KeepAliveInterval)
	}
	if cfg.Pool.CommandBufferSize != 32 {
		t.Errorf("command buffer = %d, want 32", cfg.Pool.CommandBufferSize)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != 2112 {
		t.Errorf("metrics = %+v, want enabled on 2112", cfg.Metrics)
	}
	if cfg.Pool.Reconnect.Enabled {
		t.Error("reconnect enabled by default, want disabled")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
pool:
  RELAYS:
    - wss://relay.example.com
  KEEP_ALIVE_INTERVAL: 30s
logging:
  LEVEL: debug
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Pool.Relays) != 1 || cfg.Pool.Relays[0] != "wss://relay.example.com" {
		t.Errorf("relays = %v, want the configured relay", cfg.Pool.Relays)
	}
	if cfg.Pool.KeepAliveInterval != 30*time.Second {
		t.Errorf("keep alive = %v, want 30s", cfg.Pool.KeepAliveInterval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadRejectsNonWebSocketRelay(t *testing.T) {
	path := writeConfig(t, `
pool:
  RELAYS:
    - http://not-a-relay.example.com
`)

	_, err := Load(path, nil)
	if err == nil {
		t.Fatal("Load succeeded with an http relay URL")
	}
	if !strings.Contains(err.Error(), "ws://") {
		t.Errorf("error %q does not mention the required scheme", err)
	}
}

func TestLoadRejectsShortKeepAlive(t *testing.T) {
	path := writeConfig(t, `
pool:
  KEEP_ALIVE_INTERVAL: 5s
`)

	// Keepalive shorter than the 10s write timeout fails cross-field validation
	if _, err := Load(path, nil); err == nil {
		t.Fatal("Load succeeded with keepalive below write timeout")
	}
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, `
logging:
  LEVEL: loud
`)

	if _, err := Load(path, nil); err == nil {
		t.Fatal("Load succeeded with an unknown log level")
	}
}

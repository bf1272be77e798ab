package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
monitor:
  channels:
    - channel: 1
      role: left_start_button
    - channel: 2
      role: right_start_button
test:
  power:
    voltage: 12.0
    current_limit: 2.0
  spec:
    - kind: force
      min: 45
      max: 55
      unit: N
`

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Station.ID != "eol-01" {
		t.Fatalf("expected default station id, got %s", cfg.Station.ID)
	}
	if cfg.Hardware.Driver != "sim" {
		t.Fatalf("expected default sim driver, got %s", cfg.Hardware.Driver)
	}
	if cfg.Monitor.PressWindow != 500*time.Millisecond {
		t.Fatalf("expected default press window 500ms, got %s", cfg.Monitor.PressWindow)
	}
	if cfg.Monitor.Debounce != 2*time.Second {
		t.Fatalf("expected default debounce 2s, got %s", cfg.Monitor.Debounce)
	}
	if cfg.Test.Timeout != 60*time.Second {
		t.Fatalf("expected default test timeout 60s, got %s", cfg.Test.Timeout)
	}
	if cfg.Storage.Backend != "file" || cfg.Storage.Dir != "./data/records" {
		t.Fatalf("expected default file storage, got %+v", cfg.Storage)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr :9100, got %s", cfg.Metrics.Addr)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	data := minimalYAML + `
hardware:
  driver: modbus
`
	if _, err := Load(writeConfig(t, data)); err == nil {
		t.Fatalf("expected rejection of unknown hardware driver")
	}
}

func TestLoadPostgresRequiresConnString(t *testing.T) {
	data := minimalYAML + `
storage:
  backend: postgres
`
	if _, err := Load(writeConfig(t, data)); err == nil {
		t.Fatalf("expected rejection of postgres backend without conn_string")
	}
}

func TestLoadNeuroHubRequiresHost(t *testing.T) {
	data := minimalYAML + `
neurohub:
  enabled: true
`
	if _, err := Load(writeConfig(t, data)); err == nil {
		t.Fatalf("expected rejection of enabled neurohub without host")
	}
}

func TestLoadRejectsMonitorWithoutButtons(t *testing.T) {
	data := `
test:
  power:
    voltage: 12.0
    current_limit: 2.0
  spec:
    - kind: force
      min: 45
      max: 55
      unit: N
`
	if _, err := Load(writeConfig(t, data)); err == nil {
		t.Fatalf("expected rejection of monitor config without start buttons")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

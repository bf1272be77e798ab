// Package config loads and validates the station's yaml configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/adapters/neurohub"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/adapters/opcuaio"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/diomon"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/workflow"
)

type Config struct {
	Station  StationConfig   `yaml:"station"`
	Hardware HardwareConfig  `yaml:"hardware"`
	Monitor  diomon.Config   `yaml:"monitor"`
	Test     workflow.Config `yaml:"test"`
	Storage  StorageConfig   `yaml:"storage"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	NeuroHub NeuroHubConfig  `yaml:"neurohub"`
}

// StationConfig identifies this bench and the units it serializes.
type StationConfig struct {
	ID           string `yaml:"id"`
	SerialPrefix string `yaml:"serial_prefix"`
	Model        string `yaml:"model"`
	PartNumber   string `yaml:"part_number"`
	Operator     string `yaml:"operator"`
}

// HardwareConfig selects the I/O backend. The sim driver needs no wiring;
// the opcua driver talks to the PLC fronting the bench.
type HardwareConfig struct {
	Driver string         `yaml:"driver"` // "sim" or "opcua"
	OPCUA  opcuaio.Config `yaml:"opcua"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"` // "file" or "postgres"
	Dir        string `yaml:"dir"`
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type NeuroHubConfig struct {
	Enabled         bool `yaml:"enabled"`
	neurohub.Config `yaml:",inline"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Station.ID == "" {
		c.Station.ID = "eol-01"
	}
	if c.Station.SerialPrefix == "" {
		c.Station.SerialPrefix = "WF"
	}
	if c.Station.Operator == "" {
		c.Station.Operator = "unattended"
	}
	if c.Hardware.Driver == "" {
		c.Hardware.Driver = "sim"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "./data/records"
	}
	if c.Storage.Table == "" {
		c.Storage.Table = "test_records"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}

	c.Monitor.ApplyDefaults()
	c.Test.ApplyDefaults()
	if c.Hardware.Driver == "opcua" {
		c.Hardware.OPCUA.ApplyDefaults()
	}
	if c.NeuroHub.Enabled {
		c.NeuroHub.Config.ApplyDefaults()
	}
}

func (c *Config) Validate() error {
	switch c.Hardware.Driver {
	case "sim":
	case "opcua":
		if err := c.Hardware.OPCUA.Validate(); err != nil {
			return fmt.Errorf("hardware.opcua: %w", err)
		}
	default:
		return fmt.Errorf("hardware.driver: unknown driver %q", c.Hardware.Driver)
	}

	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	if err := c.Test.Validate(); err != nil {
		return fmt.Errorf("test: %w", err)
	}

	switch c.Storage.Backend {
	case "file":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the file backend")
		}
	case "postgres":
		if c.Storage.ConnString == "" {
			return fmt.Errorf("storage.conn_string is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}

	if c.NeuroHub.Enabled {
		if err := c.NeuroHub.Config.Validate(); err != nil {
			return fmt.Errorf("neurohub: %w", err)
		}
	}
	return nil
}

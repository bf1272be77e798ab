package eoltester

import (
	base "github.com/Soochol/WF-EOL-TESTER-sub009/pkg/eolstation"
)

// Type aliases so consumers can import the module root directly.
type (
	Config         = base.Config
	StationConfig  = base.StationConfig
	HardwareConfig = base.HardwareConfig
	StorageConfig  = base.StorageConfig
	MetricsConfig  = base.MetricsConfig
	NeuroHubConfig = base.NeuroHubConfig

	Station       = base.Station
	StationOption = base.StationOption

	Record      = base.Record
	Measurement = base.Measurement
	DUT         = base.DUT
	Status      = base.Status

	PowerService     = base.PowerService
	LoadCellService  = base.LoadCellService
	DigitalIOService = base.DigitalIOService
	MCUService       = base.MCUService
	RobotService     = base.RobotService
	RecordRepository = base.RecordRepository
	ResultPublisher  = base.ResultPublisher
	DUTProvider      = base.DUTProvider
	Observability    = base.Observability
	Field            = base.Field
)

// Test status values as reported in Record.Status.
const (
	StatusRunning = base.StatusRunning
	StatusPassed  = base.StatusPassed
	StatusFailed  = base.StatusFailed
	StatusAborted = base.StatusAborted
	StatusError   = base.StatusError
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Station lifecycle.
func NewStation(cfg *Config, opts ...StationOption) (*Station, error) {
	return base.NewStation(cfg, opts...)
}

// Dependency overrides.
func WithPower(s PowerService) StationOption         { return base.WithPower(s) }
func WithLoadCell(s LoadCellService) StationOption   { return base.WithLoadCell(s) }
func WithDigitalIO(s DigitalIOService) StationOption { return base.WithDigitalIO(s) }
func WithMCU(s MCUService) StationOption             { return base.WithMCU(s) }
func WithRobot(s RobotService) StationOption         { return base.WithRobot(s) }

func WithRepository(r RecordRepository) StationOption  { return base.WithRepository(r) }
func WithPublisher(p ResultPublisher) StationOption    { return base.WithPublisher(p) }
func WithDUTProvider(d DUTProvider) StationOption      { return base.WithDUTProvider(d) }
func WithObservability(obs Observability) StationOption { return base.WithObservability(obs) }

package eolstation

import (
	"time"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/config"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/orchestrator"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// StationConfig identifies the bench.
	StationConfig = config.StationConfig
	// HardwareConfig selects the I/O backend.
	HardwareConfig = config.HardwareConfig
	// StorageConfig selects the record store.
	StorageConfig = config.StorageConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// NeuroHubConfig configures the MES publisher.
	NeuroHubConfig = config.NeuroHubConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Test status values as they appear in Record.Status.
const (
	StatusRunning = string(domain.StatusRunning)
	StatusPassed  = string(domain.StatusPassed)
	StatusFailed  = string(domain.StatusFailed)
	StatusAborted = string(domain.StatusAborted)
	StatusError   = string(domain.StatusError)
)

// DUT mirrors the internal unit identity for external callers.
type DUT struct {
	SerialNumber string
	PartNumber   string
	Model        string
}

// Measurement mirrors one recorded sample.
type Measurement struct {
	Kind      string
	Value     float64
	Unit      string
	Timestamp time.Time
	Channel   string
}

// Record mirrors a terminal test record.
type Record struct {
	TestID        string
	DUT           DUT
	OperatorID    string
	StartedAt     time.Time
	EndedAt       time.Time
	Status        string
	Measurements  []Measurement
	FailureReason string
	FailedStep    string
}

// Status is a snapshot of the station's single test slot.
type Status struct {
	State  string
	TestID string
	Step   string
	Last   *Record
}

func recordFromDomain(rec *domain.TestRecord) Record {
	out := Record{
		TestID:        string(rec.TestID),
		DUT:           DUT{SerialNumber: rec.DUT.SerialNumber, PartNumber: rec.DUT.PartNumber, Model: rec.DUT.Model},
		OperatorID:    rec.OperatorID,
		StartedAt:     rec.StartedAt,
		EndedAt:       rec.EndedAt,
		Status:        string(rec.Status),
		FailureReason: rec.FailureReason,
		FailedStep:    rec.FailedStep,
	}
	for _, m := range rec.Measurements {
		out.Measurements = append(out.Measurements, Measurement{
			Kind:      string(m.Kind),
			Value:     m.Value,
			Unit:      string(m.Unit),
			Timestamp: m.Timestamp,
			Channel:   m.Channel,
		})
	}
	return out
}

func statusFromInternal(st orchestrator.Status) Status {
	out := Status{
		State:  string(st.State),
		TestID: string(st.TestID),
		Step:   st.Step,
	}
	if st.Last != nil {
		rec := recordFromDomain(st.Last)
		out.Last = &rec
	}
	return out
}

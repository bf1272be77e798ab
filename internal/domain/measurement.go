package domain

import (
	"fmt"
	"math"
	"time"
)

// Unit is the closed set of engineering units the station records.
type Unit string

const (
	UnitNewton     Unit = "N"
	UnitVolt       Unit = "V"
	UnitAmpere     Unit = "A"
	UnitOhm        Unit = "Ohm"
	UnitCelsius    Unit = "degC"
	UnitMillimeter Unit = "mm"
	UnitMicrometer Unit = "um"
	UnitSecond     Unit = "s"
)

// Kind identifies what a measurement is of. Each kind has exactly one unit.
type Kind string

const (
	KindForce       Kind = "force"
	KindTare        Kind = "tare"
	KindVoltage     Kind = "voltage"
	KindCurrent     Kind = "current"
	KindResistance  Kind = "resistance"
	KindTemperature Kind = "temperature"
	KindPosition    Kind = "position"
	KindDuration    Kind = "duration"
)

var unitForKind = map[Kind]Unit{
	KindForce:       UnitNewton,
	KindTare:        UnitNewton,
	KindVoltage:     UnitVolt,
	KindCurrent:     UnitAmpere,
	KindResistance:  UnitOhm,
	KindTemperature: UnitCelsius,
	KindPosition:    UnitMicrometer,
	KindDuration:    UnitSecond,
}

// UnitFor returns the unit a kind is recorded in.
func UnitFor(k Kind) (Unit, bool) {
	u, ok := unitForKind[k]
	return u, ok
}

// Measurement is an immutable sample taken from one hardware channel.
type Measurement struct {
	Kind      Kind      `json:"kind"`
	Value     float64   `json:"value"`
	Unit      Unit      `json:"unit"`
	Timestamp time.Time `json:"ts"`
	Channel   string    `json:"channel,omitempty"`
}

// NewMeasurement validates and stamps a sample. The timestamp is taken here,
// at sample time, never supplied by the caller.
func NewMeasurement(kind Kind, value float64, unit Unit, channel string) (Measurement, error) {
	want, ok := unitForKind[kind]
	if !ok {
		return Measurement{}, &ConfigError{Field: "measurement.kind", Reason: fmt.Sprintf("unknown kind %q", kind)}
	}
	if unit != want {
		return Measurement{}, &ConfigError{
			Field:  "measurement.unit",
			Reason: fmt.Sprintf("kind %s is recorded in %s, got %s", kind, want, unit),
		}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Measurement{}, &ConfigError{Field: "measurement.value", Reason: "value must be finite"}
	}
	return Measurement{
		Kind:      kind,
		Value:     value,
		Unit:      unit,
		Timestamp: time.Now(),
		Channel:   channel,
	}, nil
}

func (m Measurement) String() string {
	return fmt.Sprintf("%s=%.3f %s", m.Kind, m.Value, m.Unit)
}

package workflow

import (
	"time"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
)

type PowerConfig struct {
	Voltage       float64       `yaml:"voltage"`
	CurrentLimit  float64       `yaml:"current_limit"`
	Stabilization time.Duration `yaml:"stabilization"`
}

type RobotConfig struct {
	Axis         int     `yaml:"axis"`
	TestPosition float64 `yaml:"test_position_um"`
	Velocity     float64 `yaml:"velocity"`
	Accel        float64 `yaml:"accel"`
	Decel        float64 `yaml:"decel"`
}

type MCUConfig struct {
	OperatingTemp float64       `yaml:"operating_temp"`
	BootTimeout   time.Duration `yaml:"boot_timeout"`
}

// Config is the scripted-sequence profile for one test type.
type Config struct {
	Power   PowerConfig       `yaml:"power"`
	Robot   RobotConfig       `yaml:"robot"`
	MCU     MCUConfig         `yaml:"mcu"`
	Timeout time.Duration     `yaml:"timeout"`
	Spec    []domain.SpecEntry `yaml:"spec"`
}

func (c *Config) ApplyDefaults() {
	if c.Power.Stabilization == 0 {
		c.Power.Stabilization = 500 * time.Millisecond
	}
	if c.Robot.Velocity == 0 {
		c.Robot.Velocity = 10_000
	}
	if c.Robot.Accel == 0 {
		c.Robot.Accel = 100_000
	}
	if c.Robot.Decel == 0 {
		c.Robot.Decel = 100_000
	}
	if c.MCU.BootTimeout == 0 {
		c.MCU.BootTimeout = 5 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Power.Voltage <= 0 {
		return &domain.ConfigError{Field: "workflow.power.voltage", Reason: "must be > 0"}
	}
	if c.Power.CurrentLimit <= 0 {
		return &domain.ConfigError{Field: "workflow.power.current_limit", Reason: "must be > 0"}
	}
	if c.Timeout <= 0 {
		return &domain.ConfigError{Field: "workflow.timeout", Reason: "must be > 0"}
	}
	if _, err := domain.NewSpecification(c.Spec); err != nil {
		return err
	}
	for _, e := range c.Spec {
		if _, ok := samplers[e.Kind]; !ok {
			return &domain.ConfigError{
				Field:  "workflow.spec",
				Reason: "no hardware sampler for kind " + string(e.Kind),
			}
		}
	}
	return nil
}

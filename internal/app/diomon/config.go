package diomon

import (
	"fmt"
	"time"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
)

// ContactType is the switch wiring: A is normally open (logical = physical),
// B is normally closed (logical = inverted physical).
type ContactType string

const (
	ContactA ContactType = "A"
	ContactB ContactType = "B"
)

// EdgeType selects which logical transition counts as an edge.
type EdgeType string

const (
	EdgeRising  EdgeType = "rising"
	EdgeFalling EdgeType = "falling"
)

// Role names what a channel is wired to.
type Role string

const (
	RoleLeftStartButton  Role = "left_start_button"
	RoleRightStartButton Role = "right_start_button"
	RoleEmergencyStop    Role = "emergency_stop"
	RoleDoorSensor       Role = "door_sensor"
	RoleClampSensor      Role = "clamp_sensor"
	RoleChainSensor      Role = "chain_sensor"
	RoleGeneric          Role = "generic"
)

// safeLogical is the logical level each safety role must sit at for a start
// to be permitted: door closed, clamp clamped, chain engaged, estop released.
var safeLogical = map[Role]bool{
	RoleDoorSensor:    true,
	RoleClampSensor:   true,
	RoleChainSensor:   true,
	RoleEmergencyStop: false,
}

// ChannelConfig describes one digital input channel. Built once from the
// profile at startup; never mutated afterwards.
type ChannelConfig struct {
	Channel int         `yaml:"channel"`
	Contact ContactType `yaml:"contact"`
	Edge    EdgeType    `yaml:"edge"`
	Role    Role        `yaml:"role"`
}

// LampConfig optionally drives a tower lamp output: on while a test runs.
type LampConfig struct {
	Enabled bool `yaml:"enabled"`
	Channel int  `yaml:"channel"`
}

type Config struct {
	PollInterval time.Duration   `yaml:"poll_interval"`
	PressWindow  time.Duration   `yaml:"press_window"`
	Debounce     time.Duration   `yaml:"debounce"`
	Channels     []ChannelConfig `yaml:"channels"`
	Lamp         LampConfig      `yaml:"lamp"`
}

func (c *Config) ApplyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.PressWindow == 0 {
		c.PressWindow = 500 * time.Millisecond
	}
	if c.Debounce == 0 {
		c.Debounce = 2 * time.Second
	}
	for i := range c.Channels {
		if c.Channels[i].Contact == "" {
			c.Channels[i].Contact = ContactA
		}
		if c.Channels[i].Edge == "" {
			c.Channels[i].Edge = EdgeRising
		}
		if c.Channels[i].Role == "" {
			c.Channels[i].Role = RoleGeneric
		}
	}
}

func (c *Config) Validate() error {
	if c.PollInterval < 50*time.Millisecond || c.PollInterval > 500*time.Millisecond {
		return &domain.ConfigError{Field: "dio.poll_interval", Reason: "must be between 50ms and 500ms"}
	}
	if c.PressWindow < 100*time.Millisecond || c.PressWindow > 2*time.Second {
		return &domain.ConfigError{Field: "dio.press_window", Reason: "must be between 100ms and 2s"}
	}
	if c.Debounce < 500*time.Millisecond || c.Debounce > 10*time.Second {
		return &domain.ConfigError{Field: "dio.debounce", Reason: "must be between 500ms and 10s"}
	}

	seen := make(map[int]bool, len(c.Channels))
	roles := make(map[Role]int, len(c.Channels))
	for i, ch := range c.Channels {
		field := fmt.Sprintf("dio.channels[%d]", i)
		if ch.Channel < 0 {
			return &domain.ConfigError{Field: field, Reason: "channel must be >= 0"}
		}
		if seen[ch.Channel] {
			return &domain.ConfigError{Field: field, Reason: fmt.Sprintf("channel %d configured twice", ch.Channel)}
		}
		seen[ch.Channel] = true
		switch ch.Contact {
		case ContactA, ContactB:
		default:
			return &domain.ConfigError{Field: field, Reason: fmt.Sprintf("unknown contact type %q", ch.Contact)}
		}
		switch ch.Edge {
		case EdgeRising, EdgeFalling:
		default:
			return &domain.ConfigError{Field: field, Reason: fmt.Sprintf("unknown edge type %q", ch.Edge)}
		}
		if ch.Role != RoleGeneric {
			if _, dup := roles[ch.Role]; dup {
				return &domain.ConfigError{Field: field, Reason: fmt.Sprintf("role %s configured twice", ch.Role)}
			}
			roles[ch.Role] = ch.Channel
		}
	}

	if _, ok := roles[RoleLeftStartButton]; !ok {
		return &domain.ConfigError{Field: "dio.channels", Reason: "left_start_button channel is required"}
	}
	if _, ok := roles[RoleRightStartButton]; !ok {
		return &domain.ConfigError{Field: "dio.channels", Reason: "right_start_button channel is required"}
	}
	return nil
}

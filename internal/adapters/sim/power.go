package sim

import (
	"context"
	"sync"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

// Power simulates the programmable DC supply. MeasureVoltage tracks the
// programmed setpoint while the output is enabled.
type Power struct {
	faults

	mu           sync.Mutex
	connected    bool
	voltage      float64
	currentLimit float64
	outputOn     bool

	// LoadCurrent is what MeasureCurrent reports while the output is on.
	LoadCurrent float64
}

func NewPower() *Power { return &Power{} }

// FailWith injects an error for the named operation: connect, set_voltage,
// set_current_limit, enable_output, disable_output, measure_voltage,
// measure_current.
func (p *Power) FailWith(op string, err error) { p.failWith(op, err) }

func (p *Power) Connect(ctx context.Context) error {
	if err := p.get("connect"); err != nil {
		return &domain.ConnectionError{Device: "power", Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

func (p *Power) Disconnect(ctx context.Context) error {
	if err := p.get("disconnect"); err != nil {
		return &domain.ConnectionError{Device: "power", Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	p.outputOn = false
	return nil
}

func (p *Power) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *Power) SetVoltage(ctx context.Context, volts float64) error {
	if err := p.get("set_voltage"); err != nil {
		return &domain.OperationError{Device: "power", Op: "set_voltage", Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.voltage = volts
	return nil
}

func (p *Power) SetCurrentLimit(ctx context.Context, amps float64) error {
	if err := p.get("set_current_limit"); err != nil {
		return &domain.OperationError{Device: "power", Op: "set_current_limit", Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentLimit = amps
	return nil
}

func (p *Power) EnableOutput(ctx context.Context) error {
	if err := p.get("enable_output"); err != nil {
		return &domain.OperationError{Device: "power", Op: "enable_output", Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outputOn = true
	return nil
}

// DisableOutput always quiesces, even with injected faults elsewhere.
func (p *Power) DisableOutput(ctx context.Context) error {
	if err := p.get("disable_output"); err != nil {
		return &domain.OperationError{Device: "power", Op: "disable_output", Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outputOn = false
	return nil
}

func (p *Power) MeasureVoltage(ctx context.Context) (float64, error) {
	if err := p.get("measure_voltage"); err != nil {
		return 0, &domain.OperationError{Device: "power", Op: "measure_voltage", Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.outputOn {
		return 0, nil
	}
	return p.voltage, nil
}

func (p *Power) MeasureCurrent(ctx context.Context) (float64, error) {
	if err := p.get("measure_current"); err != nil {
		return 0, &domain.OperationError{Device: "power", Op: "measure_current", Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.outputOn {
		return 0, nil
	}
	return p.LoadCurrent, nil
}

// OutputEnabled exposes the output state for assertions.
func (p *Power) OutputEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outputOn
}

var _ ports.PowerService = (*Power)(nil)

package sim

import (
	"context"
	"sync"
	"time"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

// MCU simulates the microcontroller under test.
type MCU struct {
	faults

	mu          sync.Mutex
	connected   bool
	testMode    bool
	temperature float64

	// BootDelay is how long WaitForBootComplete takes to acknowledge.
	BootDelay time.Duration
}

func NewMCU() *MCU { return &MCU{temperature: 25.0} }

// FailWith injects an error for: connect, enter_test_mode, exit_test_mode,
// set_temperature, read_temperature, boot.
func (m *MCU) FailWith(op string, err error) { m.failWith(op, err) }

func (m *MCU) Connect(ctx context.Context) error {
	if err := m.get("connect"); err != nil {
		return &domain.ConnectionError{Device: "mcu", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MCU) Disconnect(ctx context.Context) error {
	if err := m.get("disconnect"); err != nil {
		return &domain.ConnectionError{Device: "mcu", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.testMode = false
	return nil
}

func (m *MCU) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MCU) EnterTestMode(ctx context.Context) error {
	if err := m.get("enter_test_mode"); err != nil {
		return &domain.OperationError{Device: "mcu", Op: "enter_test_mode", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.testMode = true
	return nil
}

func (m *MCU) ExitTestMode(ctx context.Context) error {
	if err := m.get("exit_test_mode"); err != nil {
		return &domain.OperationError{Device: "mcu", Op: "exit_test_mode", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.testMode = false
	return nil
}

func (m *MCU) SetOperatingTemperature(ctx context.Context, celsius float64) error {
	if err := m.get("set_temperature"); err != nil {
		return &domain.OperationError{Device: "mcu", Op: "set_temperature", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.temperature = celsius
	return nil
}

func (m *MCU) ReadTemperature(ctx context.Context) (float64, error) {
	if err := m.get("read_temperature"); err != nil {
		return 0, &domain.OperationError{Device: "mcu", Op: "read_temperature", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.temperature, nil
}

func (m *MCU) WaitForBootComplete(ctx context.Context, timeout time.Duration) error {
	if err := m.get("boot"); err != nil {
		return &domain.CalibrationError{Device: "mcu", Err: err}
	}
	m.mu.Lock()
	delay := m.BootDelay
	m.mu.Unlock()
	if delay <= 0 {
		return nil
	}
	if delay > timeout {
		return &domain.OperationError{Device: "mcu", Op: "wait_for_boot", Err: context.DeadlineExceeded}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// InTestMode reports whether the simulated MCU is in test mode.
func (m *MCU) InTestMode() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.testMode
}

var _ ports.MCUService = (*MCU)(nil)

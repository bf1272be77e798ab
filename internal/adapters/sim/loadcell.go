package sim

import (
	"context"
	"sync"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

// LoadCell simulates the force transducer.
type LoadCell struct {
	faults

	mu        sync.Mutex
	connected bool
	tared     bool
	force     float64
}

func NewLoadCell() *LoadCell { return &LoadCell{force: 50.0} }

// FailWith injects an error for: connect, zero, read_force.
func (l *LoadCell) FailWith(op string, err error) { l.failWith(op, err) }

// SetForce sets the reading returned by ReadForce.
func (l *LoadCell) SetForce(n float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.force = n
}

func (l *LoadCell) Connect(ctx context.Context) error {
	if err := l.get("connect"); err != nil {
		return &domain.ConnectionError{Device: "loadcell", Err: err}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = true
	return nil
}

func (l *LoadCell) Disconnect(ctx context.Context) error {
	if err := l.get("disconnect"); err != nil {
		return &domain.ConnectionError{Device: "loadcell", Err: err}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	return nil
}

func (l *LoadCell) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *LoadCell) Zero(ctx context.Context) error {
	if err := l.get("zero"); err != nil {
		return &domain.CalibrationError{Device: "loadcell", Err: err}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tared = true
	return nil
}

func (l *LoadCell) ReadForce(ctx context.Context) (float64, error) {
	if err := l.get("read_force"); err != nil {
		return 0, &domain.OperationError{Device: "loadcell", Op: "read_force", Err: err}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.force, nil
}

// Tared reports whether Zero completed since the last connect.
func (l *LoadCell) Tared() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tared
}

var _ ports.LoadCellService = (*LoadCell)(nil)

package sim

import (
	"context"
	"errors"
	"sync"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

var errServoOff = errors.New("servo not enabled")

// Robot simulates the motion controller. Moves complete instantly.
type Robot struct {
	faults

	mu        sync.Mutex
	connected bool
	servoOn   map[int]bool
	homed     map[int]bool
	position  map[int]float64
	estopped  bool
}

func NewRobot() *Robot {
	return &Robot{
		servoOn:  make(map[int]bool),
		homed:    make(map[int]bool),
		position: make(map[int]float64),
	}
}

// FailWith injects an error for: connect, enable_servo, disable_servo,
// home, move, read_position, emergency_stop.
func (r *Robot) FailWith(op string, err error) { r.failWith(op, err) }

func (r *Robot) Connect(ctx context.Context) error {
	if err := r.get("connect"); err != nil {
		return &domain.ConnectionError{Device: "robot", Err: err}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = true
	return nil
}

func (r *Robot) Disconnect(ctx context.Context) error {
	if err := r.get("disconnect"); err != nil {
		return &domain.ConnectionError{Device: "robot", Err: err}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = false
	for axis := range r.servoOn {
		r.servoOn[axis] = false
	}
	return nil
}

func (r *Robot) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *Robot) EnableServo(ctx context.Context, axis int) error {
	if err := r.get("enable_servo"); err != nil {
		return &domain.OperationError{Device: "robot", Op: "enable_servo", Err: err}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servoOn[axis] = true
	return nil
}

func (r *Robot) DisableServo(ctx context.Context, axis int) error {
	if err := r.get("disable_servo"); err != nil {
		return &domain.OperationError{Device: "robot", Op: "disable_servo", Err: err}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servoOn[axis] = false
	return nil
}

func (r *Robot) HomeAxis(ctx context.Context, axis int) error {
	if err := r.get("home"); err != nil {
		return &domain.CalibrationError{Device: "robot", Err: err}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.homed[axis] = true
	r.position[axis] = 0
	return nil
}

func (r *Robot) MoveAbsolute(ctx context.Context, axis int, position, velocity, accel, decel float64) error {
	if err := r.get("move"); err != nil {
		return &domain.OperationError{Device: "robot", Op: "move_absolute", Err: err}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.servoOn[axis] {
		return &domain.OperationError{Device: "robot", Op: "move_absolute", Err: errServoOff}
	}
	r.position[axis] = position
	return nil
}

func (r *Robot) ReadPosition(ctx context.Context, axis int) (float64, error) {
	if err := r.get("read_position"); err != nil {
		return 0, &domain.OperationError{Device: "robot", Op: "read_position", Err: err}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position[axis], nil
}

func (r *Robot) EmergencyStop(ctx context.Context, axis int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.estopped = true
	r.servoOn[axis] = false
	return nil
}

// ServoEnabled reports whether an axis is energized.
func (r *Robot) ServoEnabled(axis int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.servoOn[axis]
}

// EStopped reports whether an emergency stop was issued.
func (r *Robot) EStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.estopped
}

var _ ports.RobotService = (*Robot)(nil)

package ports

import "context"

// RobotService controls the motion controller. Positions are in micrometers,
// velocities in micrometers per second.
type RobotService interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	EnableServo(ctx context.Context, axis int) error
	DisableServo(ctx context.Context, axis int) error
	HomeAxis(ctx context.Context, axis int) error
	MoveAbsolute(ctx context.Context, axis int, position, velocity, accel, decel float64) error
	ReadPosition(ctx context.Context, axis int) (float64, error)
	EmergencyStop(ctx context.Context, axis int) error
}

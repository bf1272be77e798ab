package ports

import "context"

// PowerService drives the programmable DC power supply. EnableOutput is
// idempotent; DisableOutput must succeed even when the device is faulted.
type PowerService interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	SetVoltage(ctx context.Context, volts float64) error
	SetCurrentLimit(ctx context.Context, amps float64) error
	EnableOutput(ctx context.Context) error
	DisableOutput(ctx context.Context) error
	MeasureVoltage(ctx context.Context) (float64, error)
	MeasureCurrent(ctx context.Context) (float64, error)
}

package ports

import "context"

// DigitalIOService exposes the discrete input/output bank. ReadAllInputs is
// the safety monitor's hot path and must reflect a single sampling instant
// to the resolution the hardware allows.
type DigitalIOService interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	ReadInput(ctx context.Context, channel int) (bool, error)
	WriteOutput(ctx context.Context, channel int, on bool) error
	ReadAllInputs(ctx context.Context) (map[int]bool, error)
}

package ports

import "context"

// LoadCellService reads the force transducer. Zero returns once the device
// reports a stable tare or fails with a domain.CalibrationError.
type LoadCellService interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	Zero(ctx context.Context) error
	ReadForce(ctx context.Context) (float64, error)
}

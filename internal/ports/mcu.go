package ports

import (
	"context"
	"time"
)

// MCUService is the communication channel to the microcontroller under test.
type MCUService interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	EnterTestMode(ctx context.Context) error
	ExitTestMode(ctx context.Context) error
	SetOperatingTemperature(ctx context.Context, celsius float64) error
	ReadTemperature(ctx context.Context) (float64, error)
	WaitForBootComplete(ctx context.Context, timeout time.Duration) error
}

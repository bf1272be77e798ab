package sim

import (
	"context"
	"sync"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

// DIO simulates the digital I/O bank. Tests drive inputs with SetInput and
// observe outputs with Output.
type DIO struct {
	faults

	mu        sync.Mutex
	connected bool
	inputs    map[int]bool
	outputs   map[int]bool
}

func NewDIO() *DIO {
	return &DIO{
		inputs:  make(map[int]bool),
		outputs: make(map[int]bool),
	}
}

// FailWith injects an error for: connect, read_input, write_output, read_all.
func (d *DIO) FailWith(op string, err error) { d.failWith(op, err) }

// SetInput sets the physical level of one input channel.
func (d *DIO) SetInput(channel int, high bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inputs[channel] = high
}

// Output returns the last value written to an output channel.
func (d *DIO) Output(channel int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outputs[channel]
}

func (d *DIO) Connect(ctx context.Context) error {
	if err := d.get("connect"); err != nil {
		return &domain.ConnectionError{Device: "dio", Err: err}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = true
	return nil
}

func (d *DIO) Disconnect(ctx context.Context) error {
	if err := d.get("disconnect"); err != nil {
		return &domain.ConnectionError{Device: "dio", Err: err}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	return nil
}

func (d *DIO) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *DIO) ReadInput(ctx context.Context, channel int) (bool, error) {
	if err := d.get("read_input"); err != nil {
		return false, &domain.OperationError{Device: "dio", Op: "read_input", Err: err}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inputs[channel], nil
}

func (d *DIO) WriteOutput(ctx context.Context, channel int, on bool) error {
	if err := d.get("write_output"); err != nil {
		return &domain.OperationError{Device: "dio", Op: "write_output", Err: err}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputs[channel] = on
	return nil
}

// ReadAllInputs snapshots every input under one lock acquisition, which is
// the simulator's notion of an atomic sample.
func (d *DIO) ReadAllInputs(ctx context.Context) (map[int]bool, error) {
	if err := d.get("read_all"); err != nil {
		return nil, &domain.OperationError{Device: "dio", Op: "read_all", Err: err}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[int]bool, len(d.inputs))
	for ch, v := range d.inputs {
		out[ch] = v
	}
	return out, nil
}

var _ ports.DigitalIOService = (*DIO)(nil)

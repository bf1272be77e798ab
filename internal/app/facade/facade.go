// Package facade composes the five hardware services behind connect-all /
// disconnect-all / emergency-stop-all with partial-failure semantics.
package facade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

type Facade struct {
	power    ports.PowerService
	loadcell ports.LoadCellService
	dio      ports.DigitalIOService
	mcu      ports.MCUService
	robot    ports.RobotService
	obs      ports.Observability
	axis     int
}

func New(power ports.PowerService, loadcell ports.LoadCellService, dio ports.DigitalIOService,
	mcu ports.MCUService, robot ports.RobotService, obs ports.Observability, robotAxis int) *Facade {
	return &Facade{
		power:    power,
		loadcell: loadcell,
		dio:      dio,
		mcu:      mcu,
		robot:    robot,
		obs:      obs,
		axis:     robotAxis,
	}
}

func (f *Facade) Power() ports.PowerService       { return f.power }
func (f *Facade) LoadCell() ports.LoadCellService { return f.loadcell }
func (f *Facade) DIO() ports.DigitalIOService     { return f.dio }
func (f *Facade) MCU() ports.MCUService           { return f.mcu }
func (f *Facade) Robot() ports.RobotService       { return f.robot }
func (f *Facade) RobotAxis() int                  { return f.axis }

type service struct {
	name       string
	connect    func(context.Context) error
	disconnect func(context.Context) error
	connected  func() bool
}

// services fixes the connect order. DisconnectAll walks it in reverse.
func (f *Facade) services() []service {
	return []service{
		{"power", f.power.Connect, f.power.Disconnect, f.power.IsConnected},
		{"loadcell", f.loadcell.Connect, f.loadcell.Disconnect, f.loadcell.IsConnected},
		{"dio", f.dio.Connect, f.dio.Disconnect, f.dio.IsConnected},
		{"mcu", f.mcu.Connect, f.mcu.Disconnect, f.mcu.IsConnected},
		{"robot", f.robot.Connect, f.robot.Disconnect, f.robot.IsConnected},
	}
}

// ConnectAll connects every service in a deterministic order. On the first
// failure it disconnects whatever already connected and returns an error
// naming both groups. Safe to call when some services are already connected.
func (f *Facade) ConnectAll(ctx context.Context) error {
	var connected []service
	for _, svc := range f.services() {
		if err := svc.connect(ctx); err != nil {
			var okNames []string
			var rollback []error
			for i := len(connected) - 1; i >= 0; i-- {
				okNames = append(okNames, connected[i].name)
				if derr := connected[i].disconnect(ctx); derr != nil {
					rollback = append(rollback, derr)
				}
			}
			f.obs.LogError("facade_connect_failed", err,
				ports.Field{Key: "device", Value: svc.name},
				ports.Field{Key: "rolled_back", Value: strings.Join(okNames, ",")})
			composite := fmt.Errorf("connect %s (connected so far: [%s]): %w",
				svc.name, strings.Join(okNames, ", "), err)
			if len(rollback) > 0 {
				composite = errors.Join(append([]error{composite}, rollback...)...)
			}
			return composite
		}
		connected = append(connected, svc)
	}
	return nil
}

// DisconnectAll disconnects every service regardless of individual failures
// and aggregates whatever went wrong. Repeat calls are harmless.
func (f *Facade) DisconnectAll(ctx context.Context) error {
	svcs := f.services()
	var errs []error
	for i := len(svcs) - 1; i >= 0; i-- {
		if err := svcs[i].disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disconnect %s: %w", svcs[i].name, err))
		}
	}
	return errors.Join(errs...)
}

// EmergencyStopAll issues the safest shutdown every service supports,
// concurrently. It never propagates failures; it logs them and returns.
func (f *Facade) EmergencyStopAll(ctx context.Context) {
	var wg sync.WaitGroup
	stop := func(name string, fn func(context.Context) error) {
		defer wg.Done()
		if err := fn(ctx); err != nil {
			f.obs.LogError("emergency_stop_failed", err, ports.Field{Key: "device", Value: name})
		}
	}

	wg.Add(3)
	go stop("robot", func(ctx context.Context) error { return f.robot.EmergencyStop(ctx, f.axis) })
	go stop("power", f.power.DisableOutput)
	go stop("mcu", f.mcu.ExitTestMode)
	wg.Wait()
}

// AllConnected reports whether every service holds a transport.
func (f *Facade) AllConnected() bool {
	for _, svc := range f.services() {
		if !svc.connected() {
			return false
		}
	}
	return true
}

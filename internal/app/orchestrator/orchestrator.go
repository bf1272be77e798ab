// Package orchestrator owns the station's single test slot. It accepts start
// signals from the digital input monitor, runs at most one workflow at a time,
// and fans terminal records out to listeners and the result publisher.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/facade"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/workflow"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

// State is the coarse slot state exposed through Status.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateTerminal State = "terminal"
)

// Status is a point-in-time snapshot of the slot.
type Status struct {
	State  State
	TestID domain.TestID
	Step   string
	Last   *domain.TestRecord
}

// Lamp drives the busy indicator. The digital input monitor satisfies it.
type Lamp interface {
	SetLamp(ctx context.Context, on bool)
}

const sideEffectTimeout = 10 * time.Second

// Orchestrator serializes test executions onto one slot. Start signals that
// arrive while a test runs are refused and logged, never queued.
type Orchestrator struct {
	profile workflow.Config
	hw      *facade.Facade
	repo    ports.RecordRepository
	duts    ports.DUTProvider
	obs     ports.Observability

	mu        sync.Mutex
	base      context.Context
	state     State
	current   *workflow.Workflow
	cancel    context.CancelCauseFunc
	last      *domain.TestRecord
	listeners []func(*domain.TestRecord)
	pub       ports.ResultPublisher
	lamp      Lamp
	wg        sync.WaitGroup
}

func New(profile workflow.Config, hw *facade.Facade, repo ports.RecordRepository,
	duts ports.DUTProvider, obs ports.Observability) *Orchestrator {
	return &Orchestrator{
		profile: profile,
		hw:      hw,
		repo:    repo,
		duts:    duts,
		obs:     obs,
		base:    context.Background(),
		state:   StateIdle,
	}
}

// AttachPublisher wires the inspection-station publisher. Publishing is
// best-effort; failures are logged and never affect a verdict.
func (o *Orchestrator) AttachPublisher(pub ports.ResultPublisher) {
	o.mu.Lock()
	o.pub = pub
	o.mu.Unlock()
}

// AttachLamp wires the busy-lamp driver.
func (o *Orchestrator) AttachLamp(l Lamp) {
	o.mu.Lock()
	o.lamp = l
	o.mu.Unlock()
}

// RegisterRecordListener adds a callback invoked with a copy of every
// terminal record, after persistence.
func (o *Orchestrator) RegisterRecordListener(fn func(*domain.TestRecord)) {
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

// Start sets the parent context new test executions derive from.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	o.base = ctx
	o.mu.Unlock()
}

// Stop cancels any running test and waits for its worker to drain.
func (o *Orchestrator) Stop() {
	o.CancelCurrent("station shutdown")
	o.wg.Wait()
}

// HandleStartSignal is the dual-button callback. The slot check and
// assignment happen under one lock so concurrent signals cannot both win.
func (o *Orchestrator) HandleStartSignal() {
	o.mu.Lock()
	base := o.base
	o.mu.Unlock()

	dut, operator, err := o.duts.CurrentDUT(base)
	if err != nil {
		o.obs.LogError("dut_identity_unavailable", err)
		return
	}
	wf, err := workflow.New(dut, operator, o.profile, o.hw, o.repo, o.obs)
	if err != nil {
		o.obs.LogError("test_profile_invalid", err)
		return
	}

	o.mu.Lock()
	if o.state == StateRunning {
		running := o.current.ID()
		o.mu.Unlock()
		o.obs.IncCounter("eol_start_refused_total", 1)
		o.obs.LogWarn("start_signal_refused_test_active",
			ports.Field{Key: "running_test_id", Value: string(running)},
			ports.Field{Key: "serial", Value: dut.SerialNumber})
		return
	}
	ctx, cancel := context.WithCancelCause(base)
	o.state = StateRunning
	o.current = wf
	o.cancel = cancel
	o.wg.Add(1)
	o.mu.Unlock()

	go o.runTest(ctx, cancel, wf, dut)
}

func (o *Orchestrator) runTest(ctx context.Context, cancel context.CancelCauseFunc,
	wf *workflow.Workflow, dut domain.DUT) {
	defer o.wg.Done()
	defer cancel(nil)

	o.obs.IncCounter("eol_tests_started_total", 1)
	o.obs.SetGauge("eol_active_tests", 1)
	o.setLamp(true)
	o.publishStart(ctx, dut.SerialNumber)
	o.obs.LogInfo("test_started",
		ports.Field{Key: "test_id", Value: string(wf.ID())},
		ports.Field{Key: "serial", Value: dut.SerialNumber})

	began := time.Now()
	rec, err := wf.Execute(ctx)
	o.obs.ObserveLatency("eol_test_duration_seconds", time.Since(began).Seconds())
	if err != nil {
		o.obs.LogError("test_execution_error", err,
			ports.Field{Key: "test_id", Value: string(wf.ID())})
	}

	o.setLamp(false)
	o.obs.SetGauge("eol_active_tests", 0)

	var listeners []func(*domain.TestRecord)
	o.mu.Lock()
	o.current = nil
	o.cancel = nil
	if rec != nil {
		o.state = StateTerminal
		o.last = rec
		listeners = append(listeners, o.listeners...)
	} else {
		o.state = StateIdle
	}
	o.mu.Unlock()

	if rec == nil {
		return
	}
	o.obs.IncCounter(statusCounter(rec.Status), 1)
	o.obs.LogInfo("test_finished",
		ports.Field{Key: "test_id", Value: string(rec.TestID)},
		ports.Field{Key: "status", Value: string(rec.Status)})
	o.publishComplete(rec)
	for _, fn := range listeners {
		fn(rec.Clone())
	}
}

func statusCounter(s domain.TestStatus) string {
	switch s {
	case domain.StatusPassed:
		return "eol_tests_passed_total"
	case domain.StatusFailed:
		return "eol_tests_failed_total"
	case domain.StatusAborted:
		return "eol_tests_aborted_total"
	default:
		return "eol_tests_error_total"
	}
}

// CancelCurrent aborts the running test, carrying reason into its record.
// It reports whether a test was actually running.
func (o *Orchestrator) CancelCurrent(reason string) bool {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel(&domain.CancelledError{Reason: reason})
	return true
}

// HandleEmergencyStop is the estop-edge callback. The hardware stop fires
// regardless of slot state; an idle bench still gets quiesced.
func (o *Orchestrator) HandleEmergencyStop() {
	o.CancelCurrent("emergency stop pressed")
	ctx, stop := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer stop()
	o.hw.EmergencyStopAll(ctx)
}

// Status snapshots the slot. The returned record is a copy.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{State: o.state}
	if o.current != nil {
		st.TestID = o.current.ID()
		st.Step = o.current.CurrentStep()
	}
	if o.last != nil {
		st.Last = o.last.Clone()
	}
	return st
}

func (o *Orchestrator) setLamp(on bool) {
	o.mu.Lock()
	lamp := o.lamp
	o.mu.Unlock()
	if lamp == nil {
		return
	}
	ctx, done := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer done()
	lamp.SetLamp(ctx, on)
}

func (o *Orchestrator) publishStart(ctx context.Context, serial string) {
	o.mu.Lock()
	pub := o.pub
	o.mu.Unlock()
	if pub == nil {
		return
	}
	if err := pub.PublishStart(ctx, serial); err != nil {
		o.obs.LogWarn("publish_start_failed", ports.Field{Key: "error", Value: err.Error()})
	}
}

func (o *Orchestrator) publishComplete(rec *domain.TestRecord) {
	o.mu.Lock()
	pub := o.pub
	o.mu.Unlock()
	if pub == nil {
		return
	}
	// The test context may already be cancelled; completion still goes out.
	ctx, done := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer done()
	if err := pub.PublishComplete(ctx, rec.Clone()); err != nil {
		o.obs.LogWarn("publish_complete_failed",
			ports.Field{Key: "test_id", Value: string(rec.TestID)},
			ports.Field{Key: "error", Value: err.Error()})
	}
}

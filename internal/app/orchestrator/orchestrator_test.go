package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/adapters/sim"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/facade"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/workflow"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

type memRepo struct {
	mu    sync.Mutex
	saves []domain.TestRecord
}

func (r *memRepo) Save(_ context.Context, rec *domain.TestRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, *rec.Clone())
	return nil
}

func (r *memRepo) Find(_ context.Context, id domain.TestID) (*domain.TestRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.saves) - 1; i >= 0; i-- {
		if r.saves[i].TestID == id {
			cp := r.saves[i]
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

type countObs struct {
	mu       sync.Mutex
	counters map[string]float64
}

func newCountObs() *countObs { return &countObs{counters: map[string]float64{}} }

func (c *countObs) LogInfo(string, ...ports.Field)              {}
func (c *countObs) LogWarn(string, ...ports.Field)              {}
func (c *countObs) LogError(string, error, ...ports.Field)      {}
func (c *countObs) LogCritical(string, error, ...ports.Field)   {}
func (c *countObs) ObserveLatency(string, float64)              {}
func (c *countObs) SetGauge(string, float64)                    {}

func (c *countObs) IncCounter(name string, v float64) {
	c.mu.Lock()
	c.counters[name] += v
	c.mu.Unlock()
}

func (c *countObs) count(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

type fakeLamp struct {
	mu     sync.Mutex
	states []bool
}

func (l *fakeLamp) SetLamp(_ context.Context, on bool) {
	l.mu.Lock()
	l.states = append(l.states, on)
	l.mu.Unlock()
}

type fakePub struct {
	mu        sync.Mutex
	starts    []string
	completes []*domain.TestRecord
	startErr  error
}

func (p *fakePub) PublishStart(_ context.Context, serial string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return p.startErr
	}
	p.starts = append(p.starts, serial)
	return nil
}

func (p *fakePub) PublishComplete(_ context.Context, rec *domain.TestRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completes = append(p.completes, rec)
	return nil
}

func (p *fakePub) Close() error { return nil }

type bench struct {
	power *sim.Power
	robot *sim.Robot
	obs   *countObs
	repo  *memRepo
	orch  *Orchestrator
	done  chan *domain.TestRecord
}

func newBench(t *testing.T, stabilization time.Duration) *bench {
	t.Helper()
	b := &bench{
		power: sim.NewPower(),
		robot: sim.NewRobot(),
		obs:   newCountObs(),
		repo:  &memRepo{},
		done:  make(chan *domain.TestRecord, 16),
	}
	hw := facade.New(b.power, sim.NewLoadCell(), sim.NewDIO(), sim.NewMCU(), b.robot, b.obs, 0)
	profile := workflow.Config{
		Power: workflow.PowerConfig{Voltage: 12.0, CurrentLimit: 2.0, Stabilization: stabilization},
		Robot: workflow.RobotConfig{Axis: 0, TestPosition: 100_000},
		MCU:   workflow.MCUConfig{OperatingTemp: 85, BootTimeout: time.Second},
		Spec: []domain.SpecEntry{
			{Kind: domain.KindForce, Min: 45, Max: 55, Unit: domain.UnitNewton},
		},
	}
	b.orch = New(profile, hw, b.repo, NewFixedDUTs("WF", "WF-10", "P-1", "op-1"), b.obs)
	b.orch.RegisterRecordListener(func(rec *domain.TestRecord) { b.done <- rec })
	b.orch.Start(context.Background())
	return b
}

func (b *bench) waitRecord(t *testing.T) *domain.TestRecord {
	t.Helper()
	select {
	case rec := <-b.done:
		return rec
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for terminal record")
		return nil
	}
}

func TestStartSignalRunsTest(t *testing.T) {
	b := newBench(t, time.Millisecond)
	lamp := &fakeLamp{}
	pub := &fakePub{}
	b.orch.AttachLamp(lamp)
	b.orch.AttachPublisher(pub)

	b.orch.HandleStartSignal()
	rec := b.waitRecord(t)
	b.orch.Stop()

	if rec.Status != domain.StatusPassed {
		t.Fatalf("expected Passed, got %s (%s)", rec.Status, rec.FailureReason)
	}
	if got := b.obs.count("eol_tests_started_total"); got != 1 {
		t.Fatalf("expected 1 started, got %v", got)
	}
	if got := b.obs.count("eol_tests_passed_total"); got != 1 {
		t.Fatalf("expected 1 passed, got %v", got)
	}

	lamp.mu.Lock()
	states := append([]bool(nil), lamp.states...)
	lamp.mu.Unlock()
	if len(states) != 2 || !states[0] || states[1] {
		t.Fatalf("expected lamp on then off, got %v", states)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.starts) != 1 || !strings.HasPrefix(pub.starts[0], "WF-") {
		t.Fatalf("expected one start publication with prefixed serial, got %v", pub.starts)
	}
	if len(pub.completes) != 1 || pub.completes[0].TestID != rec.TestID {
		t.Fatalf("expected completion for %s, got %v", rec.TestID, pub.completes)
	}
}

func TestConcurrentStartSignalsRunExactlyOne(t *testing.T) {
	b := newBench(t, 500*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.orch.HandleStartSignal()
		}()
	}
	wg.Wait()

	if got := b.obs.count("eol_tests_started_total"); got != 1 {
		t.Fatalf("expected exactly 1 test started, got %v", got)
	}
	if got := b.obs.count("eol_start_refused_total"); got != 9 {
		t.Fatalf("expected 9 refusals, got %v", got)
	}

	b.orch.CancelCurrent("test teardown")
	b.waitRecord(t)
	b.orch.Stop()

	select {
	case rec := <-b.done:
		t.Fatalf("unexpected extra record %s", rec.TestID)
	default:
	}
}

func TestCancelCurrentNamesReason(t *testing.T) {
	b := newBench(t, time.Second)

	b.orch.HandleStartSignal()
	waitState(t, b.orch, StateRunning)

	if !b.orch.CancelCurrent("operator cancel") {
		t.Fatalf("expected a running test to cancel")
	}
	rec := b.waitRecord(t)
	b.orch.Stop()

	if rec.Status != domain.StatusAborted {
		t.Fatalf("expected Aborted, got %s", rec.Status)
	}
	if !strings.Contains(rec.FailureReason, "operator cancel") {
		t.Fatalf("expected reason to carry the cancel cause, got %q", rec.FailureReason)
	}
	if b.power.OutputEnabled() {
		t.Fatalf("power output still enabled after cancelled test")
	}
}

func TestCancelWithNoRunningTest(t *testing.T) {
	b := newBench(t, time.Millisecond)
	if b.orch.CancelCurrent("nothing running") {
		t.Fatalf("expected false with an empty slot")
	}
}

func TestEmergencyStopOnIdleBench(t *testing.T) {
	b := newBench(t, time.Millisecond)
	b.orch.HandleEmergencyStop()
	if !b.robot.EStopped() {
		t.Fatalf("expected hardware stop even with no test running")
	}
}

func TestEmergencyStopAbortsRunningTest(t *testing.T) {
	b := newBench(t, time.Second)

	b.orch.HandleStartSignal()
	waitState(t, b.orch, StateRunning)
	b.orch.HandleEmergencyStop()

	rec := b.waitRecord(t)
	b.orch.Stop()

	if rec.Status != domain.StatusAborted {
		t.Fatalf("expected Aborted, got %s", rec.Status)
	}
	if !strings.Contains(rec.FailureReason, "emergency stop") {
		t.Fatalf("expected emergency stop reason, got %q", rec.FailureReason)
	}
	if !b.robot.EStopped() {
		t.Fatalf("expected robot emergency stop")
	}
	if got := b.obs.count("eol_tests_aborted_total"); got != 1 {
		t.Fatalf("expected 1 aborted, got %v", got)
	}
}

func TestStatusTransitions(t *testing.T) {
	b := newBench(t, 300*time.Millisecond)

	if st := b.orch.Status(); st.State != StateIdle || st.Last != nil {
		t.Fatalf("expected empty idle slot, got %+v", st)
	}

	b.orch.HandleStartSignal()
	waitState(t, b.orch, StateRunning)
	st := b.orch.Status()
	if st.TestID == "" {
		t.Fatalf("running status should carry a test id")
	}

	rec := b.waitRecord(t)
	b.orch.Stop()
	st = b.orch.Status()
	if st.State != StateTerminal || st.Last == nil || st.Last.TestID != rec.TestID {
		t.Fatalf("expected terminal status with last record, got %+v", st)
	}
	// The snapshot is a copy; mutating it must not leak back.
	st.Last.FailureReason = "scribbled"
	if b.orch.Status().Last.FailureReason == "scribbled" {
		t.Fatalf("status leaked internal record")
	}
}

func TestPublishFailureDoesNotChangeVerdict(t *testing.T) {
	b := newBench(t, time.Millisecond)
	b.orch.AttachPublisher(&fakePub{startErr: errors.New("inspection station offline")})

	b.orch.HandleStartSignal()
	rec := b.waitRecord(t)
	b.orch.Stop()

	if rec.Status != domain.StatusPassed {
		t.Fatalf("publisher failure must not affect the verdict, got %s", rec.Status)
	}
}

func waitState(t *testing.T, o *Orchestrator, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o.Status().State == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("slot never reached state %s", want)
}

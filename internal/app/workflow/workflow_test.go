package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/adapters/observability"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/adapters/sim"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/facade"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
)

type memRepo struct {
	mu           sync.Mutex
	saves        []domain.TestRecord
	failTerminal error
}

func (r *memRepo) Save(_ context.Context, rec *domain.TestRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failTerminal != nil && rec.Status.Terminal() {
		return r.failTerminal
	}
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

func (r *memRepo) terminalSaves() []domain.TestRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TestRecord
	for _, s := range r.saves {
		if s.Status.Terminal() {
			out = append(out, s)
		}
	}
	return out
}

type rig struct {
	power    *sim.Power
	loadcell *sim.LoadCell
	dio      *sim.DIO
	mcu      *sim.MCU
	robot    *sim.Robot
	hw       *facade.Facade
	repo     *memRepo
}

func newRig() *rig {
	r := &rig{
		power:    sim.NewPower(),
		loadcell: sim.NewLoadCell(),
		dio:      sim.NewDIO(),
		mcu:      sim.NewMCU(),
		robot:    sim.NewRobot(),
		repo:     &memRepo{},
	}
	r.hw = facade.New(r.power, r.loadcell, r.dio, r.mcu, r.robot, observability.Nop{}, 0)
	return r
}

func testProfile() Config {
	return Config{
		Power: PowerConfig{Voltage: 12.1, CurrentLimit: 2.0, Stabilization: time.Millisecond},
		Robot: RobotConfig{Axis: 0, TestPosition: 100_000},
		MCU:   MCUConfig{OperatingTemp: 85, BootTimeout: time.Second},
		Spec: []domain.SpecEntry{
			{Kind: domain.KindForce, Min: 45, Max: 55, Unit: domain.UnitNewton},
			{Kind: domain.KindVoltage, Min: 11.8, Max: 12.4, Unit: domain.UnitVolt},
		},
	}
}

func newWorkflow(t *testing.T, r *rig, cfg Config) *Workflow {
	t.Helper()
	w, err := New(domain.DUT{SerialNumber: "SN-100", Model: "WF-10"}, "op-1", cfg, r.hw, r.repo, observability.Nop{})
	if err != nil {
		t.Fatalf("new workflow: %v", err)
	}
	return w
}

func assertBenchQuiesced(t *testing.T, r *rig) {
	t.Helper()
	if r.power.OutputEnabled() {
		t.Fatalf("power output still enabled after execute")
	}
	if r.robot.ServoEnabled(0) {
		t.Fatalf("servo still enabled after execute")
	}
}

func TestExecuteHappyPath(t *testing.T) {
	r := newRig()
	r.loadcell.SetForce(50.2)
	w := newWorkflow(t, r, testProfile())

	rec, err := w.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if rec.Status != domain.StatusPassed {
		t.Fatalf("expected Passed, got %s (%s)", rec.Status, rec.FailureReason)
	}

	// Spec kinds are sampled in spec order; the tare metadata rides along
	// with no spec entry of its own.
	var kinds []domain.Kind
	for _, m := range rec.Measurements {
		kinds = append(kinds, m.Kind)
	}
	want := []domain.Kind{domain.KindTare, domain.KindForce, domain.KindVoltage}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, kinds)
		}
	}

	if rec.EndedAt.Before(rec.StartedAt) {
		t.Fatalf("ended_at precedes started_at")
	}
	assertBenchQuiesced(t, r)

	// One Running save, one terminal save.
	if len(r.repo.saves) != 2 {
		t.Fatalf("expected 2 saves, got %d", len(r.repo.saves))
	}
	if got := r.repo.terminalSaves(); len(got) != 1 || got[0].Status != domain.StatusPassed {
		t.Fatalf("expected exactly one terminal Passed save, got %+v", got)
	}
}

func TestExecuteSpecFailure(t *testing.T) {
	r := newRig()
	r.loadcell.SetForce(42.0)
	w := newWorkflow(t, r, testProfile())

	rec, err := w.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if rec.Status != domain.StatusFailed {
		t.Fatalf("expected Failed, got %s", rec.Status)
	}
	if !strings.Contains(rec.FailureReason, "force") || !strings.Contains(rec.FailureReason, "42.000") {
		t.Fatalf("failure reason should name force and value, got %q", rec.FailureReason)
	}
	assertBenchQuiesced(t, r)
}

func TestExecuteConnectFailure(t *testing.T) {
	r := newRig()
	r.power.FailWith("connect", errors.New("no response on port"))
	w := newWorkflow(t, r, testProfile())

	rec, err := w.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if rec.Status != domain.StatusError {
		t.Fatalf("expected Error, got %s", rec.Status)
	}
	if rec.FailedStep != StepConnect {
		t.Fatalf("expected failed step %s, got %s", StepConnect, rec.FailedStep)
	}
	if !strings.Contains(rec.FailureReason, "power") {
		t.Fatalf("failure reason should cite power, got %q", rec.FailureReason)
	}
	if r.loadcell.IsConnected() || r.dio.IsConnected() {
		t.Fatalf("expected rollback of already-connected services")
	}
	if got := r.repo.terminalSaves(); len(got) != 1 || got[0].Status != domain.StatusError {
		t.Fatalf("expected one terminal Error save, got %+v", got)
	}
}

func TestExecuteSafetyViolationAborts(t *testing.T) {
	r := newRig()
	r.power.FailWith("measure_voltage", &domain.SafetyError{Device: "power", Condition: "OVP trip"})
	w := newWorkflow(t, r, testProfile())

	rec, err := w.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if rec.Status != domain.StatusAborted {
		t.Fatalf("expected Aborted, got %s", rec.Status)
	}
	if rec.FailedStep != StepMeasure {
		t.Fatalf("expected abort at %s, got %s", StepMeasure, rec.FailedStep)
	}
	if !r.robot.EStopped() {
		t.Fatalf("expected emergency stop before cleanup")
	}
	assertBenchQuiesced(t, r)
}

func TestExecuteCancellationAborts(t *testing.T) {
	r := newRig()
	w := newWorkflow(t, r, testProfile())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := w.Execute(ctx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if rec.Status != domain.StatusAborted {
		t.Fatalf("expected Aborted, got %s", rec.Status)
	}
	assertBenchQuiesced(t, r)
	if got := r.repo.terminalSaves(); len(got) != 1 || got[0].Status != domain.StatusAborted {
		t.Fatalf("expected one terminal Aborted save, got %+v", got)
	}
}

func TestExecuteGlobalDeadline(t *testing.T) {
	r := newRig()
	cfg := testProfile()
	cfg.Timeout = 20 * time.Millisecond
	cfg.Power.Stabilization = time.Second
	w := newWorkflow(t, r, cfg)

	rec, err := w.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if rec.Status != domain.StatusAborted {
		t.Fatalf("expected deadline to abort, got %s", rec.Status)
	}
	if !strings.Contains(rec.FailureReason, "deadline") {
		t.Fatalf("expected deadline reason, got %q", rec.FailureReason)
	}
	assertBenchQuiesced(t, r)
}

func TestExecuteBubblesRepositoryConflict(t *testing.T) {
	r := newRig()
	r.repo.failTerminal = &domain.ConflictError{TestID: "t", Existing: domain.StatusPassed, Attempted: domain.StatusFailed}
	w := newWorkflow(t, r, testProfile())

	rec, err := w.Execute(context.Background())
	if err == nil {
		t.Fatalf("expected conflict to bubble")
	}
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if rec == nil || !rec.Status.Terminal() {
		t.Fatalf("expected finalized record alongside the error")
	}
	assertBenchQuiesced(t, r)
}

func TestNewRejectsUnsamplableSpecKind(t *testing.T) {
	r := newRig()
	cfg := testProfile()
	cfg.Spec = append(cfg.Spec, domain.SpecEntry{Kind: domain.KindDuration, Min: 0, Max: 1, Unit: domain.UnitSecond})

	_, err := New(domain.DUT{SerialNumber: "SN"}, "op", cfg, r.hw, r.repo, observability.Nop{})
	if err == nil {
		t.Fatalf("expected config rejection for unsamplable kind")
	}
	var ce *domain.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

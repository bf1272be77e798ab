// Package workflow runs the scripted EOL measurement sequence for a single
// DUT with guaranteed hardware cleanup on every exit path.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/facade"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

// Step labels, in script order. Exposed through CurrentStep for the status
// API and recorded on failure.
const (
	StepPrepare   = "prepare"
	StepConnect   = "connect"
	StepPowerUp   = "power_up"
	StepZero      = "zero_loadcell"
	StepHome      = "home_robot"
	StepMCUMode   = "mcu_test_mode"
	StepMeasure   = "measure"
	StepEvaluate  = "evaluate"
	StepCleanup   = "cleanup"
	StepFinalize  = "finalize"
)

const cleanupTimeout = 10 * time.Second

// sampler reads one measurement kind from the bench.
type samplerFunc func(ctx context.Context, w *Workflow) (float64, string, error)

var samplers = map[domain.Kind]samplerFunc{
	domain.KindForce: func(ctx context.Context, w *Workflow) (float64, string, error) {
		v, err := w.hw.LoadCell().ReadForce(ctx)
		return v, "loadcell", err
	},
	domain.KindVoltage: func(ctx context.Context, w *Workflow) (float64, string, error) {
		v, err := w.hw.Power().MeasureVoltage(ctx)
		return v, "power", err
	},
	domain.KindCurrent: func(ctx context.Context, w *Workflow) (float64, string, error) {
		v, err := w.hw.Power().MeasureCurrent(ctx)
		return v, "power", err
	},
	domain.KindTemperature: func(ctx context.Context, w *Workflow) (float64, string, error) {
		v, err := w.hw.MCU().ReadTemperature(ctx)
		return v, "mcu", err
	},
	domain.KindPosition: func(ctx context.Context, w *Workflow) (float64, string, error) {
		v, err := w.hw.Robot().ReadPosition(ctx, w.cfg.Robot.Axis)
		return v, fmt.Sprintf("robot.axis%d", w.cfg.Robot.Axis), err
	},
}

// Workflow is one test execution. Construct per test; Execute exactly once.
type Workflow struct {
	id       domain.TestID
	dut      domain.DUT
	operator string
	cfg      Config
	spec     *domain.Specification
	hw       *facade.Facade
	repo     ports.RecordRepository
	obs      ports.Observability

	mu   sync.Mutex
	step string
}

func New(dut domain.DUT, operator string, cfg Config, hw *facade.Facade,
	repo ports.RecordRepository, obs ports.Observability) (*Workflow, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	spec, err := domain.NewSpecification(cfg.Spec)
	if err != nil {
		return nil, err
	}
	return &Workflow{
		id:       domain.NewTestID(),
		dut:      dut,
		operator: operator,
		cfg:      cfg,
		spec:     spec,
		hw:       hw,
		repo:     repo,
		obs:      obs,
	}, nil
}

// ID is the test identifier the record will carry, known before Execute.
func (w *Workflow) ID() domain.TestID { return w.id }

// CurrentStep names the checkpoint the workflow is at.
func (w *Workflow) CurrentStep() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Workflow) setStep(s string) {
	w.mu.Lock()
	w.step = s
	w.mu.Unlock()
}

// Execute runs the scripted sequence and always returns a terminal record.
// The error is non-nil only for programmer-level failures (repository
// conflict, broken profile); hardware failures land in the record status.
func (w *Workflow) Execute(ctx context.Context) (*domain.TestRecord, error) {
	begin := time.Now()
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	w.setStep(StepPrepare)
	rec := domain.NewTestRecordWithID(w.id, w.dut, w.operator)
	if err := w.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist initial record: %w", err)
	}

	status, failStep, reason := w.run(ctx, rec)

	// Cleanup gets its own deadline: it must run even after cancellation.
	w.setStep(StepCleanup)
	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cleanupCancel()
	if err := w.cleanup(cleanupCtx); err != nil && status == domain.StatusError {
		reason = fmt.Sprintf("%s; cleanup: %v", reason, err)
	}

	w.setStep(StepFinalize)
	rec.Finalize(status, failStep, reason)
	w.obs.ObserveLatency("eol_test_duration_seconds", time.Since(begin).Seconds())

	if err := w.repo.Save(cleanupCtx, rec); err != nil {
		return rec, fmt.Errorf("persist terminal record: %w", err)
	}
	return rec, nil
}

type scriptStep struct {
	label string
	fn    func(context.Context, *domain.TestRecord) error
}

// run executes the hardware script and returns the terminal disposition.
func (w *Workflow) run(ctx context.Context, rec *domain.TestRecord) (domain.TestStatus, string, string) {
	steps := []scriptStep{
		{StepConnect, w.connectHardware},
		{StepPowerUp, w.powerUp},
		{StepZero, w.zeroLoadCell},
		{StepHome, w.homeRobot},
		{StepMCUMode, w.enterMCUTestMode},
		{StepMeasure, w.measure},
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return domain.StatusAborted, s.label, cancelReason(ctx, err)
		}
		w.setStep(s.label)
		if err := s.fn(ctx, rec); err != nil {
			return w.classify(ctx, s.label, err)
		}
	}

	// A failed verdict is a normal outcome, not an error; cancellation from
	// here on no longer changes it.
	w.setStep(StepEvaluate)
	status, reason := w.spec.Verdict(rec.Measurements)
	return status, "", reason
}

// classify maps a step failure onto the record status taxonomy. Safety
// violations fire the emergency stop before normal cleanup runs.
func (w *Workflow) classify(ctx context.Context, label string, err error) (domain.TestStatus, string, string) {
	var safety *domain.SafetyError
	if errors.As(err, &safety) {
		w.obs.LogCritical("workflow_safety_violation", err, ports.Field{Key: "step", Value: label})
		stopCtx, stopCancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer stopCancel()
		w.hw.EmergencyStopAll(stopCtx)
		return domain.StatusAborted, label, err.Error()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.StatusAborted, label, cancelReason(ctx, err)
	}
	w.obs.LogError("workflow_step_failed", err, ports.Field{Key: "step", Value: label})
	return domain.StatusError, label, fmt.Sprintf("%s: %v", label, err)
}

// cancelReason prefers the cancellation cause carried on the context, so a
// deliberate CancelCurrent names its reason in the record.
func cancelReason(ctx context.Context, err error) string {
	var c *domain.CancelledError
	if errors.As(context.Cause(ctx), &c) || errors.As(err, &c) {
		return c.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "test deadline exceeded"
	}
	return "cancelled"
}

func (w *Workflow) connectHardware(ctx context.Context, _ *domain.TestRecord) error {
	return w.hw.ConnectAll(ctx)
}

func (w *Workflow) powerUp(ctx context.Context, _ *domain.TestRecord) error {
	power := w.hw.Power()
	if err := power.SetVoltage(ctx, w.cfg.Power.Voltage); err != nil {
		return err
	}
	if err := power.SetCurrentLimit(ctx, w.cfg.Power.CurrentLimit); err != nil {
		return err
	}
	if err := power.EnableOutput(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(w.cfg.Power.Stabilization):
		return nil
	}
}

func (w *Workflow) zeroLoadCell(ctx context.Context, rec *domain.TestRecord) error {
	if err := w.hw.LoadCell().Zero(ctx); err != nil {
		return err
	}
	residual, err := w.hw.LoadCell().ReadForce(ctx)
	if err != nil {
		return err
	}
	m, err := domain.NewMeasurement(domain.KindTare, residual, domain.UnitNewton, "loadcell")
	if err != nil {
		return err
	}
	rec.Append(m)
	return nil
}

func (w *Workflow) homeRobot(ctx context.Context, _ *domain.TestRecord) error {
	robot := w.hw.Robot()
	axis := w.cfg.Robot.Axis
	if err := robot.EnableServo(ctx, axis); err != nil {
		return err
	}
	if err := robot.HomeAxis(ctx, axis); err != nil {
		return err
	}
	return robot.MoveAbsolute(ctx, axis, w.cfg.Robot.TestPosition,
		w.cfg.Robot.Velocity, w.cfg.Robot.Accel, w.cfg.Robot.Decel)
}

func (w *Workflow) enterMCUTestMode(ctx context.Context, _ *domain.TestRecord) error {
	mcu := w.hw.MCU()
	if err := mcu.SetOperatingTemperature(ctx, w.cfg.MCU.OperatingTemp); err != nil {
		return err
	}
	if err := mcu.EnterTestMode(ctx); err != nil {
		return err
	}
	return mcu.WaitForBootComplete(ctx, w.cfg.MCU.BootTimeout)
}

// measure samples every spec entry in its declared order.
func (w *Workflow) measure(ctx context.Context, rec *domain.TestRecord) error {
	for _, entry := range w.spec.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}
		sampleFn := samplers[entry.Kind]
		value, channel, err := sampleFn(ctx, w)
		if err != nil {
			return err
		}
		m, err := domain.NewMeasurement(entry.Kind, value, entry.Unit, channel)
		if err != nil {
			return err
		}
		rec.Append(m)
	}
	return nil
}

// cleanup quiesces the bench in reverse order. Every action is attempted;
// failures are logged and aggregated but never change a verdict.
func (w *Workflow) cleanup(ctx context.Context) error {
	var errs []error
	log := func(op string, err error) {
		if err != nil {
			w.obs.LogError("cleanup_failed", err, ports.Field{Key: "op", Value: op})
			errs = append(errs, fmt.Errorf("%s: %w", op, err))
		}
	}

	log("mcu_exit_test_mode", w.hw.MCU().ExitTestMode(ctx))
	log("robot_disable_servo", w.hw.Robot().DisableServo(ctx, w.cfg.Robot.Axis))
	log("power_disable_output", w.hw.Power().DisableOutput(ctx))
	log("disconnect_all", w.hw.DisconnectAll(ctx))
	return errors.Join(errs...)
}

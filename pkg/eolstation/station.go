// Package eolstation wires the full EOL test station (hardware facade,
// safety monitor, orchestrator, storage, MES publisher) behind a small
// lifecycle API so the station can be embedded in any Go service.
package eolstation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/adapters/filerepo"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/adapters/neurohub"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/adapters/observability"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/adapters/opcuaio"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/adapters/pgrepo"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/adapters/sim"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/config"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/diomon"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/facade"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/orchestrator"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

// StationOption customizes the dependencies used by Station.
type StationOption func(*stationOverrides)

type stationOverrides struct {
	power         ports.PowerService
	loadcell      ports.LoadCellService
	dio           ports.DigitalIOService
	mcu           ports.MCUService
	robot         ports.RobotService
	repo          ports.RecordRepository
	publisher     ports.ResultPublisher
	duts          ports.DUTProvider
	observability ports.Observability
}

// WithPower injects a custom power supply driver.
func WithPower(s ports.PowerService) StationOption {
	return func(o *stationOverrides) { o.power = s }
}

// WithLoadCell injects a custom load cell driver.
func WithLoadCell(s ports.LoadCellService) StationOption {
	return func(o *stationOverrides) { o.loadcell = s }
}

// WithDigitalIO injects a custom discrete I/O driver.
func WithDigitalIO(s ports.DigitalIOService) StationOption {
	return func(o *stationOverrides) { o.dio = s }
}

// WithMCU injects a custom MCU driver.
func WithMCU(s ports.MCUService) StationOption {
	return func(o *stationOverrides) { o.mcu = s }
}

// WithRobot injects a custom robot driver.
func WithRobot(s ports.RobotService) StationOption {
	return func(o *stationOverrides) { o.robot = s }
}

// WithRepository overrides the configured record store.
func WithRepository(r ports.RecordRepository) StationOption {
	return func(o *stationOverrides) { o.repo = r }
}

// WithPublisher overrides the configured MES publisher.
func WithPublisher(p ports.ResultPublisher) StationOption {
	return func(o *stationOverrides) { o.publisher = p }
}

// WithDUTProvider overrides the unit identity source.
func WithDUTProvider(d ports.DUTProvider) StationOption {
	return func(o *stationOverrides) { o.duts = d }
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs ports.Observability) StationOption {
	return func(o *stationOverrides) { o.observability = obs }
}

// Station is the assembled test station. Construct with NewStation, then
// Start/Run and Shutdown.
type Station struct {
	cfg     *config.Config
	obs     ports.Observability
	hw      *facade.Facade
	monitor *diomon.Monitor
	orch    *orchestrator.Orchestrator

	repo       ports.RecordRepository
	pub        ports.ResultPublisher
	db         *sql.DB
	fileRepo   *filerepo.Repo
	pgSchema   func(context.Context) error
	metricsSrv *http.Server
	cancel     context.CancelFunc
}

// NewStation bootstraps the default adapters per configuration (sim or OPC UA
// hardware, file or Postgres storage, optional NeuroHub publisher) and wires
// the safety monitor's callbacks into the orchestrator. StationOption values
// override any dependency.
func NewStation(cfg *config.Config, opts ...StationOption) (*Station, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides stationOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs()
	}

	s := &Station{cfg: cfg, obs: obs}

	power := overrides.power
	loadcell := overrides.loadcell
	dio := overrides.dio
	mcu := overrides.mcu
	robot := overrides.robot

	switch cfg.Hardware.Driver {
	case "opcua":
		if dio == nil {
			d, err := opcuaio.New(cfg.Hardware.OPCUA)
			if err != nil {
				return nil, err
			}
			dio = d
		}
	default:
		if dio == nil {
			dio = sim.NewDIO()
		}
	}
	if power == nil {
		power = sim.NewPower()
	}
	if loadcell == nil {
		loadcell = sim.NewLoadCell()
	}
	if mcu == nil {
		mcu = sim.NewMCU()
	}
	if robot == nil {
		robot = sim.NewRobot()
	}

	s.hw = facade.New(power, loadcell, dio, mcu, robot, obs, cfg.Test.Robot.Axis)

	repo := overrides.repo
	if repo == nil {
		switch cfg.Storage.Backend {
		case "postgres":
			db, err := sql.Open("postgres", cfg.Storage.ConnString)
			if err != nil {
				return nil, err
			}
			pg := pgrepo.New(db, cfg.Storage.Table)
			s.db = db
			s.pgSchema = pg.EnsureSchema
			repo = pg
		default:
			fr, err := filerepo.New(cfg.Storage.Dir)
			if err != nil {
				return nil, err
			}
			s.fileRepo = fr
			repo = fr
		}
	}
	s.repo = repo

	pub := overrides.publisher
	if pub == nil && cfg.NeuroHub.Enabled {
		p, err := neurohub.New(cfg.NeuroHub.Config)
		if err != nil {
			return nil, err
		}
		pub = p
	}
	s.pub = pub

	duts := overrides.duts
	if duts == nil {
		duts = orchestrator.NewFixedDUTs(cfg.Station.SerialPrefix,
			cfg.Station.Model, cfg.Station.PartNumber, cfg.Station.Operator)
	}

	s.orch = orchestrator.New(cfg.Test, s.hw, repo, duts, obs)
	if pub != nil {
		s.orch.AttachPublisher(pub)
	}

	monitor, err := diomon.New(dio, cfg.Monitor, obs,
		s.orch.HandleStartSignal, s.orch.HandleEmergencyStop)
	if err != nil {
		return nil, err
	}
	s.monitor = monitor
	if cfg.Monitor.Lamp.Enabled {
		s.orch.AttachLamp(monitor)
	}

	return s, nil
}

// Start launches the safety monitor and metrics server. It returns
// immediately; call Run to block on a context instead.
func (s *Station) Start() error {
	if s == nil {
		return fmt.Errorf("station is nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.pgSchema != nil {
		schemaCtx, done := context.WithTimeout(ctx, 10*time.Second)
		err := s.pgSchema(schemaCtx)
		done()
		if err != nil {
			cancel()
			return fmt.Errorf("ensure storage schema: %w", err)
		}
	}

	s.orch.Start(ctx)
	if err := s.monitor.Start(ctx); err != nil {
		cancel()
		return err
	}

	s.startMetrics()
	s.obs.LogInfo("station_started",
		ports.Field{Key: "station_id", Value: s.cfg.Station.ID},
		ports.Field{Key: "hardware", Value: s.cfg.Hardware.Driver},
		ports.Field{Key: "storage", Value: s.cfg.Storage.Backend})
	return nil
}

// Run starts the station and blocks until the provided context is cancelled,
// then attempts a graceful shutdown.
func (s *Station) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops signal intake, cancels any running test, quiesces the
// hardware, and closes storage and MES connections.
func (s *Station) Shutdown(ctx context.Context) error {
	var errs []error

	s.monitor.Stop()
	s.orch.Stop()

	if s.cancel != nil {
		s.cancel()
	}
	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if err := s.hw.DisconnectAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.pub != nil {
		if err := s.pub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.fileRepo != nil {
		if err := s.fileRepo.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Status reports the test slot state for CLIs and health surfaces.
func (s *Station) Status() Status { return statusFromInternal(s.orch.Status()) }

// CancelCurrent aborts the running test, if any.
func (s *Station) CancelCurrent(reason string) bool { return s.orch.CancelCurrent(reason) }

// Diagnostic reports why the last start attempt was blocked, if it was.
func (s *Station) Diagnostic() string { return s.monitor.LastDiagnostic() }

// OnRecord registers a listener for terminal test records.
func (s *Station) OnRecord(fn func(rec Record)) {
	s.orch.RegisterRecordListener(func(rec *domain.TestRecord) {
		fn(recordFromDomain(rec))
	})
}

func (s *Station) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.metricsSrv = &http.Server{
		Addr:    s.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := s.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()
}

// Package diomon polls the digital input bank, derives logical edges, and
// gates test starts behind the dual-button safety interlock.
package diomon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

// InterlockSnapshot is the logical state of every configured channel at the
// instant a dual press was detected, plus any roles in an unsafe state.
type InterlockSnapshot struct {
	TakenAt    time.Time
	Logical    map[int]bool
	Violations []Role
}

func (s InterlockSnapshot) Satisfied() bool { return len(s.Violations) == 0 }

// Monitor is the single cooperative task watching the DIO bank. It never
// propagates errors; losing button monitoring is worse than any one failed
// poll.
type Monitor struct {
	cfg     Config
	dio     ports.DigitalIOService
	obs     ports.Observability
	onStart func()
	onEStop func()

	mu            sync.Mutex
	prev          map[int]bool
	leftEdgeAt    time.Time
	rightEdgeAt   time.Time
	debounceUntil time.Time
	lastDiag      string
	started       bool
	cancel        context.CancelFunc
	wg            sync.WaitGroup

	leftCh, rightCh int
	estopCh         int
	hasEStop        bool
}

// New validates the config and binds the callbacks. startCallback fires at
// most once per satisfied dual press; estopCallback fires on every emergency
// stop edge, bypassing the press window and debounce.
func New(dio ports.DigitalIOService, cfg Config, obs ports.Observability, startCallback, estopCallback func()) (*Monitor, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Monitor{
		cfg:     cfg,
		dio:     dio,
		obs:     obs,
		onStart: startCallback,
		onEStop: estopCallback,
		prev:    make(map[int]bool),
	}
	for _, ch := range cfg.Channels {
		switch ch.Role {
		case RoleLeftStartButton:
			m.leftCh = ch.Channel
		case RoleRightStartButton:
			m.rightCh = ch.Channel
		case RoleEmergencyStop:
			m.estopCh = ch.Channel
			m.hasEStop = true
		}
	}
	return m, nil
}

// Start launches the polling loop. Calling Start twice is an error.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("dio monitor already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.started = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(loopCtx)
	return nil
}

// Stop halts polling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.started = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			begin := time.Now()
			if !m.dio.IsConnected() {
				// The bank is shared with the test workflow, whose cleanup
				// disconnects everything. Reclaim the session and resume.
				if err := m.dio.Connect(ctx); err != nil {
					m.obs.LogWarn("dio_reconnect_failed", ports.Field{Key: "err", Value: err.Error()})
					continue
				}
			}
			inputs, err := m.dio.ReadAllInputs(ctx)
			if err != nil {
				// Previous states stay untouched so a transient read
				// failure cannot fabricate edges on the next poll.
				m.obs.LogWarn("dio_read_failed", ports.Field{Key: "err", Value: err.Error()})
				continue
			}
			m.step(time.Now(), inputs)
			m.obs.ObserveLatency("eol_dio_poll_latency_seconds", time.Since(begin).Seconds())
		}
	}
}

// step runs one poll cycle against a physical input sample. Split out from
// the loop so tests can drive it with explicit timestamps.
func (m *Monitor) step(now time.Time, physical map[int]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logical := make(map[int]bool, len(m.cfg.Channels))
	edges := make(map[int]bool, len(m.cfg.Channels))

	for _, ch := range m.cfg.Channels {
		phys, sampled := physical[ch.Channel]
		if !sampled {
			continue
		}
		cur := phys
		if ch.Contact == ContactB {
			cur = !phys
		}
		logical[ch.Channel] = cur

		prev, known := m.prev[ch.Channel]
		if known {
			switch ch.Edge {
			case EdgeRising:
				edges[ch.Channel] = !prev && cur
			case EdgeFalling:
				edges[ch.Channel] = prev && !cur
			}
		}
		m.prev[ch.Channel] = cur
	}

	if m.hasEStop && edges[m.estopCh] {
		m.obs.IncCounter("eol_estop_total", 1)
		m.obs.LogCritical("emergency_stop_edge", nil)
		if m.onEStop != nil {
			m.onEStop()
		}
	}

	if now.Before(m.debounceUntil) {
		if edges[m.leftCh] || edges[m.rightCh] {
			m.obs.LogInfo("dual_press_suppressed_by_debounce")
		}
		return
	}

	// Expire press windows that ran out before recording fresh edges.
	if !m.leftEdgeAt.IsZero() && now.Sub(m.leftEdgeAt) > m.cfg.PressWindow {
		m.leftEdgeAt = time.Time{}
	}
	if !m.rightEdgeAt.IsZero() && now.Sub(m.rightEdgeAt) > m.cfg.PressWindow {
		m.rightEdgeAt = time.Time{}
	}
	if edges[m.leftCh] {
		m.leftEdgeAt = now
	}
	if edges[m.rightCh] {
		m.rightEdgeAt = now
	}

	if m.leftEdgeAt.IsZero() || m.rightEdgeAt.IsZero() {
		return
	}
	gap := m.leftEdgeAt.Sub(m.rightEdgeAt)
	if gap < 0 {
		gap = -gap
	}
	if gap > m.cfg.PressWindow {
		return
	}

	// Dual press candidate: snapshot this very poll and judge the interlock.
	snap := m.snapshotLocked(now, logical)
	m.leftEdgeAt = time.Time{}
	m.rightEdgeAt = time.Time{}
	m.debounceUntil = now.Add(m.cfg.Debounce)

	if snap.Satisfied() {
		m.lastDiag = ""
		m.obs.IncCounter("eol_dual_press_total", 1)
		m.obs.LogInfo("dual_press_accepted")
		if m.onStart != nil {
			m.onStart()
		}
		return
	}

	diag := "start blocked:"
	for _, role := range snap.Violations {
		diag += " " + string(role)
	}
	m.lastDiag = diag
	m.obs.IncCounter("eol_interlock_blocked_total", 1)
	m.obs.LogWarn("interlock_violated", ports.Field{Key: "sensors", Value: diag})
}

func (m *Monitor) snapshotLocked(now time.Time, logical map[int]bool) InterlockSnapshot {
	snap := InterlockSnapshot{TakenAt: now, Logical: make(map[int]bool, len(logical))}
	for ch, v := range logical {
		snap.Logical[ch] = v
	}
	for _, ch := range m.cfg.Channels {
		safe, isSensor := safeLogical[ch.Role]
		if !isSensor {
			continue
		}
		cur, sampled := snap.Logical[ch.Channel]
		if !sampled {
			cur = m.prev[ch.Channel]
		}
		if cur != safe {
			snap.Violations = append(snap.Violations, ch.Role)
		}
	}
	return snap
}

// LastDiagnostic returns the most recent interlock violation, empty when the
// last dual press was accepted. Surfaced on the status API.
func (m *Monitor) LastDiagnostic() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastDiag
}

// SetLamp drives the tower lamp output when one is configured.
func (m *Monitor) SetLamp(ctx context.Context, on bool) {
	if !m.cfg.Lamp.Enabled {
		return
	}
	if err := m.dio.WriteOutput(ctx, m.cfg.Lamp.Channel, on); err != nil {
		m.obs.LogWarn("lamp_write_failed", ports.Field{Key: "err", Value: err.Error()})
	}
}

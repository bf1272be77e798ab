package observability

import (
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

func NewPromObs() *PromObs {
	return newPromObs(prometheus.DefaultRegisterer)
}

// NewPromObsWithRegistry registers against a private registry, which keeps
// repeated construction in tests from panicking on duplicate collectors.
func NewPromObsWithRegistry(reg prometheus.Registerer) *PromObs {
	return newPromObs(reg)
}

func newPromObs(reg prometheus.Registerer) *PromObs {
	started := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eol_tests_started_total",
		Help: "Tests launched by the orchestrator.",
	})
	passed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eol_tests_passed_total",
		Help: "Tests that finished with a Passed verdict.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eol_tests_failed_total",
		Help: "Tests that finished with a Failed verdict.",
	})
	aborted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eol_tests_aborted_total",
		Help: "Tests aborted by cancellation or a safety violation.",
	})
	errored := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eol_tests_error_total",
		Help: "Tests that ended in Error due to hardware failures.",
	})
	dualPress := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eol_dual_press_total",
		Help: "Satisfied dual button presses observed by the DIO monitor.",
	})
	interlock := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eol_interlock_blocked_total",
		Help: "Dual presses rejected because a safety sensor was unsafe.",
	})
	estop := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eol_estop_total",
		Help: "Emergency stop edges observed.",
	})
	refused := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eol_start_refused_total",
		Help: "Start signals refused because a test was already running.",
	})
	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eol_active_tests",
		Help: "Tests currently executing (0 or 1).",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eol_test_duration_seconds",
		Help:    "Wall time of a full workflow execution.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	pollLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eol_dio_poll_latency_seconds",
		Help:    "Latency of one ReadAllInputs poll cycle.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	reg.MustRegister(started, passed, failed, aborted, errored,
		dualPress, interlock, estop, refused, active, duration, pollLatency)

	return &PromObs{
		counters: map[string]prometheus.Counter{
			"eol_tests_started_total":     started,
			"eol_tests_passed_total":      passed,
			"eol_tests_failed_total":      failed,
			"eol_tests_aborted_total":     aborted,
			"eol_tests_error_total":       errored,
			"eol_dual_press_total":        dualPress,
			"eol_interlock_blocked_total": interlock,
			"eol_estop_total":             estop,
			"eol_start_refused_total":     refused,
		},
		gauges: map[string]prometheus.Gauge{
			"eol_active_tests": active,
		},
		histos: map[string]prometheus.Observer{
			"eol_test_duration_seconds":    duration,
			"eol_dio_poll_latency_seconds": pollLatency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	log.Printf("INFO: %s%s", msg, formatFields(fields))
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	log.Printf("WARN: %s%s", msg, formatFields(fields))
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	log.Printf("ERROR: %s: %v%s", msg, err, formatFields(fields))
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	log.Printf("CRITICAL: %s: %v%s", msg, err, formatFields(fields))
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func formatFields(fields []ports.Field) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}

var _ ports.Observability = (*PromObs)(nil)

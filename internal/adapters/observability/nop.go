package observability

import "github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"

// Nop discards all logs and metrics. Handy default for tests and embedders.
type Nop struct{}

func (Nop) LogInfo(string, ...ports.Field)           {}
func (Nop) LogWarn(string, ...ports.Field)           {}
func (Nop) LogError(string, error, ...ports.Field)   {}
func (Nop) LogCritical(string, error, ...ports.Field) {}
func (Nop) IncCounter(string, float64)               {}
func (Nop) ObserveLatency(string, float64)           {}
func (Nop) SetGauge(string, float64)                 {}

var _ ports.Observability = Nop{}

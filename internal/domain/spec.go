package domain

import (
	"fmt"
	"math"
	"strings"
)

// Outcome is the result of judging one measurement against one spec entry.
type Outcome int

const (
	OutcomePass Outcome = iota
	OutcomeFail
	OutcomeInapplicable
)

func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "pass"
	case OutcomeFail:
		return "fail"
	default:
		return "inapplicable"
	}
}

// SpecEntry bounds one measurement kind. Bounds are inclusive.
type SpecEntry struct {
	Kind   Kind     `json:"kind" yaml:"kind"`
	Min    float64  `json:"min" yaml:"min"`
	Max    float64  `json:"max" yaml:"max"`
	Target *float64 `json:"target,omitempty" yaml:"target,omitempty"`
	Unit   Unit     `json:"unit" yaml:"unit"`
}

// Specification is the ordered pass/fail criteria for one test. Entry order
// is the order the workflow samples measurements in.
type Specification struct {
	entries []SpecEntry
	byKind  map[Kind]SpecEntry
}

// NewSpecification validates entries and fixes their order.
func NewSpecification(entries []SpecEntry) (*Specification, error) {
	if len(entries) == 0 {
		return nil, &ConfigError{Field: "spec", Reason: "at least one entry is required"}
	}
	byKind := make(map[Kind]SpecEntry, len(entries))
	for i, e := range entries {
		field := fmt.Sprintf("spec[%d]", i)
		want, ok := unitForKind[e.Kind]
		if !ok {
			return nil, &ConfigError{Field: field, Reason: fmt.Sprintf("unknown kind %q", e.Kind)}
		}
		if e.Unit != want {
			return nil, &ConfigError{Field: field, Reason: fmt.Sprintf("kind %s is recorded in %s, got %s", e.Kind, want, e.Unit)}
		}
		if math.IsNaN(e.Min) || math.IsInf(e.Min, 0) || math.IsNaN(e.Max) || math.IsInf(e.Max, 0) {
			return nil, &ConfigError{Field: field, Reason: "bounds must be finite"}
		}
		if e.Min > e.Max {
			return nil, &ConfigError{Field: field, Reason: fmt.Sprintf("min %g > max %g", e.Min, e.Max)}
		}
		if _, dup := byKind[e.Kind]; dup {
			return nil, &ConfigError{Field: field, Reason: fmt.Sprintf("duplicate entry for kind %s", e.Kind)}
		}
		byKind[e.Kind] = e
	}
	cp := make([]SpecEntry, len(entries))
	copy(cp, entries)
	return &Specification{entries: cp, byKind: byKind}, nil
}

// Entries returns the entries in sampling order.
func (s *Specification) Entries() []SpecEntry {
	out := make([]SpecEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Entry looks up the entry for a kind.
func (s *Specification) Entry(kind Kind) (SpecEntry, bool) {
	e, ok := s.byKind[kind]
	return e, ok
}

// Evaluate judges one measurement. Bounds are inclusive; a kind with no
// entry is Inapplicable.
func (s *Specification) Evaluate(m Measurement) Outcome {
	e, ok := s.byKind[m.Kind]
	if !ok {
		return OutcomeInapplicable
	}
	if m.Unit != e.Unit {
		return OutcomeFail
	}
	if m.Value < e.Min || m.Value > e.Max {
		return OutcomeFail
	}
	return OutcomePass
}

// Verdict computes the aggregate pass/fail over a measurement series: pass
// iff every applicable measurement passes and every entry was measured at
// least once. The reason names the violations, safe for operator display.
func (s *Specification) Verdict(ms []Measurement) (TestStatus, string) {
	seen := make(map[Kind]bool, len(s.entries))
	var reasons []string

	for _, m := range ms {
		e, ok := s.byKind[m.Kind]
		if !ok {
			continue
		}
		seen[m.Kind] = true
		if s.Evaluate(m) == OutcomeFail {
			reasons = append(reasons, fmt.Sprintf("%s %.3f %s outside [%g, %g]", m.Kind, m.Value, m.Unit, e.Min, e.Max))
		}
	}
	for _, e := range s.entries {
		if !seen[e.Kind] {
			reasons = append(reasons, fmt.Sprintf("%s was not measured", e.Kind))
		}
	}

	if len(reasons) > 0 {
		return StatusFailed, strings.Join(reasons, "; ")
	}
	return StatusPassed, ""
}

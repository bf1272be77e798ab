package domain

import "time"

// SchemaVersion is embedded in every persisted TestRecord.
const SchemaVersion = 1

// TestStatus is the lifecycle state of a test execution.
type TestStatus string

const (
	StatusRunning TestStatus = "RUNNING"
	StatusPassed  TestStatus = "PASSED"
	StatusFailed  TestStatus = "FAILED"
	StatusAborted TestStatus = "ABORTED"
	StatusError   TestStatus = "ERROR"
)

// Terminal reports whether the status ends a test's lifecycle.
func (s TestStatus) Terminal() bool { return s != StatusRunning && s != "" }

// TestRecord is the full outcome of one test execution. The workflow that
// created it is its only writer until it is handed to the repository.
type TestRecord struct {
	SchemaVersion int           `json:"schema_version"`
	TestID        TestID        `json:"test_id"`
	DUT           DUT           `json:"dut"`
	OperatorID    string        `json:"operator_id"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       time.Time     `json:"ended_at,omitempty"`
	Status        TestStatus    `json:"status"`
	Measurements  []Measurement `json:"measurements,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	FailedStep    string        `json:"failed_step,omitempty"`
}

// NewTestRecord opens a record in Running state with a fresh TestID.
func NewTestRecord(dut DUT, operatorID string) *TestRecord {
	return NewTestRecordWithID(NewTestID(), dut, operatorID)
}

// NewTestRecordWithID opens a record under a pre-allocated id, which lets
// the caller advertise the id before execution starts.
func NewTestRecordWithID(id TestID, dut DUT, operatorID string) *TestRecord {
	return &TestRecord{
		SchemaVersion: SchemaVersion,
		TestID:        id,
		DUT:           dut,
		OperatorID:    operatorID,
		StartedAt:     time.Now(),
		Status:        StatusRunning,
	}
}

// Append adds a measurement, preserving sample order.
func (r *TestRecord) Append(m Measurement) {
	r.Measurements = append(r.Measurements, m)
}

// Finalize moves the record to a terminal status and stamps EndedAt.
// EndedAt never precedes StartedAt.
func (r *TestRecord) Finalize(status TestStatus, step, reason string) {
	r.Status = status
	r.FailedStep = step
	r.FailureReason = reason
	r.EndedAt = time.Now()
	if r.EndedAt.Before(r.StartedAt) {
		r.EndedAt = r.StartedAt
	}
}

// Clone returns a deep copy safe to hand to listeners.
func (r *TestRecord) Clone() *TestRecord {
	cp := *r
	if r.Measurements != nil {
		cp.Measurements = make([]Measurement, len(r.Measurements))
		copy(cp.Measurements, r.Measurements)
	}
	return &cp
}

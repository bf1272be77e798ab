package domain

import (
	"context"
	"fmt"
)

// ConnectionError means the transport to a device could not be established or
// was lost. Retrying connect is a valid recovery.
type ConnectionError struct {
	Device string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connection failed: %v", e.Device, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// OperationError means a command to a connected device failed or timed out.
type OperationError struct {
	Device string
	Op     string
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Device, e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// SafetyError means a device reported an unsafe condition (OVP/OCP trip,
// sensor breach mid-test). It triggers an emergency stop.
type SafetyError struct {
	Device    string
	Condition string
}

func (e *SafetyError) Error() string {
	return fmt.Sprintf("%s: safety violation: %s", e.Device, e.Condition)
}

// CalibrationError means a tare, home, or boot-complete precondition failed.
type CalibrationError struct {
	Device string
	Err    error
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("%s: calibration failed: %v", e.Device, e.Err)
}

func (e *CalibrationError) Unwrap() error { return e.Err }

// ConflictError means a save would overwrite a terminal record with a
// different terminal status. It indicates a programming bug, not a hardware
// fault, and is not handled by the workflow.
type ConflictError struct {
	TestID    TestID
	Existing  TestStatus
	Attempted TestStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("test %s already persisted as %s, refusing %s", e.TestID, e.Existing, e.Attempted)
}

// ConfigError means a supplied profile or constructed value violates an
// invariant (min > max, unknown channel, unit mismatch, non-finite value).
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// CancelledError carries the operator-supplied reason for a cooperative
// cancellation. It unwraps to context.Canceled.
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string {
	if e.Reason == "" {
		return "cancelled"
	}
	return "cancelled: " + e.Reason
}

func (e *CancelledError) Unwrap() error { return context.Canceled }

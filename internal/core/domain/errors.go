package domain

import (
	"fmt"
	"time"
)

// NoCapacityError reports that no matching interface was freed within the
// request's max-wait budget. The caller may retry or drop the task.
type NoCapacityError struct {
	TaskID string
	Waited time.Duration
}

func (e *NoCapacityError) Error() string {
	return fmt.Sprintf("no capacity for task %s after %v", e.TaskID, e.Waited)
}

// InterfaceFaultError reports a mode-switch or health failure. The interface
// is quarantined (DEGRADED) and the request is not retried further.
type InterfaceFaultError struct {
	Interface string
	Err       error
}

func (e *InterfaceFaultError) Error() string {
	return fmt.Sprintf("interface %s fault: %v", e.Interface, e.Err)
}

func (e *InterfaceFaultError) Unwrap() error { return e.Err }

// ExecutorTimeoutError reports an external tool exceeding its hard budget.
// The tool is forcibly terminated and the phase counts as failed.
type ExecutorTimeoutError struct {
	Phase   AttackPhase
	Timeout time.Duration
}

func (e *ExecutorTimeoutError) Error() string {
	return fmt.Sprintf("%s executor exceeded %v", e.Phase, e.Timeout)
}

// ExecutorUnavailableError reports a missing executor binary. Non-retryable;
// the phase is disabled for the rest of the session.
type ExecutorUnavailableError struct {
	Phase  AttackPhase
	Binary string
}

func (e *ExecutorUnavailableError) Error() string {
	return fmt.Sprintf("%s executor unavailable: %s not found", e.Phase, e.Binary)
}

// SafetyInterlockTripped reports a battery/duration/policy interlock.
// New intake pauses; in-flight phases are never interrupted.
type SafetyInterlockTripped struct {
	Reason string
}

func (e *SafetyInterlockTripped) Error() string {
	return fmt.Sprintf("safety interlock tripped: %s", e.Reason)
}

// PersistenceError reports a failed snapshot write. The prior snapshot on
// disk stays valid and the orchestrator continues in memory.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure on %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

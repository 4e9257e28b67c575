package domain

import (
	"time"
)

// AttackPhase is one step of the fixed campaign order. The set and order
// are contracts the orchestrator state machine depends on, so this is a
// closed list rather than an open registry.
type AttackPhase string

const (
	PhasePMKID           AttackPhase = "PMKID"
	PhaseDeauthHandshake AttackPhase = "DEAUTH_HANDSHAKE"
	PhaseEvilTwin        AttackPhase = "EVIL_TWIN"
)

// PhaseOrder is the fixed campaign order, cheapest first.
var PhaseOrder = []AttackPhase{PhasePMKID, PhaseDeauthHandshake, PhaseEvilTwin}

// Requirement returns the lease predicate a phase needs against a target.
func (p AttackPhase) Requirement(targetChannel int) Requirement {
	switch p {
	case PhasePMKID:
		return Requirement{Monitor: true, Channel: targetChannel}
	case PhaseDeauthHandshake:
		return Requirement{Monitor: true, Injection: true, Channel: targetChannel}
	case PhaseEvilTwin:
		return Requirement{AP: true, Channel: targetChannel}
	}
	return Requirement{Monitor: true}
}

// TaskType maps a phase onto the scheduler's task taxonomy.
func (p AttackPhase) TaskType() TaskType {
	switch p {
	case PhaseDeauthHandshake:
		return TaskDeauth
	case PhaseEvilTwin:
		return TaskInject
	}
	return TaskCapture
}

// AttackOutcome classifies how a phase ended.
type AttackOutcome string

const (
	OutcomeSuccess     AttackOutcome = "SUCCESS"
	OutcomeFailed      AttackOutcome = "FAILED"
	OutcomeTimeout     AttackOutcome = "TIMEOUT"
	OutcomeNoCapacity  AttackOutcome = "NO_CAPACITY"
	OutcomeUnavailable AttackOutcome = "UNAVAILABLE"
	OutcomeCancelled   AttackOutcome = "CANCELLED"
)

// AttackAttempt is one row of the append-only audit trail.
type AttackAttempt struct {
	ID        string        `json:"id"`
	TargetID  string        `json:"target_id"`
	Phase     AttackPhase   `json:"phase"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Outcome   AttackOutcome `json:"outcome"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Artifact  string        `json:"artifact,omitempty"`
}

// Artifact is a handle to capture material produced by an executor.
type Artifact struct {
	Path     string      `json:"path"`
	Kind     AttackPhase `json:"kind"`
	TargetID string      `json:"target_id"`
}

// CrackResult is delivered asynchronously by the cracking engine.
type CrackResult struct {
	JobID    string `json:"job_id"`
	TargetID string `json:"target_id"`
	Cracked  bool   `json:"cracked"`
	Key      string `json:"key,omitempty"`
}

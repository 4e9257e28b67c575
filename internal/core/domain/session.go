package domain

import (
	"time"
)

// SnapshotVersion is bumped whenever the persisted layout changes shape.
const SnapshotVersion = 1

// SessionCounters aggregates campaign statistics for one session.
type SessionCounters struct {
	TargetsDiscovered   int `json:"targets_discovered"`
	TargetsCaptured     int `json:"targets_captured"`
	TargetsExhausted    int `json:"targets_exhausted"`
	AttacksTotal        int `json:"attacks_total"`
	AttacksSucceeded    int `json:"attacks_succeeded"`
	AttacksFailed       int `json:"attacks_failed"`
	PMKIDsCaptured      int `json:"pmkids_captured"`
	HandshakesCaptured  int `json:"handshakes_captured"`
	CredentialsCaptured int `json:"credentials_captured"`
	KeysCracked         int `json:"keys_cracked"`
}

// SessionSnapshot is the durable, crash-safe image of orchestrator state.
// Every mutation is routed through the orchestrator's applyTransition so
// each persisted point is internally consistent.
type SessionSnapshot struct {
	Version   int             `json:"version"`
	SessionID string          `json:"session_id"`
	StartedAt time.Time       `json:"started_at"`
	SavedAt   time.Time       `json:"saved_at"`
	Counters  SessionCounters `json:"counters"`
	Targets   []Target        `json:"targets"`
}

// EmptySnapshot returns a fresh snapshot for a new session.
func EmptySnapshot(sessionID string, startedAt time.Time) SessionSnapshot {
	return SessionSnapshot{
		Version:   SnapshotVersion,
		SessionID: sessionID,
		StartedAt: startedAt,
	}
}

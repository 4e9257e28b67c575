package domain

import (
	"time"
)

// SecurityType is the advertised security of an access point.
type SecurityType string

const (
	SecurityOpen SecurityType = "OPEN"
	SecurityWEP  SecurityType = "WEP"
	SecurityWPA2 SecurityType = "WPA2"
	SecurityWPA3 SecurityType = "WPA3"
)

// TargetState is the campaign state machine of a discovered access point.
type TargetState string

const (
	TargetNew       TargetState = "NEW"
	TargetAttacking TargetState = "ATTACKING"
	TargetCooldown  TargetState = "COOLDOWN"
	TargetCaptured  TargetState = "CAPTURED"  // terminal
	TargetExhausted TargetState = "EXHAUSTED" // terminal
)

// Terminal reports whether no further campaign work is allowed.
func (s TargetState) Terminal() bool {
	return s == TargetCaptured || s == TargetExhausted
}

// Target is a discovered access point and the orchestrator's campaign
// record for it. Mutated exclusively by the orchestrator loop.
type Target struct {
	BSSID    string       `json:"bssid"`
	SSID     string       `json:"ssid"`
	Channel  int          `json:"channel"`
	Signal   int          `json:"signal_dbm"`
	Security SecurityType `json:"security"`

	// HasClients is set when station traffic tied to this AP was observed.
	HasClients bool `json:"has_clients"`

	State TargetState `json:"state"`
	Phase AttackPhase `json:"phase,omitempty"` // meaningful while ATTACKING

	Attempts      int       `json:"attempts"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
	CooldownUntil time.Time `json:"cooldown_until"`

	// Artifact references the captured handshake/PMKID/credential handle.
	Artifact string `json:"artifact,omitempty"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	Score int `json:"score"` // recomputed every scan tick
}

// Ready reports whether the target may enter a new campaign at the given time.
func (t *Target) Ready(now time.Time) bool {
	if t.State.Terminal() || t.State == TargetAttacking {
		return false
	}
	if t.State == TargetCooldown && now.Before(t.CooldownUntil) {
		return false
	}
	return true
}

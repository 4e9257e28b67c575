package orchestrator

import (
	"fmt"
	"time"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
)

// score ranks a target for attack ordering. Stronger signal, active
// clients and crackable security raise the score; prior failed attempts
// lower it.
func (o *Orchestrator) score(t *domain.Target) int {
	// Signal is dBm, so -30 (excellent) scores higher than -80 (weak).
	s := 100 + t.Signal

	if t.HasClients {
		s += 20
	}

	switch t.Security {
	case domain.SecurityWPA2:
		s += 15
	case domain.SecurityWEP:
		s += 10
	case domain.SecurityWPA3:
		if o.cfg.AllowDowngrade {
			s += 5
		} else {
			s -= 10
		}
	case domain.SecurityOpen:
		// Nothing to capture on an open network.
		s -= 40
	}

	s -= 10 * t.Attempts
	return s
}

// pickNext returns the highest-scoring target that is ready to attack, or
// nil when none qualifies. Blacklist, whitelist and the minimum-signal
// floor are applied here so they never interrupt a running campaign.
func (o *Orchestrator) pickNext(now time.Time) *domain.Target {
	var best *domain.Target
	bestScore := 0

	for _, t := range o.targets {
		if !t.Ready(now) {
			continue
		}
		if _, running := o.running[t.BSSID]; running {
			continue
		}
		if o.blacklist[t.BSSID] {
			continue
		}
		if len(o.whitelist) > 0 && !o.whitelist[t.BSSID] {
			continue
		}
		if t.Signal < o.cfg.MinSignalDBm {
			continue
		}

		sc := o.score(t)
		if best == nil || sc > bestScore {
			best = t
			bestScore = sc
		}
	}
	if best != nil {
		best.Score = bestScore
	}
	return best
}

// checkInterlocks gates new campaign intake. It returns a
// *domain.SafetyInterlockTripped describing the first tripped condition,
// or nil when intake may proceed.
func (o *Orchestrator) checkInterlocks() error {
	if o.power != nil && o.cfg.MinBattery > 0 {
		if pct := o.power.BatteryPercent(); pct < o.cfg.MinBattery {
			return &domain.SafetyInterlockTripped{
				Reason: fmt.Sprintf("battery %d%% below %d%% floor", pct, o.cfg.MinBattery),
			}
		}
	}
	if o.cfg.MaxSessionTime > 0 && time.Since(o.startedAt) >= o.cfg.MaxSessionTime {
		return &domain.SafetyInterlockTripped{
			Reason: fmt.Sprintf("session exceeded %s budget", o.cfg.MaxSessionTime),
		}
	}
	return nil
}

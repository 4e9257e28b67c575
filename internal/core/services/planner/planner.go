// Package planner holds the pure channel-selection logic consulted by the
// scheduler. It has no side effects and touches no hardware.
package planner

import (
	"errors"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
)

// Domain errors for channel planning.
var (
	ErrChannelUnsupported = errors.New("requested channel not supported by interface")
	ErrDFSNotCertified    = errors.New("DFS channel requested on non-certified interface")
	ErrNoUsableChannel    = errors.New("no usable channel on interface")
)

// Config carries the operator's channel preferences.
type Config struct {
	// TargetChannels are scanned first, in order.
	TargetChannels []int
	// PreferredChannel is the first fallback for single-channel picks.
	PreferredChannel int
}

// Planner computes hop sequences and single-channel picks.
type Planner struct {
	cfg Config
}

// New creates a Planner with the given preferences.
func New(cfg Config) *Planner {
	return &Planner{cfg: cfg}
}

// HopSequence returns the ordered, cyclic channel list for scanning on the
// given interface: configured target channels first (filtered to what the
// hardware supports), then the remainder with non-DFS channels ahead of DFS.
// DFS channels are excluded entirely for non-certified hardware. The caller
// cycles the slice by index, so the sequence is restartable for free.
func (p *Planner) HopSequence(iface domain.RadioInterface, purpose domain.TaskType) []int {
	caps := iface.Capabilities
	seen := make(map[int]bool)
	var seq []int

	add := func(ch int) {
		if seen[ch] || !caps.SupportsChannel(ch) {
			return
		}
		if domain.IsDFSChannel(ch) && !caps.DFSCertified {
			return
		}
		seen[ch] = true
		seq = append(seq, ch)
	}

	for _, ch := range p.cfg.TargetChannels {
		add(ch)
	}

	// Remainder: minimize DFS exposure by visiting non-DFS channels first.
	for _, ch := range caps.Channels24 {
		add(ch)
	}
	for _, ch := range caps.Channels5 {
		if !domain.IsDFSChannel(ch) {
			add(ch)
		}
	}
	for _, ch := range caps.Channels5 {
		add(ch)
	}

	return seq
}

// BestChannel picks a single channel for CAPTURE/MONITOR/INJECT leases.
// Order: explicit requested channel if supported, configured preferred
// channel, first non-DFS 5GHz channel, 2.4GHz channel 6 fallback.
//
// An explicit DFS channel on a non-certified interface is a contract
// violation by the caller and returns ErrDFSNotCertified, never a fallback.
func (p *Planner) BestChannel(iface domain.RadioInterface, explicit int) (int, error) {
	caps := iface.Capabilities

	if explicit != 0 {
		if !caps.SupportsChannel(explicit) {
			return 0, ErrChannelUnsupported
		}
		if domain.IsDFSChannel(explicit) && !caps.DFSCertified {
			return 0, ErrDFSNotCertified
		}
		return explicit, nil
	}

	if p.cfg.PreferredChannel != 0 && caps.UsableChannel(p.cfg.PreferredChannel) {
		return p.cfg.PreferredChannel, nil
	}

	for _, ch := range caps.Channels5 {
		if !domain.IsDFSChannel(ch) {
			return ch, nil
		}
	}

	if caps.SupportsChannel(6) {
		return 6, nil
	}
	if len(caps.Channels24) > 0 {
		return caps.Channels24[0], nil
	}

	return 0, ErrNoUsableChannel
}

package domain

import (
	"errors"
	"time"
)

// WiFiBand represents a typed string for frequency bands.
type WiFiBand string

const (
	Band24GHz WiFiBand = "2.4GHz"
	Band5GHz  WiFiBand = "5GHz"
)

// InterfaceMode is the operating mode of a radio interface.
type InterfaceMode string

const (
	ModeManaged InterfaceMode = "managed"
	ModeMonitor InterfaceMode = "monitor"
	ModeAP      InterfaceMode = "ap"
	ModeUnknown InterfaceMode = "unknown"
)

// InterfaceStatus is the scheduler-owned lifecycle state of an interface.
type InterfaceStatus string

const (
	InterfaceFree     InterfaceStatus = "FREE"
	InterfaceLeased   InterfaceStatus = "LEASED"
	InterfaceDegraded InterfaceStatus = "DEGRADED"
)

// Domain errors for radio interfaces.
var (
	ErrInvalidInterfaceName = errors.New("invalid interface name")
	ErrUnknownInterface     = errors.New("unknown interface")
)

// dfsChannels is the 5GHz UNII-2/UNII-2e set subject to radar detection.
var dfsChannels = map[int]bool{
	52: true, 56: true, 60: true, 64: true,
	100: true, 104: true, 108: true, 112: true, 116: true, 120: true,
	124: true, 128: true, 132: true, 136: true, 140: true, 144: true,
}

// IsDFSChannel reports whether a 5GHz channel requires DFS certification.
func IsDFSChannel(ch int) bool {
	return dfsChannels[ch]
}

// InterfaceCapabilities describes what a radio adapter can physically do.
type InterfaceCapabilities struct {
	Bands             []WiFiBand `json:"bands"`
	Channels24        []int      `json:"channels_24ghz"`
	Channels5         []int      `json:"channels_5ghz"`
	DFSCertified      bool       `json:"dfs_certified"`
	SupportsMonitor   bool       `json:"supports_monitor"`
	SupportsInjection bool       `json:"supports_injection"`
	SupportsAP        bool       `json:"supports_ap"`
}

// SupportsChannel reports whether the adapter can tune to the given channel.
func (c InterfaceCapabilities) SupportsChannel(ch int) bool {
	for _, v := range c.Channels24 {
		if v == ch {
			return true
		}
	}
	for _, v := range c.Channels5 {
		if v == ch {
			return true
		}
	}
	return false
}

// SupportsBand reports whether the adapter operates on the given band.
func (c InterfaceCapabilities) SupportsBand(b WiFiBand) bool {
	for _, v := range c.Bands {
		if v == b {
			return true
		}
	}
	return false
}

// UsableChannel reports whether the adapter may legally use the channel:
// supported, and if the channel is DFS the adapter must be certified.
func (c InterfaceCapabilities) UsableChannel(ch int) bool {
	if !c.SupportsChannel(ch) {
		return false
	}
	if IsDFSChannel(ch) && !c.DFSCertified {
		return false
	}
	return true
}

// RadioInterface represents one physical radio adapter and its scheduler state.
// Mutated only inside the scheduler loop.
type RadioInterface struct {
	Name         string                `json:"name"`
	Phy          string                `json:"phy"`
	MAC          string                `json:"mac"`
	Mode         InterfaceMode         `json:"mode"`
	Channel      int                   `json:"channel"`
	Status       InterfaceStatus       `json:"status"`
	Capabilities InterfaceCapabilities `json:"capabilities"`

	// LastReleased feeds least-recently-used tie-breaking.
	LastReleased time.Time `json:"last_released"`
}

// HotplugKind discriminates hotplug events.
type HotplugKind string

const (
	HotplugAdded   HotplugKind = "added"
	HotplugRemoved HotplugKind = "removed"
)

// HotplugEvent is emitted by the hardware watcher when adapters come and go.
type HotplugEvent struct {
	Kind      HotplugKind
	Name      string
	Interface *RadioInterface // populated for Added when the probe succeeded
}

package hardware

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultPowerSupplyPath = "/sys/class/power_supply"

// Battery reads charge level from sysfs. It implements ports.PowerSource.
// Hosts without a battery (bench rigs on mains power) report 100.
type Battery struct {
	path string
}

// NewBattery reads from /sys/class/power_supply.
func NewBattery() *Battery {
	return &Battery{path: defaultPowerSupplyPath}
}

// NewBatteryAt reads from an alternate directory. Used by tests.
func NewBatteryAt(path string) *Battery {
	return &Battery{path: path}
}

// BatteryPercent returns the lowest capacity among present batteries, or
// 100 when none is found.
func (b *Battery) BatteryPercent() int {
	entries, err := os.ReadDir(b.path)
	if err != nil {
		return 100
	}

	lowest := -1
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "BAT") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(b.path, entry.Name(), "capacity"))
		if err != nil {
			continue
		}
		pct, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			continue
		}
		if lowest < 0 || pct < lowest {
			lowest = pct
		}
	}
	if lowest < 0 {
		return 100
	}
	return lowest
}

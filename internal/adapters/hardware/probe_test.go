package hardware

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const iwDevOutput = `phy#0
	Interface wlan0
		ifindex 3
		wdev 0x1
		addr aa:bb:cc:dd:ee:ff
		type managed
		channel 6 (2437 MHz), width: 20 MHz, center1: 2437 MHz
phy#1
	Interface wlan1
		ifindex 4
		wdev 0x100000001
		addr 11:22:33:44:55:66
		type monitor
`

const phyInfoOutput = `Wiphy phy0
	Supported interface modes:
		 * managed
		 * AP
		 * monitor
	Band 1:
		Frequencies:
			* 2412 MHz [1] (20.0 dBm)
			* 2437 MHz [6] (20.0 dBm)
			* 2462 MHz [11] (20.0 dBm)
			* 2484 MHz [14] (disabled)
	Band 2:
		Frequencies:
			* 5180 MHz [36] (22.0 dBm)
			* 5200 MHz [40] (22.0 dBm)
			* 5260 MHz [52] (20.0 dBm) (radar detection)
			* 5745 MHz [149] (30.0 dBm)
	Supported commands:
		 * new_interface
`

const phyInfoNoDFSOutput = `Wiphy phy1
	Supported interface modes:
		 * managed
		 * monitor
	Band 1:
		Frequencies:
			* 2412 MHz [1] (20.0 dBm)
			* 2437 MHz [6] (20.0 dBm)
	Band 2:
		Frequencies:
			* 5180 MHz [36] (22.0 dBm)
			* 5260 MHz [52] (20.0 dBm) (disabled)
`

func TestParseIwDev(t *testing.T) {
	ifaces := parseIwDev([]byte(iwDevOutput))
	require.Len(t, ifaces, 2)

	assert.Equal(t, "wlan0", ifaces[0].Name)
	assert.Equal(t, "phy0", ifaces[0].Phy)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", ifaces[0].MAC)
	assert.Equal(t, domain.ModeManaged, ifaces[0].Mode)
	assert.Equal(t, 6, ifaces[0].Channel)

	assert.Equal(t, "wlan1", ifaces[1].Name)
	assert.Equal(t, "phy1", ifaces[1].Phy)
	assert.Equal(t, domain.ModeMonitor, ifaces[1].Mode)
}

func TestParsePhyInfo(t *testing.T) {
	caps := parsePhyInfo([]byte(phyInfoOutput))

	assert.True(t, caps.SupportsMonitor)
	assert.True(t, caps.SupportsInjection)
	assert.True(t, caps.SupportsAP)
	assert.True(t, caps.DFSCertified)

	assert.Equal(t, []int{1, 6, 11}, caps.Channels24, "disabled channel 14 excluded")
	assert.Equal(t, []int{36, 40, 52, 149}, caps.Channels5)
	assert.ElementsMatch(t, []domain.WiFiBand{domain.Band24GHz, domain.Band5GHz}, caps.Bands)
}

func TestParsePhyInfo_NoDFS(t *testing.T) {
	caps := parsePhyInfo([]byte(phyInfoNoDFSOutput))

	assert.True(t, caps.SupportsMonitor)
	assert.False(t, caps.SupportsAP)
	assert.False(t, caps.DFSCertified, "disabled radar channels mean no DFS certification")
	assert.Equal(t, []int{36}, caps.Channels5, "disabled DFS channel excluded")
}

func TestBatteryPercent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "BAT0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BAT0", "capacity"), []byte("42\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "AC"), 0o755))

	b := NewBatteryAt(dir)
	assert.Equal(t, 42, b.BatteryPercent())
}

func TestBatteryPercent_NoBattery(t *testing.T) {
	b := NewBatteryAt(t.TempDir())
	assert.Equal(t, 100, b.BatteryPercent())
}

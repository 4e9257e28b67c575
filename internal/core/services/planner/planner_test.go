package planner

import (
	"testing"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIface(dfsCertified bool) domain.RadioInterface {
	return domain.RadioInterface{
		Name: "wlan0",
		Capabilities: domain.InterfaceCapabilities{
			Bands:        []domain.WiFiBand{domain.Band24GHz, domain.Band5GHz},
			Channels24:   []int{1, 6, 11},
			Channels5:    []int{36, 40, 52, 100, 149},
			DFSCertified: dfsCertified,
		},
	}
}

func TestHopSequence_TargetChannelsFirst(t *testing.T) {
	p := New(Config{TargetChannels: []int{6, 36}})
	seq := p.HopSequence(testIface(true), domain.TaskScan)

	require.GreaterOrEqual(t, len(seq), 2)
	assert.Equal(t, []int{6, 36}, seq[:2])
}

func TestHopSequence_NonDFSBeforeDFS(t *testing.T) {
	p := New(Config{})
	seq := p.HopSequence(testIface(true), domain.TaskScan)

	dfsSeen := false
	for _, ch := range seq {
		if domain.IsDFSChannel(ch) {
			dfsSeen = true
		} else {
			assert.False(t, dfsSeen, "non-DFS channel %d scheduled after a DFS channel", ch)
		}
	}
	assert.Contains(t, seq, 52)
	assert.Contains(t, seq, 100)
}

func TestHopSequence_NoDFSWithoutCertification(t *testing.T) {
	p := New(Config{TargetChannels: []int{52}})
	seq := p.HopSequence(testIface(false), domain.TaskScan)

	for _, ch := range seq {
		assert.False(t, domain.IsDFSChannel(ch), "DFS channel %d on non-certified hardware", ch)
	}
}

func TestHopSequence_NoDuplicates(t *testing.T) {
	p := New(Config{TargetChannels: []int{1, 6, 1}})
	seq := p.HopSequence(testIface(true), domain.TaskScan)

	seen := map[int]bool{}
	for _, ch := range seq {
		assert.False(t, seen[ch], "duplicate channel %d", ch)
		seen[ch] = true
	}
}

func TestBestChannel_ExplicitWins(t *testing.T) {
	p := New(Config{PreferredChannel: 11})

	ch, err := p.BestChannel(testIface(true), 149)
	require.NoError(t, err)
	assert.Equal(t, 149, ch)
}

func TestBestChannel_ExplicitUnsupported(t *testing.T) {
	p := New(Config{})

	_, err := p.BestChannel(testIface(true), 64)
	assert.ErrorIs(t, err, ErrChannelUnsupported)
}

func TestBestChannel_DFSContractViolation(t *testing.T) {
	p := New(Config{})

	_, err := p.BestChannel(testIface(false), 52)
	assert.ErrorIs(t, err, ErrDFSNotCertified)

	// Certified hardware is allowed to take the same channel.
	ch, err := p.BestChannel(testIface(true), 52)
	require.NoError(t, err)
	assert.Equal(t, 52, ch)
}

func TestBestChannel_PreferredFallback(t *testing.T) {
	p := New(Config{PreferredChannel: 11})

	ch, err := p.BestChannel(testIface(true), 0)
	require.NoError(t, err)
	assert.Equal(t, 11, ch)
}

func TestBestChannel_FirstNonDFS5GHz(t *testing.T) {
	p := New(Config{})

	ch, err := p.BestChannel(testIface(true), 0)
	require.NoError(t, err)
	assert.Equal(t, 36, ch)
}

func TestBestChannel_Channel6Fallback(t *testing.T) {
	p := New(Config{})
	iface := domain.RadioInterface{
		Capabilities: domain.InterfaceCapabilities{
			Bands:      []domain.WiFiBand{domain.Band24GHz},
			Channels24: []int{1, 6, 11},
		},
	}

	ch, err := p.BestChannel(iface, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, ch)
}

func TestBestChannel_NeverDFSForUncertified(t *testing.T) {
	// Interface whose only 5GHz channels are DFS: the pick must fall back
	// to 2.4GHz rather than select a DFS channel.
	p := New(Config{})
	iface := domain.RadioInterface{
		Capabilities: domain.InterfaceCapabilities{
			Bands:      []domain.WiFiBand{domain.Band24GHz, domain.Band5GHz},
			Channels24: []int{1, 6, 11},
			Channels5:  []int{52, 100},
		},
	}

	ch, err := p.BestChannel(iface, 0)
	require.NoError(t, err)
	assert.False(t, domain.IsDFSChannel(ch))
}

func TestBestChannel_NoUsableChannel(t *testing.T) {
	p := New(Config{})
	iface := domain.RadioInterface{}

	_, err := p.BestChannel(iface, 0)
	assert.ErrorIs(t, err, ErrNoUsableChannel)
}

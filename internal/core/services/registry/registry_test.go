package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProbe struct {
	mu        sync.Mutex
	ifaces    []domain.RadioInterface
	failFirst bool
}

func (m *mockProbe) List(ctx context.Context) ([]domain.RadioInterface, error) {
	return m.ifaces, nil
}

func (m *mockProbe) Describe(ctx context.Context, name string) (*domain.RadioInterface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFirst {
		m.failFirst = false
		return nil, errors.New("sysfs not ready")
	}
	for _, iface := range m.ifaces {
		if iface.Name == name {
			out := iface
			return &out, nil
		}
	}
	return nil, errors.New("no such interface")
}

type mockWatcher struct {
	events chan domain.HotplugEvent
}

func (m *mockWatcher) Watch(ctx context.Context) (<-chan domain.HotplugEvent, error) {
	return m.events, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.HotplugEvent
}

func (s *recordingSink) HandleHotplug(ev domain.HotplugEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) snapshot() []domain.HotplugEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.HotplugEvent(nil), s.events...)
}

func monitorIface(name string) domain.RadioInterface {
	return domain.RadioInterface{
		Name: name,
		Phy:  "phy0",
		Capabilities: domain.InterfaceCapabilities{
			Bands:           []domain.WiFiBand{domain.Band24GHz},
			Channels24:      []int{1, 6, 11},
			SupportsMonitor: true,
		},
	}
}

func TestDiscover(t *testing.T) {
	probe := &mockProbe{ifaces: []domain.RadioInterface{monitorIface("wlan0"), monitorIface("wlan1")}}
	r := New(probe, &mockWatcher{})

	ifaces, err := r.Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, ifaces, 2)
}

func TestHotplugAddFillsCapabilities(t *testing.T) {
	probe := &mockProbe{ifaces: []domain.RadioInterface{monitorIface("wlan0")}}
	watcher := &mockWatcher{events: make(chan domain.HotplugEvent, 1)}
	sink := &recordingSink{}

	r := New(probe, watcher)
	r.SetSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// Event arrives without the capability record; the registry must
	// probe before forwarding.
	watcher.events <- domain.HotplugEvent{Kind: domain.HotplugAdded, Name: "wlan0"}

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	ev := sink.snapshot()[0]
	require.NotNil(t, ev.Interface)
	assert.True(t, ev.Interface.Capabilities.SupportsMonitor)
}

func TestHotplugAddRetriesProbe(t *testing.T) {
	probe := &mockProbe{ifaces: []domain.RadioInterface{monitorIface("wlan0")}, failFirst: true}
	watcher := &mockWatcher{events: make(chan domain.HotplugEvent, 1)}
	sink := &recordingSink{}

	r := New(probe, watcher)
	r.describeRetry = 10 * time.Millisecond
	r.SetSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	watcher.events <- domain.HotplugEvent{Kind: domain.HotplugAdded, Name: "wlan0"}

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.NotNil(t, sink.snapshot()[0].Interface)
}

func TestHotplugUnknownAdapterDropped(t *testing.T) {
	probe := &mockProbe{}
	watcher := &mockWatcher{events: make(chan domain.HotplugEvent, 2)}
	sink := &recordingSink{}

	r := New(probe, watcher)
	r.describeRetry = time.Millisecond
	r.SetSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	watcher.events <- domain.HotplugEvent{Kind: domain.HotplugAdded, Name: "ghost0"}
	watcher.events <- domain.HotplugEvent{Kind: domain.HotplugRemoved, Name: "wlan9"}

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	// Only the remove made it through; the unprobeable add was dropped.
	assert.Equal(t, domain.HotplugRemoved, sink.snapshot()[0].Kind)
}

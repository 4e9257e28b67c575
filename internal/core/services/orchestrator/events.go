package orchestrator

import (
	"sync"
	"time"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
)

// EventKind labels a campaign event on the live feed.
type EventKind string

const (
	EventTargetFound     EventKind = "target_found"
	EventPhaseStarted    EventKind = "phase_started"
	EventPhaseResult     EventKind = "phase_result"
	EventTargetCaptured  EventKind = "target_captured"
	EventTargetExhausted EventKind = "target_exhausted"
	EventKeyCracked      EventKind = "key_cracked"
)

// Event is one entry on the campaign feed, consumed by the websocket
// status surface.
type Event struct {
	Kind    EventKind            `json:"kind"`
	Target  string               `json:"target"`
	SSID    string               `json:"ssid,omitempty"`
	Phase   domain.AttackPhase   `json:"phase,omitempty"`
	Outcome domain.AttackOutcome `json:"outcome,omitempty"`
	At      time.Time            `json:"at"`
}

// feed fans events out to subscribers. Slow subscribers lose events rather
// than stalling the coordinator.
type feed struct {
	mu     sync.Mutex
	subs   map[<-chan Event]chan Event
	closed bool
}

func newFeed() *feed {
	return &feed{subs: make(map[<-chan Event]chan Event)}
}

func (f *feed) subscribe() <-chan Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan Event, 32)
	if f.closed {
		close(ch)
		return ch
	}
	f.subs[ch] = ch
	return ch
}

func (f *feed) unsubscribe(ch <-chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub, ok := f.subs[ch]; ok {
		delete(f.subs, ch)
		close(sub)
	}
}

func (f *feed) publish(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for key, sub := range f.subs {
		delete(f.subs, key)
		close(sub)
	}
}

package ports

import (
	"context"
	"time"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
)

// Probe is the OS-level hardware query used by the interface registry.
// Failures degrade to "interface unknown" and never crash the scheduler.
type Probe interface {
	// List enumerates wireless adapters with their capability records.
	List(ctx context.Context) ([]domain.RadioInterface, error)
	// Describe queries a single adapter by name.
	Describe(ctx context.Context, name string) (*domain.RadioInterface, error)
}

// Watcher produces a lazy, restartable stream of hotplug events.
type Watcher interface {
	Watch(ctx context.Context) (<-chan domain.HotplugEvent, error)
}

// ModeSwitcher performs the down/set-type/up/set-channel dance on an
// adapter, plus a cheap health probe. Called only from the scheduler loop.
type ModeSwitcher interface {
	SetMode(ctx context.Context, iface string, mode domain.InterfaceMode) error
	SetChannel(ctx context.Context, iface string, channel int) error
	Probe(ctx context.Context, iface string) error
}

// Scheduler is the lease-granting surface other components consume.
type Scheduler interface {
	Request(ctx context.Context, task domain.Task) (*domain.Lease, error)
	Release(lease *domain.Lease)
	Cancel(lease *domain.Lease)
}

// CaptureExecutor drives the external RF capture tool for PMKID and
// deauth/handshake phases.
type CaptureExecutor interface {
	Capture(ctx context.Context, lease *domain.Lease, phase domain.AttackPhase, target domain.Target, timeout time.Duration) (domain.Artifact, error)
}

// EvilTwinExecutor drives the external rogue-AP tool.
type EvilTwinExecutor interface {
	Clone(ctx context.Context, lease *domain.Lease, target domain.Target, timeout time.Duration) (domain.Artifact, error)
}

// CrackingEngine accepts artifacts fire-and-forget; results arrive later
// through the subscribed callback, never synchronously.
type CrackingEngine interface {
	Submit(artifact domain.Artifact) (jobID string, err error)
	Subscribe(fn func(domain.CrackResult))
}

// ScannerSink is implemented by the orchestrator; the external scanner
// pushes discovered targets into it.
type ScannerSink interface {
	Observe(targets []domain.Target)
}

// SessionStore persists orchestrator state crash-safely.
type SessionStore interface {
	Save(snap domain.SessionSnapshot) error
	Load(sessionID string) (domain.SessionSnapshot, error)
	List() ([]string, error)
}

// AttemptSink records the append-only attack audit trail.
type AttemptSink interface {
	AppendAttempt(ctx context.Context, attempt domain.AttackAttempt) error
	ListAttempts(ctx context.Context, targetID string) ([]domain.AttackAttempt, error)
}

// PowerSource reports battery charge for safety interlocks.
type PowerSource interface {
	// BatteryPercent returns 0-100, or 100 when no battery is present.
	BatteryPercent() int
}

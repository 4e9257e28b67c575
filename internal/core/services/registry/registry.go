package registry

import (
	"context"
	"log"
	"time"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
	"github.com/lcalzada-xor/wpilot/internal/core/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// HotplugSink receives interface add/remove notifications. Implemented by
// the task scheduler.
type HotplugSink interface {
	HandleHotplug(ev domain.HotplugEvent)
}

// Registry discovers wireless adapters at startup and keeps the scheduler's
// interface table in sync with hardware hotplug events.
type Registry struct {
	probe   ports.Probe
	watcher ports.Watcher
	sink    HotplugSink

	// describeRetry bounds the wait for sysfs to settle after a hotplug
	// add before the capability probe is attempted again.
	describeRetry time.Duration
}

// New creates a registry. The sink may be nil until SetSink is called,
// which allows the scheduler to be constructed from Discover's result first.
func New(probe ports.Probe, watcher ports.Watcher) *Registry {
	return &Registry{
		probe:         probe,
		watcher:       watcher,
		describeRetry: 500 * time.Millisecond,
	}
}

// SetSink wires the consumer of hotplug events.
func (r *Registry) SetSink(sink HotplugSink) {
	r.sink = sink
}

// Discover enumerates adapters present at startup. Adapters that cannot
// enter monitor mode are still reported; the scheduler's matching rejects
// them per task, not the registry.
func (r *Registry) Discover(ctx context.Context) ([]domain.RadioInterface, error) {
	ctx, span := otel.Tracer("registry").Start(ctx, "Discover")
	defer span.End()

	ifaces, err := r.probe.List(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("interfaces", len(ifaces)))

	for _, iface := range ifaces {
		log.Printf("[REGISTRY] Discovered %s (phy=%s monitor=%v injection=%v dfs=%v)",
			iface.Name, iface.Phy,
			iface.Capabilities.SupportsMonitor,
			iface.Capabilities.SupportsInjection,
			iface.Capabilities.DFSCertified)
	}
	return ifaces, nil
}

// Run consumes the hotplug stream until ctx is cancelled. Added interfaces
// are re-probed for capabilities before being handed to the sink; a probe
// failure drops the event rather than seeding the scheduler with an
// adapter of unknown capabilities.
func (r *Registry) Run(ctx context.Context) error {
	events, err := r.watcher.Watch(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.handle(ctx, ev)
		}
	}
}

func (r *Registry) handle(ctx context.Context, ev domain.HotplugEvent) {
	switch ev.Kind {
	case domain.HotplugAdded:
		if ev.Interface == nil {
			iface := r.describe(ctx, ev.Name)
			if iface == nil {
				log.Printf("[REGISTRY] Ignoring %s: capability probe failed", ev.Name)
				return
			}
			ev.Interface = iface
		}
		log.Printf("[REGISTRY] Hotplug add: %s", ev.Name)
	case domain.HotplugRemoved:
		log.Printf("[REGISTRY] Hotplug remove: %s", ev.Name)
	}
	if r.sink != nil {
		r.sink.HandleHotplug(ev)
	}
}

// describe probes a freshly added adapter, retrying once after a short
// delay because sysfs entries can lag the uevent.
func (r *Registry) describe(ctx context.Context, name string) *domain.RadioInterface {
	iface, err := r.probe.Describe(ctx, name)
	if err == nil {
		return iface
	}

	select {
	case <-ctx.Done():
		return nil
	case <-time.After(r.describeRetry):
	}

	iface, err = r.probe.Describe(ctx, name)
	if err != nil {
		return nil
	}
	return iface
}

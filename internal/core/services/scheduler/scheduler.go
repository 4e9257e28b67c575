// Package scheduler arbitrates exclusive access to physical radio adapters.
//
// A single coordinator goroutine owns all interface mutable state and
// processes lease requests, releases, hotplug events and health probes
// sequentially. Every other component reaches interface state only through
// Request/Release/Cancel; this is the sole mechanism preventing double-lease
// races.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
	"github.com/lcalzada-xor/wpilot/internal/core/ports"
	"github.com/lcalzada-xor/wpilot/internal/core/services/planner"
	"github.com/lcalzada-xor/wpilot/internal/telemetry"
)

// Config tunes the scheduler's timing behavior.
type Config struct {
	// SwitchRetries is the number of retries after a failed mode/channel
	// switch (transient "device busy"). Exhausting them quarantines the
	// interface.
	SwitchRetries int
	// SwitchBackoff is the initial backoff between switch retries; doubles
	// per retry.
	SwitchBackoff time.Duration
	// AgingInterval is the wait time that improves a queued request's
	// effective priority by one band.
	AgingInterval time.Duration
	// Tick drives deadline expiry and queue re-evaluation.
	Tick time.Duration
	// ProbeInterval drives health probes of DEGRADED interfaces.
	ProbeInterval time.Duration
}

// DefaultConfig returns production timings.
func DefaultConfig() Config {
	return Config{
		SwitchRetries: 3,
		SwitchBackoff: 250 * time.Millisecond,
		AgingInterval: 15 * time.Second,
		Tick:          100 * time.Millisecond,
		ProbeInterval: 30 * time.Second,
	}
}

type response struct {
	lease *domain.Lease
	err   error
}

type request struct {
	task       domain.Task
	respCh     chan response
	enqueuedAt time.Time
	deadline   time.Time
	seq        uint64
}

type releaseMsg struct {
	leaseID   string
	cancelled bool
	ack       chan struct{}
}

type snapshotMsg struct {
	resp chan []domain.RadioInterface
}

// Scheduler is the sole owner of interface state.
type Scheduler struct {
	planner  *planner.Planner
	switcher ports.ModeSwitcher
	cfg      Config

	reqCh   chan *request
	relCh   chan releaseMsg
	abortCh chan string // task IDs whose caller gave up
	eventCh chan domain.HotplugEvent
	snapCh  chan snapshotMsg
	doneCh  chan struct{} // closed when the run loop exits

	// Owned by the run loop.
	ifaces  map[string]*domain.RadioInterface
	leases  map[string]*domain.Lease
	byTask  map[string]string // task ID -> lease ID
	pending []*request
	seq     uint64
}

// New creates a Scheduler seeded with the discovered interfaces.
func New(pl *planner.Planner, switcher ports.ModeSwitcher, cfg Config, seed []domain.RadioInterface) *Scheduler {
	s := &Scheduler{
		planner:  pl,
		switcher: switcher,
		cfg:      cfg,
		reqCh:    make(chan *request),
		relCh:    make(chan releaseMsg),
		abortCh:  make(chan string, 64),
		eventCh:  make(chan domain.HotplugEvent, 32),
		snapCh:   make(chan snapshotMsg),
		doneCh:   make(chan struct{}),
		ifaces:   make(map[string]*domain.RadioInterface),
		leases:   make(map[string]*domain.Lease),
		byTask:   make(map[string]string),
	}
	for i := range seed {
		iface := seed[i]
		if iface.Status == "" {
			iface.Status = domain.InterfaceFree
		}
		s.ifaces[iface.Name] = &iface
	}
	return s
}

// Request asks for an exclusive lease matching the task's capability
// predicate. It blocks until granted, the task's max-wait elapses
// (NoCapacityError), or ctx is cancelled.
func (s *Scheduler) Request(ctx context.Context, task domain.Task) (*domain.Lease, error) {
	ctx, span := otel.Tracer("scheduler").Start(ctx, "Request")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.type", string(task.Type)),
		attribute.Int("task.priority", task.Priority),
	)

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.MaxWait <= 0 {
		task.MaxWait = 30 * time.Second
	}

	now := time.Now()
	r := &request{
		task:       task,
		respCh:     make(chan response, 1),
		enqueuedAt: now,
		deadline:   now.Add(task.MaxWait),
	}

	select {
	case s.reqCh <- r:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-r.respCh:
		if resp.err != nil {
			span.RecordError(resp.err)
		}
		return resp.lease, resp.err
	case <-ctx.Done():
		// The loop may still grant; the abort message undoes either way.
		s.abortCh <- task.ID
		return nil, ctx.Err()
	}
}

// Release returns a leased interface to the pool. Idempotent: releasing an
// unknown or already-released lease is a no-op, and a release racing the
// coordinator's shutdown returns instead of blocking.
func (s *Scheduler) Release(lease *domain.Lease) {
	if lease == nil {
		return
	}
	s.sendRelease(releaseMsg{leaseID: lease.ID})
}

// Cancel frees a running lease immediately, reporting Cancelled rather than
// Completed. Used when an operator stops a session.
func (s *Scheduler) Cancel(lease *domain.Lease) {
	if lease == nil {
		return
	}
	s.sendRelease(releaseMsg{leaseID: lease.ID, cancelled: true})
}

func (s *Scheduler) sendRelease(m releaseMsg) {
	m.ack = make(chan struct{})
	select {
	case s.relCh <- m:
		<-m.ack
	case <-s.doneCh:
	}
}

// HandleHotplug feeds a registry event into the coordinator's queue. The
// watcher never mutates interface state directly.
func (s *Scheduler) HandleHotplug(ev domain.HotplugEvent) {
	s.eventCh <- ev
}

// Snapshot returns a point-in-time copy of the interface table, or nil once
// the coordinator has shut down.
func (s *Scheduler) Snapshot() []domain.RadioInterface {
	msg := snapshotMsg{resp: make(chan []domain.RadioInterface, 1)}
	select {
	case s.snapCh <- msg:
		return <-msg.resp
	case <-s.doneCh:
		return nil
	}
}

// Run executes the coordinator loop until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	probe := time.NewTicker(s.cfg.ProbeInterval)
	defer probe.Stop()

	for {
		select {
		case <-ctx.Done():
			s.drain(ctx.Err())
			return
		case r := <-s.reqCh:
			s.enqueue(r)
			s.dispatch(ctx)
		case m := <-s.relCh:
			s.release(m)
			close(m.ack)
			s.dispatch(ctx)
		case taskID := <-s.abortCh:
			s.abort(taskID)
		case ev := <-s.eventCh:
			s.hotplug(ev)
			s.dispatch(ctx)
		case msg := <-s.snapCh:
			msg.resp <- s.snapshot()
		case <-ticker.C:
			s.expire()
			s.dispatch(ctx)
		case <-probe.C:
			s.probeDegraded(ctx)
			s.dispatch(ctx)
		}
	}
}

func (s *Scheduler) enqueue(r *request) {
	s.seq++
	r.seq = s.seq
	s.pending = append(s.pending, r)
	telemetry.PendingRequests.Set(float64(len(s.pending)))
}

// effectivePriority improves with wait time so a low-priority request is
// guaranteed eventual service despite continuous higher-priority arrivals.
func (s *Scheduler) effectivePriority(r *request, now time.Time) int {
	p := r.task.Priority
	if s.cfg.AgingInterval > 0 {
		p -= int(now.Sub(r.enqueuedAt) / s.cfg.AgingInterval)
	}
	if p < 1 {
		p = 1
	}
	return p
}

// dispatch grants as many pending requests as capacity allows, walking the
// queue in (effective priority, FIFO) order. Running leases are never
// preempted.
func (s *Scheduler) dispatch(ctx context.Context) {
	now := time.Now()
	for {
		granted := false
		best := s.nextRunnable(now)
		if best != nil {
			s.remove(best)
			s.grant(ctx, best)
			granted = true
		}
		if !granted {
			break
		}
	}
	telemetry.PendingRequests.Set(float64(len(s.pending)))
}

// nextRunnable picks the highest-effective-priority, earliest-queued request
// that has at least one matching FREE interface.
func (s *Scheduler) nextRunnable(now time.Time) *request {
	var best *request
	bestPrio := 0
	for _, r := range s.pending {
		if s.match(r.task) == nil {
			continue
		}
		p := s.effectivePriority(r, now)
		if best == nil || p < bestPrio || (p == bestPrio && r.seq < best.seq) {
			best = r
			bestPrio = p
		}
	}
	return best
}

// match selects the best FREE interface for the task: predicate first,
// prefer one already in the needed mode (avoids switch cost), tie-break by
// least-recently-used.
func (s *Scheduler) match(task domain.Task) *domain.RadioInterface {
	var best *domain.RadioInterface
	wantMode := task.Requirement.Mode()

	better := func(cand, cur *domain.RadioInterface) bool {
		if cur == nil {
			return true
		}
		candMode := cand.Mode == wantMode
		curMode := cur.Mode == wantMode
		if candMode != curMode {
			return candMode
		}
		return cand.LastReleased.Before(cur.LastReleased)
	}

	for _, iface := range s.ifaces {
		if iface.Status != domain.InterfaceFree {
			continue
		}
		if !task.Requirement.Matches(iface.Capabilities) {
			continue
		}
		if better(iface, best) {
			best = iface
		}
	}
	return best
}

func (s *Scheduler) remove(r *request) {
	for i, p := range s.pending {
		if p == r {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// grant binds the request to an interface, performing the mode switch. The
// switch (down, set type, up, set channel) is atomic from the caller's view
// because it happens inside the coordinator loop.
func (s *Scheduler) grant(ctx context.Context, r *request) {
	iface := s.match(r.task)
	if iface == nil {
		// Raced with a hotplug removal between nextRunnable and here.
		s.pending = append(s.pending, r)
		return
	}

	mode := r.task.Requirement.Mode()

	var channel int
	var hop []int
	var err error
	if r.task.Type == domain.TaskScan {
		hop = s.planner.HopSequence(*iface, r.task.Type)
		if len(hop) > 0 {
			channel = hop[0]
		}
	} else {
		channel, err = s.planner.BestChannel(*iface, r.task.Channel)
		if err != nil {
			r.respCh <- response{err: fmt.Errorf("channel planning for task %s: %w", r.task.ID, err)}
			telemetry.LeaseFailures.WithLabelValues("planning").Inc()
			return
		}
	}

	if err := s.switchInterface(ctx, iface, mode, channel); err != nil {
		iface.Status = domain.InterfaceDegraded
		telemetry.DegradedInterfaces.Set(float64(s.countDegraded()))
		telemetry.LeaseFailures.WithLabelValues("interface_fault").Inc()
		log.Printf("[SCHED] Interface %s quarantined: %v", iface.Name, err)
		r.respCh <- response{err: &domain.InterfaceFaultError{Interface: iface.Name, Err: err}}
		return
	}

	lease := &domain.Lease{
		ID:        uuid.New().String(),
		TaskID:    r.task.ID,
		TaskType:  r.task.Type,
		Interface: iface.Name,
		Mode:      mode,
		Channel:   channel,
		HopPlan:   hop,
		GrantedAt: time.Now(),
	}
	iface.Status = domain.InterfaceLeased
	s.leases[lease.ID] = lease
	s.byTask[r.task.ID] = lease.ID

	telemetry.LeasesGranted.WithLabelValues(string(r.task.Type)).Inc()
	r.respCh <- response{lease: lease}
}

// switchInterface applies mode and channel with bounded retry and short
// backoff for transient "device busy" failures.
func (s *Scheduler) switchInterface(ctx context.Context, iface *domain.RadioInterface, mode domain.InterfaceMode, channel int) error {
	if iface.Mode != mode {
		if err := s.retrySwitch(ctx, iface.Name, func() error {
			return s.switcher.SetMode(ctx, iface.Name, mode)
		}); err != nil {
			return fmt.Errorf("set mode %s: %w", mode, err)
		}
		iface.Mode = mode
	}
	if channel != 0 && iface.Channel != channel {
		if err := s.retrySwitch(ctx, iface.Name, func() error {
			return s.switcher.SetChannel(ctx, iface.Name, channel)
		}); err != nil {
			return fmt.Errorf("set channel %d: %w", channel, err)
		}
		iface.Channel = channel
	}
	return nil
}

func (s *Scheduler) retrySwitch(ctx context.Context, name string, op func() error) error {
	backoff := s.cfg.SwitchBackoff
	var err error
	for attempt := 0; attempt <= s.cfg.SwitchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
		if err = op(); err == nil {
			telemetry.ModeSwitches.WithLabelValues(name, "ok").Inc()
			return nil
		}
		telemetry.ModeSwitches.WithLabelValues(name, "error").Inc()
	}
	return err
}

func (s *Scheduler) release(m releaseMsg) {
	lease, ok := s.leases[m.leaseID]
	if !ok {
		return // idempotent double-release
	}
	delete(s.leases, m.leaseID)
	delete(s.byTask, lease.TaskID)

	if iface, ok := s.ifaces[lease.Interface]; ok && iface.Status == domain.InterfaceLeased {
		iface.Status = domain.InterfaceFree
		iface.LastReleased = time.Now()
	}
	if m.cancelled {
		log.Printf("[SCHED] Lease %s on %s cancelled", lease.ID, lease.Interface)
	}
}

// abort handles a caller that gave up (ctx cancelled). A still-pending
// request is removed; a grant that raced the cancellation is released.
func (s *Scheduler) abort(taskID string) {
	for i, r := range s.pending {
		if r.task.ID == taskID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			telemetry.PendingRequests.Set(float64(len(s.pending)))
			return
		}
	}
	if leaseID, ok := s.byTask[taskID]; ok {
		s.release(releaseMsg{leaseID: leaseID, cancelled: true})
	}
}

func (s *Scheduler) expire() {
	now := time.Now()
	kept := s.pending[:0]
	for _, r := range s.pending {
		if now.After(r.deadline) {
			telemetry.LeaseFailures.WithLabelValues("no_capacity").Inc()
			r.respCh <- response{err: &domain.NoCapacityError{TaskID: r.task.ID, Waited: now.Sub(r.enqueuedAt)}}
			continue
		}
		kept = append(kept, r)
	}
	s.pending = kept
}

func (s *Scheduler) hotplug(ev domain.HotplugEvent) {
	switch ev.Kind {
	case domain.HotplugAdded:
		if ev.Interface == nil {
			return
		}
		iface := *ev.Interface
		iface.Status = domain.InterfaceFree
		s.ifaces[iface.Name] = &iface
		log.Printf("[SCHED] Interface %s added (monitor=%v injection=%v)",
			iface.Name, iface.Capabilities.SupportsMonitor, iface.Capabilities.SupportsInjection)
	case domain.HotplugRemoved:
		// Removal force-cancels any lease on the vanished adapter.
		for id, lease := range s.leases {
			if lease.Interface == ev.Name {
				delete(s.leases, id)
				delete(s.byTask, lease.TaskID)
				telemetry.LeaseFailures.WithLabelValues("hotplug_removed").Inc()
				log.Printf("[SCHED] Lease %s force-cancelled: %s removed", id, ev.Name)
			}
		}
		delete(s.ifaces, ev.Name)
	}
}

func (s *Scheduler) probeDegraded(ctx context.Context) {
	for _, iface := range s.ifaces {
		if iface.Status != domain.InterfaceDegraded {
			continue
		}
		if err := s.switcher.Probe(ctx, iface.Name); err != nil {
			continue
		}
		iface.Status = domain.InterfaceFree
		iface.LastReleased = time.Now()
		log.Printf("[SCHED] Interface %s recovered from DEGRADED", iface.Name)
	}
	telemetry.DegradedInterfaces.Set(float64(s.countDegraded()))
}

func (s *Scheduler) countDegraded() int {
	n := 0
	for _, iface := range s.ifaces {
		if iface.Status == domain.InterfaceDegraded {
			n++
		}
	}
	return n
}

func (s *Scheduler) snapshot() []domain.RadioInterface {
	out := make([]domain.RadioInterface, 0, len(s.ifaces))
	for _, iface := range s.ifaces {
		out = append(out, *iface)
	}
	return out
}

func (s *Scheduler) drain(err error) {
	for _, r := range s.pending {
		r.respCh <- response{err: err}
	}
	s.pending = nil
	telemetry.PendingRequests.Set(0)
}

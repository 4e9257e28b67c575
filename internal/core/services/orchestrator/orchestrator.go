package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lcalzada-xor/wpilot/internal/core/domain"
	"github.com/lcalzada-xor/wpilot/internal/core/ports"
	"github.com/lcalzada-xor/wpilot/internal/telemetry"
)

// Config is the orchestrator's immutable configuration snapshot. It is read
// once at start; changing it requires a restart.
type Config struct {
	MaxConcurrent  int
	MaxAttempts    int
	Cooldown       time.Duration
	MinSignalDBm   int
	PhaseTimeout   time.Duration
	LeaseWait      time.Duration
	EnabledPhases  []domain.AttackPhase
	AllowDowngrade bool
	MinBattery     int
	MaxSessionTime time.Duration
	Blacklist      []string
	Whitelist      []string
	Tick           time.Duration
}

// DefaultConfig returns conservative campaign defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:  2,
		MaxAttempts:    3,
		Cooldown:       5 * time.Minute,
		MinSignalDBm:   -75,
		PhaseTimeout:   2 * time.Minute,
		LeaseWait:      30 * time.Second,
		EnabledPhases:  domain.PhaseOrder,
		MinBattery:     20,
		MaxSessionTime: 0, // unlimited
		Tick:           2 * time.Second,
	}
}

// Orchestrator drives autonomous attack campaigns against discovered
// targets. A single coordinator goroutine owns the target table; campaign
// goroutines work on copies and report back through channels.
type Orchestrator struct {
	cfg      Config
	sched    ports.Scheduler
	capture  ports.CaptureExecutor
	evilTwin ports.EvilTwinExecutor
	cracker  ports.CrackingEngine
	store    ports.SessionStore
	attempts ports.AttemptSink
	power    ports.PowerSource

	observeCh chan []domain.Target
	reportCh  chan phaseReport
	doneCh    chan campaignDone
	crackCh   chan domain.CrackResult
	statusCh  chan chan Status

	feed *feed

	// Loop-owned state. Touched only inside Run.
	sessionID     string
	startedAt     time.Time
	counters      domain.SessionCounters
	targets       map[string]*domain.Target
	running       map[string]context.CancelFunc
	disabled      map[domain.AttackPhase]bool
	enabled       map[domain.AttackPhase]bool
	blacklist     map[string]bool
	whitelist     map[string]bool
	planExhausted bool
}

// Status is a point-in-time copy handed to readers; never a live reference.
type Status struct {
	SessionID string
	StartedAt time.Time
	Counters  domain.SessionCounters
	Targets   []domain.Target
	Running   int
	Paused    bool
}

type phaseReport struct {
	attempt domain.AttackAttempt
	started bool // phase began executing; no outcome yet
}

type campaignDone struct {
	targetID    string
	captured    bool
	cancelled   bool
	executed    int // phases that actually ran
	artifact    domain.Artifact
	unavailable []domain.AttackPhase
}

// New builds an orchestrator and restores persisted session state.
// Targets left ATTACKING by a crash are reset to NEW with their attempt
// counts preserved; persisted cooldowns are honored as-is.
func New(
	cfg Config,
	sched ports.Scheduler,
	capture ports.CaptureExecutor,
	evilTwin ports.EvilTwinExecutor,
	cracker ports.CrackingEngine,
	store ports.SessionStore,
	attempts ports.AttemptSink,
	power ports.PowerSource,
	sessionID string,
) (*Orchestrator, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	o := &Orchestrator{
		cfg:       cfg,
		sched:     sched,
		capture:   capture,
		evilTwin:  evilTwin,
		cracker:   cracker,
		store:     store,
		attempts:  attempts,
		power:     power,
		observeCh: make(chan []domain.Target, 8),
		reportCh:  make(chan phaseReport, 32),
		doneCh:    make(chan campaignDone, 8),
		crackCh:   make(chan domain.CrackResult, 8),
		statusCh:  make(chan chan Status),
		feed:      newFeed(),
		sessionID: sessionID,
		targets:   make(map[string]*domain.Target),
		running:   make(map[string]context.CancelFunc),
		disabled:  make(map[domain.AttackPhase]bool),
		enabled:   make(map[domain.AttackPhase]bool),
		blacklist: make(map[string]bool),
		whitelist: make(map[string]bool),
	}
	for _, ph := range cfg.EnabledPhases {
		o.enabled[ph] = true
	}
	for _, b := range cfg.Blacklist {
		o.blacklist[b] = true
	}
	for _, w := range cfg.Whitelist {
		o.whitelist[w] = true
	}

	snap, err := store.Load(sessionID)
	if err != nil {
		// A damaged snapshot must not block a new session.
		log.Printf("[ORCH] Snapshot load failed, starting fresh: %v", err)
		snap = domain.EmptySnapshot(sessionID, time.Now())
	}
	o.startedAt = snap.StartedAt
	if o.startedAt.IsZero() {
		o.startedAt = time.Now()
	}
	o.counters = snap.Counters
	for i := range snap.Targets {
		t := snap.Targets[i]
		if t.State == domain.TargetAttacking {
			t.State = domain.TargetNew
			t.Phase = ""
		}
		o.targets[t.BSSID] = &t
	}
	if len(snap.Targets) > 0 {
		log.Printf("[ORCH] Resumed session %s with %d targets", sessionID, len(snap.Targets))
	}

	if cracker != nil {
		cracker.Subscribe(func(res domain.CrackResult) {
			select {
			case o.crackCh <- res:
			default:
				log.Printf("[ORCH] Dropped crack result for %s: queue full", res.TargetID)
			}
		})
	}
	return o, nil
}

// Observe implements ports.ScannerSink. The external scanner pushes
// discovered targets here; state machine fields are never overwritten.
func (o *Orchestrator) Observe(targets []domain.Target) {
	select {
	case o.observeCh <- targets:
	default:
		log.Printf("[ORCH] Dropped scan batch of %d targets: queue full", len(targets))
	}
}

// Subscribe returns a channel of campaign events for live consumers.
func (o *Orchestrator) Subscribe() <-chan Event {
	return o.feed.subscribe()
}

// Unsubscribe detaches a channel obtained from Subscribe.
func (o *Orchestrator) Unsubscribe(ch <-chan Event) {
	o.feed.unsubscribe(ch)
}

// Status returns a point-in-time copy of the session state. It is served
// by the coordinator loop, so it must only be called while Run is active.
func (o *Orchestrator) Status() Status {
	reply := make(chan Status, 1)
	o.statusCh <- reply
	return <-reply
}

// Run is the coordinator loop. It owns every target mutation and exits
// when ctx is cancelled, after cancelling all in-flight campaigns.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.Tick)
	defer ticker.Stop()

	o.persist()

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return
		case batch := <-o.observeCh:
			o.merge(batch)
			o.intake(ctx)
		case rep := <-o.reportCh:
			if rep.started {
				o.phaseStarted(rep.attempt)
			} else {
				o.recordAttempt(ctx, rep.attempt)
			}
		case done := <-o.doneCh:
			o.applyTransition(done)
			o.intake(ctx)
		case res := <-o.crackCh:
			o.applyCrack(res)
		case reply := <-o.statusCh:
			reply <- o.status()
		case <-ticker.C:
			o.intake(ctx)
		}
	}
}

// shutdown cancels in-flight campaigns and writes a final snapshot.
func (o *Orchestrator) shutdown() {
	for id, cancel := range o.running {
		cancel()
		if t, ok := o.targets[id]; ok && t.State == domain.TargetAttacking {
			t.State = domain.TargetNew
			t.Phase = ""
		}
	}
	o.running = make(map[string]context.CancelFunc)
	o.persist()
	o.feed.close()
	log.Printf("[ORCH] Session %s stopped", o.sessionID)
}

// merge folds a scan batch into the candidate set. Observation fields are
// refreshed; campaign fields stay owned by the orchestrator.
func (o *Orchestrator) merge(batch []domain.Target) {
	now := time.Now()
	changed := false
	for _, seen := range batch {
		existing, ok := o.targets[seen.BSSID]
		if !ok {
			t := seen
			t.State = domain.TargetNew
			t.FirstSeen = now
			t.LastSeen = now
			o.targets[t.BSSID] = &t
			o.counters.TargetsDiscovered++
			changed = true
			o.feed.publish(Event{Kind: EventTargetFound, Target: t.BSSID, SSID: t.SSID, At: now})
			continue
		}
		existing.Signal = seen.Signal
		existing.Channel = seen.Channel
		existing.Security = seen.Security
		existing.HasClients = seen.HasClients
		if seen.SSID != "" {
			existing.SSID = seen.SSID
		}
		existing.LastSeen = now
	}
	if changed {
		o.persist()
	}
	o.updateGauges()
}

// intake starts campaigns for the best ready targets until the concurrency
// cap is hit. Interlocks gate new intake only; running campaigns always
// finish on their own terms.
func (o *Orchestrator) intake(ctx context.Context) {
	if len(o.running) >= o.cfg.MaxConcurrent {
		return
	}
	if len(o.phasePlan()) == 0 {
		// Starting a campaign with nothing to execute would only burn the
		// target's attempt budget.
		if !o.planExhausted {
			o.planExhausted = true
			log.Printf("[ORCH] Intake paused: no attack phases available")
		}
		return
	}
	o.planExhausted = false
	if err := o.checkInterlocks(); err != nil {
		log.Printf("[ORCH] Intake paused: %v", err)
		return
	}

	now := time.Now()
	for len(o.running) < o.cfg.MaxConcurrent {
		next := o.pickNext(now)
		if next == nil {
			return
		}
		o.startCampaign(ctx, next)
	}
}

func (o *Orchestrator) startCampaign(ctx context.Context, t *domain.Target) {
	t.State = domain.TargetAttacking
	t.LastAttemptAt = time.Now()

	campaignCtx, cancel := context.WithCancel(ctx)
	o.running[t.BSSID] = cancel
	o.persist()
	o.updateGauges()

	log.Printf("[ORCH] Attacking %s (%s) attempt %d/%d",
		t.BSSID, t.SSID, t.Attempts+1, o.cfg.MaxAttempts)

	go o.runCampaign(campaignCtx, *t, o.phasePlan())
}

// applyTransition is the single place campaign outcomes mutate target
// state, so every persisted snapshot is internally consistent.
func (o *Orchestrator) applyTransition(done campaignDone) {
	if cancel, ok := o.running[done.targetID]; ok {
		cancel()
		delete(o.running, done.targetID)
	}
	for _, ph := range done.unavailable {
		if !o.disabled[ph] {
			o.disabled[ph] = true
			log.Printf("[ORCH] Phase %s disabled for this session: executor unavailable", ph)
		}
	}

	t, ok := o.targets[done.targetID]
	if !ok {
		return
	}

	now := time.Now()

	switch {
	case done.captured:
		t.State = domain.TargetCaptured
		t.Phase = ""
		t.Artifact = done.artifact.Path
		o.counters.AttacksTotal++
		o.counters.AttacksSucceeded++
		o.counters.TargetsCaptured++
		o.feed.publish(Event{Kind: EventTargetCaptured, Target: t.BSSID, SSID: t.SSID, At: now})
		o.submitCrack(done.artifact)
	case done.cancelled:
		// Operator stop or shutdown: not a failed attempt.
		t.State = domain.TargetNew
		t.Phase = ""
	case done.executed == len(done.unavailable):
		// Every phase hit a missing executor. That is a host outage, not
		// this target's failure; the attempt budget stays untouched.
		t.State = domain.TargetNew
		t.Phase = ""
	default:
		t.Attempts++
		t.Phase = ""
		o.counters.AttacksTotal++
		o.counters.AttacksFailed++
		if t.Attempts >= o.cfg.MaxAttempts {
			t.State = domain.TargetExhausted
			o.counters.TargetsExhausted++
			o.feed.publish(Event{Kind: EventTargetExhausted, Target: t.BSSID, SSID: t.SSID, At: now})
			log.Printf("[ORCH] Target %s exhausted after %d attempts", t.BSSID, t.Attempts)
		} else {
			t.State = domain.TargetCooldown
			t.CooldownUntil = now.Add(o.cfg.Cooldown)
		}
	}

	o.persist()
	o.updateGauges()
}

func (o *Orchestrator) submitCrack(artifact domain.Artifact) {
	if o.cracker == nil || artifact.Path == "" {
		return
	}
	jobID, err := o.cracker.Submit(artifact)
	if err != nil {
		log.Printf("[ORCH] Crack submission for %s failed: %v", artifact.TargetID, err)
		return
	}
	log.Printf("[ORCH] Artifact %s submitted for cracking (job %s)", artifact.Path, jobID)
}

func (o *Orchestrator) applyCrack(res domain.CrackResult) {
	if !res.Cracked {
		return
	}
	o.counters.KeysCracked++
	o.feed.publish(Event{Kind: EventKeyCracked, Target: res.TargetID, At: time.Now()})
	log.Printf("[ORCH] Key cracked for %s", res.TargetID)
	o.persist()
}

// phaseStarted marks the target's live phase for the status surface and
// announces it on the feed.
func (o *Orchestrator) phaseStarted(attempt domain.AttackAttempt) {
	if t, ok := o.targets[attempt.TargetID]; ok && t.State == domain.TargetAttacking {
		t.Phase = attempt.Phase
	}
	o.feed.publish(Event{
		Kind:   EventPhaseStarted,
		Target: attempt.TargetID,
		Phase:  attempt.Phase,
		At:     attempt.StartedAt,
	})
}

// recordAttempt appends one phase execution to the audit trail and the
// session counters.
func (o *Orchestrator) recordAttempt(ctx context.Context, attempt domain.AttackAttempt) {
	telemetry.AttackPhases.WithLabelValues(string(attempt.Phase), string(attempt.Outcome)).Inc()

	if attempt.Outcome == domain.OutcomeSuccess {
		switch attempt.Phase {
		case domain.PhasePMKID:
			o.counters.PMKIDsCaptured++
		case domain.PhaseDeauthHandshake:
			o.counters.HandshakesCaptured++
		case domain.PhaseEvilTwin:
			o.counters.CredentialsCaptured++
		}
	}

	o.feed.publish(Event{
		Kind:    EventPhaseResult,
		Target:  attempt.TargetID,
		Phase:   attempt.Phase,
		Outcome: attempt.Outcome,
		At:      time.Now(),
	})

	if o.attempts != nil {
		if err := o.attempts.AppendAttempt(ctx, attempt); err != nil {
			log.Printf("[ORCH] Audit append failed: %v", err)
		}
	}
}

// phasePlan returns the enabled, still-available phases in fixed order.
func (o *Orchestrator) phasePlan() []domain.AttackPhase {
	var plan []domain.AttackPhase
	for _, ph := range domain.PhaseOrder {
		if o.enabled[ph] && !o.disabled[ph] {
			plan = append(plan, ph)
		}
	}
	return plan
}

// persist writes the full session snapshot. A failed write keeps the prior
// snapshot on disk and the orchestrator continues in memory.
func (o *Orchestrator) persist() {
	snap := domain.SessionSnapshot{
		Version:   domain.SnapshotVersion,
		SessionID: o.sessionID,
		StartedAt: o.startedAt,
		SavedAt:   time.Now(),
		Counters:  o.counters,
		Targets:   make([]domain.Target, 0, len(o.targets)),
	}
	for _, t := range o.targets {
		snap.Targets = append(snap.Targets, *t)
	}

	if err := o.store.Save(snap); err != nil {
		telemetry.SnapshotWrites.WithLabelValues("error").Inc()
		log.Printf("[ORCH] Snapshot write failed: %v", err)
		return
	}
	telemetry.SnapshotWrites.WithLabelValues("ok").Inc()
}

func (o *Orchestrator) status() Status {
	st := Status{
		SessionID: o.sessionID,
		StartedAt: o.startedAt,
		Counters:  o.counters,
		Targets:   make([]domain.Target, 0, len(o.targets)),
		Running:   len(o.running),
		Paused:    o.checkInterlocks() != nil,
	}
	for _, t := range o.targets {
		st.Targets = append(st.Targets, *t)
	}
	return st
}

func (o *Orchestrator) updateGauges() {
	byState := map[domain.TargetState]int{}
	for _, t := range o.targets {
		byState[t.State]++
	}
	for _, state := range []domain.TargetState{
		domain.TargetNew, domain.TargetAttacking, domain.TargetCooldown,
		domain.TargetCaptured, domain.TargetExhausted,
	} {
		telemetry.TargetsByState.WithLabelValues(string(state)).Set(float64(byState[state]))
	}
}

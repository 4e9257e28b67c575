package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lcalzada-xor/wpilot/internal/core/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// runCampaign executes the phase plan against one target. It runs outside
// the coordinator loop on a private copy of the target and communicates
// results exclusively through channels.
func (o *Orchestrator) runCampaign(ctx context.Context, target domain.Target, plan []domain.AttackPhase) {
	done := campaignDone{targetID: target.BSSID}

	for _, phase := range plan {
		if ctx.Err() != nil {
			done.cancelled = true
			break
		}

		attempt, artifact := o.executePhase(ctx, target, phase)
		done.executed++
		o.report(ctx, phaseReport{attempt: attempt})

		switch attempt.Outcome {
		case domain.OutcomeSuccess:
			done.captured = true
			done.artifact = artifact
		case domain.OutcomeUnavailable:
			done.unavailable = append(done.unavailable, phase)
			continue
		case domain.OutcomeCancelled:
			done.cancelled = true
		default:
			continue
		}
		break
	}

	select {
	case o.doneCh <- done:
	case <-ctx.Done():
		// Shutdown races a finished campaign; the coordinator resets
		// ATTACKING targets itself, so dropping the result is safe.
		if !done.cancelled {
			select {
			case o.doneCh <- done:
			default:
			}
		}
	}
}

// executePhase leases an interface, invokes the external executor under a
// hard timeout and returns the audit record. The lease is always released
// before returning.
func (o *Orchestrator) executePhase(ctx context.Context, target domain.Target, phase domain.AttackPhase) (domain.AttackAttempt, domain.Artifact) {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "attack.phase")
	defer span.End()
	span.SetAttributes(
		attribute.String("phase", string(phase)),
		attribute.String("bssid", target.BSSID),
	)

	attempt := domain.AttackAttempt{
		ID:        uuid.New().String(),
		TargetID:  target.BSSID,
		Phase:     phase,
		StartedAt: time.Now(),
	}

	// Routed through the coordinator so the target's live phase stays
	// accurate while this one runs.
	o.report(ctx, phaseReport{attempt: attempt, started: true})

	lease, err := o.sched.Request(ctx, domain.Task{
		Type:        phase.TaskType(),
		Priority:    2,
		Requirement: phase.Requirement(target.Channel),
		Channel:     target.Channel,
		MaxWait:     o.cfg.LeaseWait,
	})
	if err != nil {
		attempt.EndedAt = time.Now()
		attempt.Outcome, attempt.ErrorKind = classify(ctx, err)
		return attempt, domain.Artifact{}
	}
	defer o.sched.Release(lease)

	var artifact domain.Artifact
	switch phase {
	case domain.PhaseEvilTwin:
		artifact, err = o.evilTwin.Clone(ctx, lease, target, o.cfg.PhaseTimeout)
	default:
		artifact, err = o.capture.Capture(ctx, lease, phase, target, o.cfg.PhaseTimeout)
	}

	attempt.EndedAt = time.Now()
	if err != nil {
		attempt.Outcome, attempt.ErrorKind = classify(ctx, err)
		return attempt, domain.Artifact{}
	}
	attempt.Outcome = domain.OutcomeSuccess
	attempt.Artifact = artifact.Path
	return attempt, artifact
}

// classify maps an error from the scheduler or an executor to an attempt
// outcome and its audit label.
func classify(ctx context.Context, err error) (domain.AttackOutcome, string) {
	var (
		noCap       *domain.NoCapacityError
		fault       *domain.InterfaceFaultError
		timeout     *domain.ExecutorTimeoutError
		unavailable *domain.ExecutorUnavailableError
	)
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return domain.OutcomeCancelled, "cancelled"
	case errors.As(err, &noCap):
		return domain.OutcomeNoCapacity, "no_capacity"
	case errors.As(err, &fault):
		return domain.OutcomeFailed, "interface_fault"
	case errors.As(err, &timeout):
		return domain.OutcomeTimeout, "executor_timeout"
	case errors.As(err, &unavailable):
		return domain.OutcomeUnavailable, "executor_unavailable"
	default:
		return domain.OutcomeFailed, "executor_error"
	}
}

// report hands a phase start or result to the coordinator without ever
// blocking past shutdown.
func (o *Orchestrator) report(ctx context.Context, rep phaseReport) {
	select {
	case o.reportCh <- rep:
	case <-ctx.Done():
	}
}

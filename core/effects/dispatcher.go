package effects

import (
	"context"

	"freelance-workflow/core/models"

	"github.com/sirupsen/logrus"
)

// Notifier delivers a notification to one user
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Publisher pushes a realtime event to connected clients
type Publisher interface {
	Publish(ctx context.Context, e models.RealtimeEvent) error
}

// Auditor stores an audit entry
type Auditor interface {
	Record(ctx context.Context, e models.AuditEntry) error
}

// FailureObserver is told about every effect that could not be delivered
type FailureObserver interface {
	ObserveEffectFailure(kind models.EffectKind)
}

// Dispatcher sends the side effects of a committed action. Each effect is
// attempted independently and a failure never stops the others.
type Dispatcher struct {
	notifier  Notifier
	publisher Publisher
	auditor   Auditor
	observer  FailureObserver
	log       *logrus.Entry
}

// NewDispatcher creates a dispatcher. Nil collaborators are skipped.
func NewDispatcher(notifier Notifier, publisher Publisher, auditor Auditor, observer FailureObserver, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		notifier:  notifier,
		publisher: publisher,
		auditor:   auditor,
		observer:  observer,
		log:       log,
	}
}

// Dispatch delivers effects and reports one outcome per attempted effect
func (d *Dispatcher) Dispatch(ctx context.Context, taskID string, effects models.Effects) []models.EffectOutcome {
	const op = "effects.Dispatcher.Dispatch"
	log := d.log.WithField("operation", op).WithField("task_id", taskID)

	var outcomes []models.EffectOutcome
	record := func(kind models.EffectKind, target string, err error) {
		outcomes = append(outcomes, models.EffectOutcome{Kind: kind, Target: target, Err: err})
		if err == nil {
			return
		}
		log.WithError(err).WithField("effect", kind).WithField("target", target).Warn("side effect failed")
		if d.observer != nil {
			d.observer.ObserveEffectFailure(kind)
		}
	}

	if d.notifier != nil {
		for _, n := range effects.Notifications {
			record(models.EffectNotification, n.RecipientID, d.notifier.Notify(ctx, n))
		}
	}
	if d.publisher != nil {
		for _, e := range effects.Realtime {
			record(models.EffectRealtime, e.EventName, d.publisher.Publish(ctx, e))
		}
	}
	if d.auditor != nil {
		for _, e := range effects.Audit {
			record(models.EffectAudit, e.Action, d.auditor.Record(ctx, e))
		}
	}

	return outcomes
}

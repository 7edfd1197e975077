package healing

import (
	"context"
	"fmt"
	"time"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/infra/storage"
	"github.com/apppro/content-pipeline/internal/metrics"
)

const (
	// escalationWindow is the rolling window for frequency-based escalation.
	escalationWindow = 24 * time.Hour
	// escalationThreshold is how many failed remediations of one component
	// inside the window force escalation.
	escalationThreshold = 3
)

// EscalationNotifier is told about each escalation so an operator alert can
// go out. Notification failure never blocks the escalation itself.
type EscalationNotifier interface {
	Escalated(ctx context.Context, errorRecordID string, component domain.Component, message string)
}

// Gate decides whether an error must be handed to a human. An escalated
// record is terminal from the automation's point of view: escalated never
// resets, and only a manual resolution event can close the record.
type Gate struct {
	errors   storage.ErrorRepository
	notifier EscalationNotifier
	now      func() time.Time
}

// NewGate creates an escalation gate over the error repository.
func NewGate(errors storage.ErrorRepository) *Gate {
	return &Gate{errors: errors, now: time.Now}
}

// SetNotifier attaches the operator alert hook. A nil gate notifier is valid;
// escalations then only show up in the store and metrics.
func (g *Gate) SetNotifier(n EscalationNotifier) {
	g.notifier = n
}

// EscalateIfNeeded marks the record escalated when its kind is auth_fail, or
// when the same component accumulated three failed unresolved remediations
// within the trailing 24 hours. Returns whether the record was escalated;
// a false result leaves the record for a future cycle to reconsider.
func (g *Gate) EscalateIfNeeded(ctx context.Context, rec *domain.ErrorRecord) (bool, error) {
	if rec.Escalated {
		return true, nil
	}
	if rec.Kind == domain.ErrAuthFail {
		if err := g.mark(ctx, rec); err != nil {
			return false, err
		}
		return true, nil
	}

	since := g.now().Add(-escalationWindow).UnixMilli()
	failures, err := g.errors.CountRecentFailures(ctx, rec.Component, since)
	if err != nil {
		return false, fmt.Errorf("failed to count component failures: %w", err)
	}
	if failures >= escalationThreshold {
		if err := g.mark(ctx, rec); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}

// Escalate records a brand-new failure and escalates it in one step, for
// callers that already know no retry can help (credential problems).
func (g *Gate) Escalate(ctx context.Context, ex *Executor, f Failure) (string, error) {
	recordID, err := ex.Record(ctx, f)
	if err != nil {
		return "", err
	}
	if err := g.errors.MarkEscalated(ctx, recordID); err != nil {
		return recordID, fmt.Errorf("failed to escalate error: %w", err)
	}
	metrics.EscalationsTotal.WithLabelValues(string(f.Component)).Inc()
	if g.notifier != nil {
		g.notifier.Escalated(ctx, recordID, f.Component, f.Message)
	}
	return recordID, nil
}

func (g *Gate) mark(ctx context.Context, rec *domain.ErrorRecord) error {
	if err := g.errors.MarkEscalated(ctx, rec.ID); err != nil {
		return fmt.Errorf("failed to escalate error: %w", err)
	}
	metrics.EscalationsTotal.WithLabelValues(string(rec.Component)).Inc()
	if g.notifier != nil {
		g.notifier.Escalated(ctx, rec.ID, rec.Component, rec.Message)
	}
	return nil
}

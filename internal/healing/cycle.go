package healing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/infra/storage"
	"github.com/apppro/content-pipeline/internal/metrics"
)

const (
	// batchSize caps how many unresolved errors one cycle scans.
	batchSize = 20
	// maxErrorAge escalates records nothing ever re-attempted. A pending
	// retry whose owning stage never runs again must not linger forever.
	maxErrorAge = 7 * 24 * time.Hour
)

// Report summarizes one self-healing cycle.
type Report struct {
	Total     int
	Fixed     int
	Escalated int
	Skipped   int
	Details   []domain.HealingDetail
}

// Cycle scans unresolved error records, classifies each, reports retriability
// for locally-fixable classes and escalates the rest. It runs before each
// pipeline pass so residual errors are cleared or surfaced first.
//
// The cycle only marks L1/L2 errors retriable; the actual business-logic
// retry happens inline in the stage that raised the error, on its next
// natural trigger.
type Cycle struct {
	runs       storage.RunRepository
	errors     storage.ErrorRepository
	classifier *Classifier
	gate       *Gate
	log        *slog.Logger
	now        func() time.Time
}

// NewCycle creates a self-healing cycle.
func NewCycle(runs storage.RunRepository, errors storage.ErrorRepository, classifier *Classifier, gate *Gate) *Cycle {
	return &Cycle{
		runs:       runs,
		errors:     errors,
		classifier: classifier,
		gate:       gate,
		log:        slog.Default().With("component", "self-healing"),
		now:        time.Now,
	}
}

// Run executes one cycle under a self-healing PipelineRun. It never panics or
// returns an error past its own boundary: callers treat "no errors found" and
// "cycle crashed" identically: log and continue. Running the cycle twice in
// a row is safe; resolved and escalated records drop out of the scan query.
func (c *Cycle) Run(ctx context.Context, trigger domain.Trigger) Report {
	report := Report{}

	run := &domain.PipelineRun{
		ID:        uuid.New().String(),
		Stage:     domain.StageSelfHealing,
		Status:    domain.RunStarted,
		Trigger:   trigger,
		StartedAt: c.now().UnixMilli(),
	}
	if err := c.runs.Start(ctx, run); err != nil {
		c.log.Error("Failed to start self-healing run", "error", err)
		return report
	}

	if err := c.scan(ctx, &report); err != nil {
		c.log.Error("Self-healing cycle failed", "error", err)
		if failErr := c.runs.Fail(ctx, run.ID, err.Error(), ""); failErr != nil {
			c.log.Error("Failed to record self-healing failure", "error", failErr)
		}
		metrics.RunsTotal.WithLabelValues(string(domain.StageSelfHealing), string(domain.RunFailed)).Inc()
		return report
	}

	meta := &domain.RunMetadata{Healing: &domain.HealingMetadata{
		Total:     report.Total,
		Fixed:     report.Fixed,
		Escalated: report.Escalated,
		Skipped:   report.Skipped,
		Details:   report.Details,
	}}
	if report.Total == 0 {
		meta.Healing.Message = "no_unresolved_errors"
	}
	encoded, err := domain.EncodeMetadata(meta)
	if err != nil {
		c.log.Error("Failed to encode healing metadata", "error", err)
	}
	if err := c.runs.Complete(ctx, run.ID, report.Total, encoded); err != nil {
		c.log.Error("Failed to complete self-healing run", "error", err)
	}
	metrics.RunsTotal.WithLabelValues(string(domain.StageSelfHealing), string(domain.RunCompleted)).Inc()

	c.log.Info("Self-healing cycle complete",
		"total", report.Total, "fixed", report.Fixed,
		"escalated", report.Escalated, "skipped", report.Skipped)
	return report
}

func (c *Cycle) scan(ctx context.Context, report *Report) error {
	records, err := c.errors.ListUnresolved(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("failed to scan unresolved errors: %w", err)
	}
	report.Total = len(records)

	if len(records) == 0 {
		c.log.Debug("No unresolved errors")
		return nil
	}

	for _, rec := range records {
		detail := domain.HealingDetail{ErrorID: rec.ID, Component: rec.Component}

		// Age-based escalation: a record nobody re-attempted for a week is
		// handed to a human regardless of its classification.
		if c.now().UnixMilli()-rec.OccurredAt > maxErrorAge.Milliseconds() {
			if err := c.gate.mark(ctx, rec); err != nil {
				return err
			}
			report.Escalated++
			detail.Level = string(c.classifier.Classify(rec.Component, rec.Kind).Level)
			detail.Result = "escalated_stale"
			report.Details = append(report.Details, detail)
			c.log.Warn("Escalated stale error", "error_id", rec.ID, "component", rec.Component)
			continue
		}

		cls := c.classifier.Classify(rec.Component, rec.Kind)
		detail.Level = string(cls.Level)

		switch {
		case cls.Level == L5:
			if _, err := c.gate.EscalateIfNeeded(ctx, rec); err != nil {
				return err
			}
			report.Escalated++
			detail.Result = "escalated"
			c.log.Warn("Escalated error", "error_id", rec.ID,
				"component", rec.Component, "kind", rec.Kind)

		case !cls.Level.Actionable():
			// L3/L4 strategies are reserved. Leave the record unresolved so a
			// future cycle reconsiders it once the policy table learns how.
			report.Skipped++
			detail.Result = "skipped"
			c.log.Info("Skipped error with reserved strategy", "error_id", rec.ID,
				"component", rec.Component, "level", cls.Level)

		default:
			// L1/L2: mark retriable. The owning stage performs the actual
			// retry on its next trigger; here we only update bookkeeping and
			// check the escalation gate. The gate runs first because it
			// counts failed remediations, which the pending-retry write below
			// would mask. Recording the attempt as skipped keeps the record
			// unresolved but out of the next scan, so back-to-back cycles
			// converge to an empty batch.
			escalated, err := c.gate.EscalateIfNeeded(ctx, rec)
			if err != nil {
				return err
			}
			if escalated {
				report.Escalated++
				detail.Result = "escalated"
				report.Details = append(report.Details, detail)
				continue
			}
			action := fmt.Sprintf("%s %s; pending retry on next pipeline run", cls.Level, cls.Action)
			if err := c.errors.RecordFix(ctx, rec.ID, domain.FixSkipped, action); err != nil {
				return fmt.Errorf("failed to record fix attempt: %w", err)
			}
			report.Skipped++
			detail.Result = "pending_retry"
		}

		report.Details = append(report.Details, detail)
	}

	if total, _, err := c.errors.CountUnresolved(ctx); err == nil {
		metrics.UnresolvedErrors.Set(float64(total))
	}
	return nil
}

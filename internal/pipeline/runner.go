// Package pipeline implements the stage execution model: each stage wraps
// its work in a PipelineRun envelope (start, then exactly one terminal
// complete or fail), applies the stage's local retry policy through the
// healing executor, and records stage-specific metadata.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/infra/storage"
	"github.com/apppro/content-pipeline/internal/metrics"
)

// Runner owns the PipelineRun envelope shared by all stages.
type Runner struct {
	runs storage.RunRepository
	log  *slog.Logger
	now  func() time.Time
}

// NewRunner creates the stage envelope runner.
func NewRunner(runs storage.RunRepository) *Runner {
	return &Runner{
		runs: runs,
		log:  slog.Default().With("component", "pipeline"),
		now:  time.Now,
	}
}

func (r *Runner) start(ctx context.Context, stage domain.Stage, trigger domain.Trigger) (*domain.PipelineRun, error) {
	run := &domain.PipelineRun{
		ID:        uuid.New().String(),
		Stage:     stage,
		Status:    domain.RunStarted,
		Trigger:   trigger,
		StartedAt: r.now().UnixMilli(),
	}
	if err := r.runs.Start(ctx, run); err != nil {
		return nil, err
	}
	r.log.Info("Stage started", "stage", stage, "run_id", run.ID, "trigger", trigger)
	return run, nil
}

// complete performs the run's single terminal transition to completed.
func (r *Runner) complete(ctx context.Context, run *domain.PipelineRun, itemsProcessed int, meta *domain.RunMetadata) {
	encoded, err := domain.EncodeMetadata(meta)
	if err != nil {
		r.log.Error("Failed to encode run metadata", "run_id", run.ID, "error", err)
	}
	if err := r.runs.Complete(ctx, run.ID, itemsProcessed, encoded); err != nil {
		r.log.Error("Failed to complete run", "run_id", run.ID, "error", err)
		return
	}
	metrics.RunsTotal.WithLabelValues(string(run.Stage), string(domain.RunCompleted)).Inc()
	metrics.RunDuration.WithLabelValues(string(run.Stage)).
		Observe(float64(r.now().UnixMilli()-run.StartedAt) / 1000)
	r.log.Info("Stage completed", "stage", run.Stage, "run_id", run.ID, "items", itemsProcessed)
}

// fail performs the run's single terminal transition to failed, optionally
// linking the error record that explains it.
func (r *Runner) fail(ctx context.Context, run *domain.PipelineRun, errMsg, errorRecordID string) {
	if err := r.runs.Fail(ctx, run.ID, errMsg, errorRecordID); err != nil {
		r.log.Error("Failed to record run failure", "run_id", run.ID, "error", err)
		return
	}
	metrics.RunsTotal.WithLabelValues(string(run.Stage), string(domain.RunFailed)).Inc()
	r.log.Error("Stage failed", "stage", run.Stage, "run_id", run.ID, "error", errMsg)
}

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/apppro/content-pipeline/internal/collect"
	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/healing"
	"github.com/apppro/content-pipeline/internal/infra/storage"
)

// Collecter is the collect capability the stage drives.
type Collecter interface {
	Collect(ctx context.Context) (*collect.Result, error)
}

// CollectStage fetches raw material and persists the new items. Its local
// retry policy is a single immediate L1 retry of the whole pass.
type CollectStage struct {
	runner     *Runner
	collector  Collecter
	items      storage.CollectedItemRepository
	executor   *healing.Executor
	gate       *healing.Gate
	retryDelay time.Duration
	log        *slog.Logger
}

// NewCollectStage wires the collect stage.
func NewCollectStage(runner *Runner, collector Collecter, items storage.CollectedItemRepository, executor *healing.Executor, gate *healing.Gate) *CollectStage {
	return &CollectStage{
		runner:     runner,
		collector:  collector,
		items:      items,
		executor:   executor,
		gate:       gate,
		retryDelay: healing.DefaultRetryDelay,
		log:        slog.Default().With("component", "stage-collect"),
	}
}

// CollectOutcome summarizes one collect stage run.
type CollectOutcome struct {
	Success    bool
	RunID      string
	RawItems   int
	SavedItems int
}

type collectPass struct {
	result *collect.Result
	saved  int
}

// Run executes one collect pass under its run envelope.
func (s *CollectStage) Run(ctx context.Context, trigger domain.Trigger) *CollectOutcome {
	run, err := s.runner.start(ctx, domain.StageCollect, trigger)
	if err != nil {
		s.log.Error("Failed to start collect run", "error", err)
		return &CollectOutcome{}
	}
	outcome := &CollectOutcome{RunID: run.ID}

	pass, err := s.collectAndSave(ctx)
	if err == nil {
		s.complete(ctx, run, outcome, pass, "")
		return outcome
	}

	kind := InferKind(err)
	failure := healing.Failure{
		Component: domain.ComponentRSSCollector,
		Kind:      kind,
		Message:   err.Error(),
	}

	if kind == domain.ErrAuthFail {
		recordID, escErr := s.gate.Escalate(ctx, s.executor, failure)
		if escErr != nil {
			s.log.Error("Failed to escalate collect failure", "error", escErr)
		}
		s.runner.fail(ctx, run, err.Error(), recordID)
		return outcome
	}

	// L1: one immediate retry of the whole pass.
	retried, recordID, retryErr := healing.RetryImmediate(ctx, s.executor, failure,
		s.retryDelay, s.collectAndSave)
	if retryErr != nil {
		s.runner.fail(ctx, run, retryErr.Error(), recordID)
		return outcome
	}

	s.complete(ctx, run, outcome, *retried, "L1_retry_success")
	return outcome
}

func (s *CollectStage) collectAndSave(ctx context.Context) (collectPass, error) {
	result, err := s.collector.Collect(ctx)
	if err != nil {
		return collectPass{}, err
	}
	saved, err := s.items.SaveNew(ctx, result.Items)
	if err != nil {
		return collectPass{}, err
	}
	return collectPass{result: result, saved: saved}, nil
}

func (s *CollectStage) complete(ctx context.Context, run *domain.PipelineRun, outcome *CollectOutcome, pass collectPass, selfHealing string) {
	outcome.Success = true
	outcome.RawItems = pass.result.RawCount
	outcome.SavedItems = pass.saved

	s.runner.complete(ctx, run, pass.saved, &domain.RunMetadata{
		Collect: &domain.CollectMetadata{
			RawItems:    pass.result.RawCount,
			SavedItems:  pass.saved,
			FeedsOK:     pass.result.FeedsOK,
			FeedsFailed: pass.result.FeedsFailed,
			SelfHealing: selfHealing,
		},
	})
}

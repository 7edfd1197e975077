package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/healing"
	"github.com/apppro/content-pipeline/internal/infra/storage"
	"github.com/apppro/content-pipeline/internal/notify"
	"github.com/apppro/content-pipeline/internal/publish"
)

// Distributor fans an approved item out to the active channels.
type Distributor interface {
	PublishAll(ctx context.Context, item *domain.ContentItem) (*publish.Aggregate, error)
}

// PublishStage pulls the oldest approved item and hands it to the channel
// orchestrator under a run envelope. Fanout-level errors get one L1 retry of
// the whole fanout; per-channel failures inside a fanout are the
// orchestrator's concern.
type PublishStage struct {
	runner       *Runner
	content      storage.ContentRepository
	orchestrator Distributor
	executor     *healing.Executor
	gate         *healing.Gate
	notifier     *notify.Notifier
	retryDelay   time.Duration
	log          *slog.Logger
}

// NewPublishStage wires the publish stage.
func NewPublishStage(
	runner *Runner,
	content storage.ContentRepository,
	orchestrator Distributor,
	executor *healing.Executor,
	gate *healing.Gate,
	notifier *notify.Notifier,
) *PublishStage {
	return &PublishStage{
		runner:       runner,
		content:      content,
		orchestrator: orchestrator,
		executor:     executor,
		gate:         gate,
		notifier:     notifier,
		retryDelay:   healing.DefaultRetryDelay,
		log:          slog.Default().With("component", "stage-publish"),
	}
}

// PublishOutcome summarizes one publish stage run.
type PublishOutcome struct {
	Success      bool
	RunID        string
	ContentID    string
	ChannelsOK   int
	ChannelsFail int
}

// Run executes one publish pass under its run envelope. An empty approval
// queue is a normal completion, not a failure.
func (s *PublishStage) Run(ctx context.Context, trigger domain.Trigger) *PublishOutcome {
	run, err := s.runner.start(ctx, domain.StagePublish, trigger)
	if err != nil {
		s.log.Error("Failed to start publish run", "error", err)
		return &PublishOutcome{}
	}
	outcome := &PublishOutcome{RunID: run.ID}

	item, err := s.content.NextApproved(ctx)
	if err != nil {
		recordID, recErr := s.executor.Record(ctx, healing.Failure{
			Component: domain.ComponentPublisher,
			Kind:      InferKind(err),
			Message:   err.Error(),
		})
		if recErr != nil {
			s.log.Error("Failed to record approval queue failure", "error", recErr)
		}
		s.runner.fail(ctx, run, err.Error(), recordID)
		return outcome
	}
	if item == nil {
		s.log.Info("No approved content waiting")
		outcome.Success = true
		s.runner.complete(ctx, run, 0, &domain.RunMetadata{
			Publish: &domain.PublishMetadata{Message: "no_approved_content"},
		})
		return outcome
	}
	outcome.ContentID = item.ID

	agg, err := s.orchestrator.PublishAll(ctx, item)
	selfHealing := ""
	if err != nil {
		agg, err = s.retryFanout(ctx, run, item, err)
		if err != nil {
			return outcome
		}
		selfHealing = "L1_retry_success"
	}

	outcome.ChannelsOK = agg.Successes
	outcome.ChannelsFail = agg.Failures
	outcome.Success = agg.Successes > 0 || agg.Failures == 0

	if agg.Successes == 0 && agg.Failures > 0 {
		// Every real channel failed. The orchestrator already recorded each
		// channel's error; the run links one summary record on top.
		msg := fmt.Sprintf("all %d channel deliveries failed", agg.Failures)
		recordID, recErr := s.executor.Record(ctx, healing.Failure{
			Component: domain.ComponentPublisher,
			Kind:      domain.ErrAPIError,
			Message:   msg,
			ContentID: item.ID,
		})
		if recErr != nil {
			s.log.Error("Failed to record fanout failure", "error", recErr)
		}
		s.runner.fail(ctx, run, msg, recordID)
		return outcome
	}

	if agg.Successes > 0 {
		s.notifier.Published(ctx, item.ID, item.Title, agg.ChannelNames())
	}

	meta := &domain.PublishMetadata{
		ChannelsOK:   agg.Successes,
		ChannelsFail: agg.Failures,
		Channels:     agg.ChannelNames(),
		ContentID:    item.ID,
		SelfHealing:  selfHealing,
	}
	if agg.Successes == 0 && agg.Failures == 0 {
		// Every channel came back as a mock outcome; nothing real happened.
		meta.Message = "all_channels_mocked"
	}
	s.runner.complete(ctx, run, 1, &domain.RunMetadata{Publish: meta})
	return outcome
}

// retryFanout handles a fanout-level error (the orchestrator could not even
// dispatch). Credential failures escalate instead of retrying; everything
// else gets one immediate retry of the whole fanout.
func (s *PublishStage) retryFanout(ctx context.Context, run *domain.PipelineRun, item *domain.ContentItem, cause error) (*publish.Aggregate, error) {
	kind := InferKind(cause)
	failure := healing.Failure{
		Component: domain.ComponentPublisher,
		Kind:      kind,
		Message:   cause.Error(),
		ContentID: item.ID,
	}

	if kind == domain.ErrAuthFail {
		recordID, escErr := s.gate.Escalate(ctx, s.executor, failure)
		if escErr != nil {
			s.log.Error("Failed to escalate fanout failure", "error", escErr)
		}
		s.runner.fail(ctx, run, cause.Error(), recordID)
		return nil, cause
	}

	s.log.Warn("Fanout failed, retrying once", "error", cause)
	agg, recordID, retryErr := healing.RetryImmediate(ctx, s.executor, failure, s.retryDelay,
		func(ctx context.Context) (*publish.Aggregate, error) {
			return s.orchestrator.PublishAll(ctx, item)
		})
	if retryErr != nil {
		s.runner.fail(ctx, run, retryErr.Error(), recordID)
		return nil, retryErr
	}
	return *agg, nil
}

package healing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/infra/storage"
	"github.com/apppro/content-pipeline/internal/metrics"
)

// DefaultRetryDelay is the L1 wait before re-invoking a failed unit of work.
const DefaultRetryDelay = 5 * time.Second

// Failure describes the originating error a retry is trying to clear.
type Failure struct {
	Component domain.Component
	Kind      domain.ErrorKind
	Message   string
	ContentID string
	ChannelID string
}

// Executor runs units of work under a healing policy, recording exactly one
// ErrorRecord per invocation and exactly one terminal write to that record.
// Executors are safe to share across independent units of work; the log
// store serializes per-record writes.
type Executor struct {
	errors storage.ErrorRepository
	sleep  func(time.Duration)
	now    func() time.Time
}

// NewExecutor creates a retry executor backed by the given error repository.
func NewExecutor(errors storage.ErrorRepository) *Executor {
	return &Executor{
		errors: errors,
		sleep:  time.Sleep,
		now:    time.Now,
	}
}

// Record persists the originating failure as a new ErrorRecord and returns
// its id. Callers that retry go through RetryImmediate or RetryBackoff
// instead; Record alone leaves the record unresolved for the healing cycle.
func (ex *Executor) Record(ctx context.Context, f Failure) (string, error) {
	rec := &domain.ErrorRecord{
		ID:         uuid.New().String(),
		OccurredAt: ex.now().UnixMilli(),
		Component:  f.Component,
		Kind:       f.Kind,
		Message:    f.Message,
		ContentID:  f.ContentID,
		ChannelID:  f.ChannelID,
	}
	if err := ex.errors.Add(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to record originating error: %w", err)
	}
	metrics.ErrorsTotal.WithLabelValues(string(f.Component), string(f.Kind)).Inc()
	return rec.ID, nil
}

// RecordFix appends a remediation attempt to an existing record. Stages that
// run their own remediation loop (the generation quality gate) use this to
// attribute the loop's attempts to the originating record.
func (ex *Executor) RecordFix(ctx context.Context, recordID string, result domain.FixResult, action string) error {
	return ex.errors.RecordFix(ctx, recordID, result, action)
}

// RetryImmediate is the L1 strategy: record the originating error, wait the
// given delay (0 skips the wait), then re-invoke fn exactly once. On success
// the record is resolved and the result returned; on failure the record is
// marked failed and the retry error returned; the caller treats that as
// final for this cycle, there is no recursion.
func RetryImmediate[T any](
	ctx context.Context,
	ex *Executor,
	f Failure,
	delay time.Duration,
	fn func(context.Context) (T, error),
) (*T, string, error) {
	recordID, err := ex.Record(ctx, f)
	if err != nil {
		return nil, "", err
	}

	if delay > 0 {
		ex.sleep(delay)
	}

	result, retryErr := fn(ctx)
	if retryErr != nil {
		action := fmt.Sprintf("immediate retry failed: %s", retryErr)
		if err := ex.errors.RecordFix(ctx, recordID, domain.FixFailed, action); err != nil {
			return nil, recordID, err
		}
		metrics.RetriesTotal.WithLabelValues(string(f.Component), string(L1), "failed").Inc()
		return nil, recordID, retryErr
	}

	if err := ex.errors.RecordFix(ctx, recordID, domain.FixSuccess, "immediate retry succeeded"); err != nil {
		return nil, recordID, err
	}
	metrics.RetriesTotal.WithLabelValues(string(f.Component), string(L1), "success").Inc()
	metrics.HealedTotal.Inc()
	return &result, recordID, nil
}

// RetryBackoff is the L2 strategy: record the originating error, then attempt
// fn up to maxRetries times, waiting baseDelay * 2^(attempt-1) before each
// call. The first success resolves the record; exhaustion marks it failed and
// returns the last error.
func RetryBackoff[T any](
	ctx context.Context,
	ex *Executor,
	f Failure,
	maxRetries int,
	baseDelay time.Duration,
	fn func(context.Context) (T, error),
) (*T, string, error) {
	recordID, err := ex.Record(ctx, f)
	if err != nil {
		return nil, "", err
	}

	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		wait := baseDelay * (1 << (attempt - 1))
		if wait > 0 {
			ex.sleep(wait)
		}

		result, retryErr := fn(ctx)
		if retryErr == nil {
			action := fmt.Sprintf("backoff retry succeeded (attempt %d/%d)", attempt, maxRetries)
			if err := ex.errors.RecordFix(ctx, recordID, domain.FixSuccess, action); err != nil {
				return nil, recordID, err
			}
			metrics.RetriesTotal.WithLabelValues(string(f.Component), string(L2), "success").Inc()
			metrics.HealedTotal.Inc()
			return &result, recordID, nil
		}
		lastErr = retryErr
	}

	action := fmt.Sprintf("all %d backoff retries failed: %s", maxRetries, lastErr)
	if err := ex.errors.RecordFix(ctx, recordID, domain.FixFailed, action); err != nil {
		return nil, recordID, err
	}
	metrics.RetriesTotal.WithLabelValues(string(f.Component), string(L2), "failed").Inc()
	return nil, recordID, lastErr
}

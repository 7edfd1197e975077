package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/apppro/content-pipeline/internal/collect"
	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/healing"
	"github.com/apppro/content-pipeline/internal/infra/storage/memory"
	"github.com/apppro/content-pipeline/internal/notify"
)

// =============================================================================
// Fixture
// =============================================================================

type fixture struct {
	store    *memory.Store
	runs     *memory.RunRepo
	errors   *memory.ErrorRepo
	content  *memory.ContentRepo
	items    *memory.CollectedItemRepo
	runner   *Runner
	executor *healing.Executor
	gate     *healing.Gate
	notifier *notify.Notifier
}

func newFixture() *fixture {
	store := memory.NewStore()
	errRepo := memory.NewErrorRepo(store)
	return &fixture{
		store:    store,
		runs:     memory.NewRunRepo(store),
		errors:   errRepo,
		content:  memory.NewContentRepo(store),
		items:    memory.NewCollectedItemRepo(store),
		runner:   NewRunner(memory.NewRunRepo(store)),
		executor: healing.NewExecutor(errRepo),
		gate:     healing.NewGate(errRepo),
		notifier: notify.New(memory.NewNotificationRepo(store)),
	}
}

// lastRun returns the most recent pipeline run.
func (f *fixture) lastRun(t *testing.T) *domain.PipelineRun {
	t.Helper()
	runs, err := f.runs.ListRecent(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	return runs[0]
}

func (f *fixture) lastRunMetadata(t *testing.T) *domain.RunMetadata {
	t.Helper()
	run := f.lastRun(t)
	meta, err := domain.DecodeMetadata(run.Metadata)
	if err != nil {
		t.Fatal(err)
	}
	return meta
}

// scriptedCollector fails for the first failures calls, then succeeds.
type scriptedCollector struct {
	failures int
	err      error
	result   *collect.Result
	calls    int
}

func (c *scriptedCollector) Collect(ctx context.Context) (*collect.Result, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, c.err
	}
	return c.result, nil
}

func newsResult(n int) *collect.Result {
	items := make([]*domain.CollectedItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, &domain.CollectedItem{
			ID:     uuid.New().String(),
			Title:  "AI news item",
			URL:    "https://news.example.com/" + uuid.New().String(),
			Source: "Example Feed",
		})
	}
	return &collect.Result{Items: items, RawCount: n * 2, FeedsOK: 3, FeedsFailed: 1}
}

func newCollectStage(f *fixture, collector Collecter) *CollectStage {
	s := NewCollectStage(f.runner, collector, f.items, f.executor, f.gate)
	s.retryDelay = 0
	return s
}

// =============================================================================
// Collect stage
// =============================================================================

func TestCollectStage_Success(t *testing.T) {
	f := newFixture()
	s := newCollectStage(f, &scriptedCollector{result: newsResult(3)})

	outcome := s.Run(context.Background(), domain.TriggerScheduled)

	if !outcome.Success {
		t.Fatal("expected success")
	}
	if outcome.RawItems != 6 || outcome.SavedItems != 3 {
		t.Errorf("unexpected counts: raw=%d saved=%d", outcome.RawItems, outcome.SavedItems)
	}

	run := f.lastRun(t)
	if run.Status != domain.RunCompleted {
		t.Errorf("run status = %s, want completed", run.Status)
	}
	if run.Stage != domain.StageCollect {
		t.Errorf("run stage = %s, want collect", run.Stage)
	}
	if run.Trigger != domain.TriggerScheduled {
		t.Errorf("run trigger = %s, want scheduled", run.Trigger)
	}

	meta := f.lastRunMetadata(t)
	if meta.Collect == nil {
		t.Fatal("expected collect metadata")
	}
	if meta.Collect.FeedsOK != 3 || meta.Collect.FeedsFailed != 1 {
		t.Errorf("unexpected feed counts: %+v", meta.Collect)
	}
	if meta.Collect.SelfHealing != "" {
		t.Errorf("self_healing = %q, want empty", meta.Collect.SelfHealing)
	}
	if len(f.store.Errors()) != 0 {
		t.Errorf("expected no error records, got %d", len(f.store.Errors()))
	}
}

func TestCollectStage_TimeoutRetriedOnce(t *testing.T) {
	f := newFixture()
	c := &scriptedCollector{
		failures: 1,
		err:      errors.New("request timeout fetching feeds"),
		result:   newsResult(2),
	}
	s := newCollectStage(f, c)

	outcome := s.Run(context.Background(), domain.TriggerScheduled)

	if !outcome.Success {
		t.Fatal("expected retry to recover the run")
	}
	if c.calls != 2 {
		t.Errorf("collector calls = %d, want 2", c.calls)
	}

	meta := f.lastRunMetadata(t)
	if meta.Collect.SelfHealing != "L1_retry_success" {
		t.Errorf("self_healing = %q, want L1_retry_success", meta.Collect.SelfHealing)
	}
	if f.lastRun(t).Status != domain.RunCompleted {
		t.Error("run should complete after a successful retry")
	}

	recs := f.store.Errors()
	if len(recs) != 1 {
		t.Fatalf("expected exactly one error record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Component != domain.ComponentRSSCollector || rec.Kind != domain.ErrTimeout {
		t.Errorf("record = %s/%s, want rss_collector/timeout", rec.Component, rec.Kind)
	}
	if !rec.Resolved() || rec.FixResult != domain.FixSuccess {
		t.Errorf("record should be resolved by the retry: %+v", rec)
	}
}

func TestCollectStage_RetryFailureFailsRun(t *testing.T) {
	f := newFixture()
	c := &scriptedCollector{failures: 10, err: errors.New("connection refused")}
	s := newCollectStage(f, c)

	outcome := s.Run(context.Background(), domain.TriggerManual)

	if outcome.Success {
		t.Fatal("expected failure when the retry also fails")
	}
	if c.calls != 2 {
		t.Errorf("collector calls = %d, want 2 (no recursion)", c.calls)
	}

	run := f.lastRun(t)
	if run.Status != domain.RunFailed {
		t.Fatalf("run status = %s, want failed", run.Status)
	}

	recs := f.store.Errors()
	if len(recs) != 1 {
		t.Fatalf("expected one error record, got %d", len(recs))
	}
	if run.ErrorRecordID != recs[0].ID {
		t.Error("failed run should link its error record")
	}
	if recs[0].Resolved() || recs[0].FixResult != domain.FixFailed {
		t.Errorf("record should stay unresolved with a failed fix: %+v", recs[0])
	}
}

func TestCollectStage_AuthFailureEscalatesWithoutRetry(t *testing.T) {
	f := newFixture()
	c := &scriptedCollector{failures: 10, err: errors.New("401 unauthorized")}
	s := newCollectStage(f, c)

	outcome := s.Run(context.Background(), domain.TriggerScheduled)

	if outcome.Success {
		t.Fatal("expected failure")
	}
	if c.calls != 1 {
		t.Errorf("collector calls = %d, want 1 (credentials do not retry)", c.calls)
	}

	recs := f.store.Errors()
	if len(recs) != 1 {
		t.Fatalf("expected one error record, got %d", len(recs))
	}
	if recs[0].Kind != domain.ErrAuthFail {
		t.Errorf("kind = %s, want auth_fail", recs[0].Kind)
	}
	if !recs[0].Escalated {
		t.Error("auth failure should be escalated immediately")
	}
	if f.lastRun(t).Status != domain.RunFailed {
		t.Error("run should be failed")
	}
}

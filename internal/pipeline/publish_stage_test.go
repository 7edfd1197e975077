package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/publish"
)

// =============================================================================
// Fixture
// =============================================================================

// scriptedDistributor fails the first failures fanouts, then returns agg.
type scriptedDistributor struct {
	failures int
	err      error
	agg      *publish.Aggregate
	calls    int
}

func (d *scriptedDistributor) PublishAll(ctx context.Context, item *domain.ContentItem) (*publish.Aggregate, error) {
	d.calls++
	if d.calls <= d.failures {
		return nil, d.err
	}
	agg := *d.agg
	agg.ContentID = item.ID
	return &agg, nil
}

func seedApproved(t *testing.T, f *fixture) *domain.ContentItem {
	t.Helper()
	ctx := context.Background()
	item := &domain.ContentItem{
		ID:     "content-1",
		Status: domain.ContentDraft,
		Pillar: "automation-playbook",
		Title:  "Approved piece",
		Body:   []byte(`{"content":"x","slug":"approved-piece"}`),
	}
	if err := f.content.SaveDraft(ctx, item); err != nil {
		t.Fatal(err)
	}
	if err := f.content.SetStatus(ctx, item.ID, domain.ContentApproved); err != nil {
		t.Fatal(err)
	}
	return item
}

func newPublishStage(f *fixture, d Distributor) *PublishStage {
	s := NewPublishStage(f.runner, f.content, d, f.executor, f.gate, f.notifier)
	s.retryDelay = 0
	return s
}

func deliveredAggregate() *publish.Aggregate {
	return &publish.Aggregate{
		Total:     2,
		Successes: 1,
		Failures:  0,
		Results: []publish.ChannelResult{
			{ChannelName: "blog", Success: true},
			{ChannelName: "newsletter", Mock: true},
		},
	}
}

// =============================================================================
// Publish stage
// =============================================================================

func TestPublishStage_NoApprovedContent(t *testing.T) {
	f := newFixture()
	d := &scriptedDistributor{agg: deliveredAggregate()}
	s := newPublishStage(f, d)

	outcome := s.Run(context.Background(), domain.TriggerScheduled)

	if !outcome.Success {
		t.Fatal("an empty approval queue is a normal completion")
	}
	if d.calls != 0 {
		t.Errorf("distributor calls = %d, want 0", d.calls)
	}
	if f.lastRun(t).Status != domain.RunCompleted {
		t.Error("run should be completed")
	}
	meta := f.lastRunMetadata(t)
	if meta.Publish == nil || meta.Publish.Message != "no_approved_content" {
		t.Errorf("unexpected publish metadata: %+v", meta.Publish)
	}
}

func TestPublishStage_SuccessfulFanout(t *testing.T) {
	f := newFixture()
	item := seedApproved(t, f)
	d := &scriptedDistributor{agg: deliveredAggregate()}
	s := newPublishStage(f, d)

	outcome := s.Run(context.Background(), domain.TriggerScheduled)

	if !outcome.Success {
		t.Fatal("expected success")
	}
	if outcome.ContentID != item.ID {
		t.Errorf("content id = %q, want %q", outcome.ContentID, item.ID)
	}
	if outcome.ChannelsOK != 1 || outcome.ChannelsFail != 0 {
		t.Errorf("channels ok=%d fail=%d, want 1/0", outcome.ChannelsOK, outcome.ChannelsFail)
	}

	meta := f.lastRunMetadata(t)
	if meta.Publish == nil || meta.Publish.ChannelsOK != 1 {
		t.Fatalf("unexpected publish metadata: %+v", meta.Publish)
	}
	if len(meta.Publish.Channels) != 1 || meta.Publish.Channels[0] != "blog" {
		t.Errorf("channels = %v, want [blog]", meta.Publish.Channels)
	}
	if meta.Publish.SelfHealing != "" {
		t.Errorf("self_healing = %q, want empty", meta.Publish.SelfHealing)
	}

	notifs := f.store.Notifications()
	if len(notifs) != 1 || notifs[0].Type != domain.NotifyPublished {
		t.Errorf("expected one published notification, got %v", notifs)
	}
	if notifs[0].ContentID != item.ID {
		t.Error("notification should link the content item")
	}
}

func TestPublishStage_FanoutErrorRetriedOnce(t *testing.T) {
	f := newFixture()
	seedApproved(t, f)
	d := &scriptedDistributor{
		failures: 1,
		err:      errors.New("fetch active channels: connection refused"),
		agg:      deliveredAggregate(),
	}
	s := newPublishStage(f, d)

	outcome := s.Run(context.Background(), domain.TriggerScheduled)

	if !outcome.Success {
		t.Fatal("expected the retried fanout to succeed")
	}
	if d.calls != 2 {
		t.Errorf("distributor calls = %d, want 2", d.calls)
	}

	meta := f.lastRunMetadata(t)
	if meta.Publish.SelfHealing != "L1_retry_success" {
		t.Errorf("self_healing = %q, want L1_retry_success", meta.Publish.SelfHealing)
	}

	recs := f.store.Errors()
	if len(recs) != 1 {
		t.Fatalf("expected one error record, got %d", len(recs))
	}
	if recs[0].Component != domain.ComponentPublisher {
		t.Errorf("component = %s, want publisher", recs[0].Component)
	}
	if !recs[0].Resolved() {
		t.Error("record should be resolved by the successful retry")
	}
}

func TestPublishStage_FanoutRetryExhaustedFailsRun(t *testing.T) {
	f := newFixture()
	seedApproved(t, f)
	d := &scriptedDistributor{failures: 10, err: errors.New("service unavailable")}
	s := newPublishStage(f, d)

	outcome := s.Run(context.Background(), domain.TriggerScheduled)

	if outcome.Success {
		t.Fatal("expected failure")
	}
	if d.calls != 2 {
		t.Errorf("distributor calls = %d, want 2", d.calls)
	}

	run := f.lastRun(t)
	if run.Status != domain.RunFailed {
		t.Fatalf("run status = %s, want failed", run.Status)
	}
	recs := f.store.Errors()
	if len(recs) != 1 || run.ErrorRecordID != recs[0].ID {
		t.Error("failed run should link its single error record")
	}
}

func TestPublishStage_FanoutAuthFailureEscalates(t *testing.T) {
	f := newFixture()
	item := seedApproved(t, f)
	d := &scriptedDistributor{failures: 10, err: errors.New("403 forbidden")}
	s := newPublishStage(f, d)

	outcome := s.Run(context.Background(), domain.TriggerScheduled)

	if outcome.Success {
		t.Fatal("expected failure")
	}
	if d.calls != 1 {
		t.Errorf("distributor calls = %d, want 1 (no retry on credentials)", d.calls)
	}

	recs := f.store.Errors()
	if len(recs) != 1 {
		t.Fatalf("expected one error record, got %d", len(recs))
	}
	if recs[0].Kind != domain.ErrAuthFail || !recs[0].Escalated {
		t.Errorf("record should be an escalated auth_fail: %+v", recs[0])
	}
	if recs[0].ContentID != item.ID {
		t.Error("record should link the content item")
	}
}

func TestPublishStage_AllChannelsFailedFailsRun(t *testing.T) {
	f := newFixture()
	item := seedApproved(t, f)
	d := &scriptedDistributor{agg: &publish.Aggregate{
		Total:    2,
		Failures: 2,
		Results: []publish.ChannelResult{
			{ChannelName: "blog", Error: "500 internal server error"},
			{ChannelName: "newsletter", Error: "500 internal server error"},
		},
	}}
	s := newPublishStage(f, d)

	outcome := s.Run(context.Background(), domain.TriggerScheduled)

	if outcome.Success {
		t.Fatal("zero deliveries with real errors must fail the stage")
	}
	if outcome.ChannelsOK != 0 || outcome.ChannelsFail != 2 {
		t.Errorf("channels ok=%d fail=%d, want 0/2", outcome.ChannelsOK, outcome.ChannelsFail)
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
		t.Error("failed run should link the summary error record")
	}
	if recs[0].Component != domain.ComponentPublisher || recs[0].ContentID != item.ID {
		t.Errorf("unexpected summary record: %+v", recs[0])
	}
	if len(f.store.Notifications()) != 0 {
		t.Error("nothing was delivered, so no published notification")
	}
}

func TestPublishStage_AllChannelsMocked(t *testing.T) {
	f := newFixture()
	seedApproved(t, f)
	d := &scriptedDistributor{agg: &publish.Aggregate{
		Total: 1,
		Results: []publish.ChannelResult{
			{ChannelName: "sns", Mock: true},
		},
	}}
	s := newPublishStage(f, d)

	outcome := s.Run(context.Background(), domain.TriggerScheduled)

	if !outcome.Success {
		t.Fatal("an all-mock fanout is not a stage failure")
	}
	meta := f.lastRunMetadata(t)
	if meta.Publish.Message != "all_channels_mocked" {
		t.Errorf("message = %q, want all_channels_mocked", meta.Publish.Message)
	}
	if len(f.store.Notifications()) != 0 {
		t.Error("nothing was delivered, so no published notification")
	}
}

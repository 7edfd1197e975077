package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/generate"
)

// =============================================================================
// Fixture
// =============================================================================

// scriptedGenerator returns drafts (or errors) in order, repeating the last
// entry once the script runs out.
type scriptedGenerator struct {
	drafts []*generate.Draft
	errs   []error
	calls  int
}

func (g *scriptedGenerator) Generate(ctx context.Context, req generate.Request) (*generate.Draft, error) {
	i := g.calls
	g.calls++
	if i >= len(g.drafts) {
		i = len(g.drafts) - 1
	}
	if g.errs != nil && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	return g.drafts[i], nil
}

func lowQualityDraft() *generate.Draft {
	return &generate.Draft{
		Title:           "Short",
		Slug:            "short",
		Content:         "Too thin to pass any check.",
		Excerpt:         "Thin.",
		MetaDescription: "Thin.",
		Category:        "ai-tool-review",
	}
}

func goodDraft(t *testing.T) *generate.Draft {
	t.Helper()
	mock := &generate.Mock{}
	draft, err := mock.Generate(context.Background(), generate.Request{
		Topic:  "Automating editorial triage",
		Pillar: generate.PillarAutomationPlaybook,
	})
	if err != nil {
		t.Fatal(err)
	}
	return draft
}

func newGenerateStage(f *fixture, gen generate.Generator) *GenerateStage {
	s := NewGenerateStage(f.runner, gen, &generate.Scorer{}, f.content, f.items,
		f.executor, f.gate, f.notifier, "test-model")
	// Monday, so a weekday pillar resolves deterministically.
	s.now = func() time.Time { return time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC) }
	return s
}

func notificationTypes(f *fixture) []domain.NotificationType {
	var types []domain.NotificationType
	for _, n := range f.store.Notifications() {
		types = append(types, n.Type)
	}
	return types
}

// =============================================================================
// Generate stage
// =============================================================================

func TestGenerateStage_FirstAttemptPasses(t *testing.T) {
	f := newFixture()
	gen := &scriptedGenerator{drafts: []*generate.Draft{goodDraft(t)}}
	s := newGenerateStage(f, gen)

	outcome := s.Run(context.Background(), "", "", domain.TriggerScheduled)

	if !outcome.Success {
		t.Fatal("expected success")
	}
	if outcome.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", outcome.Attempts)
	}
	if outcome.QAScore < generate.PassThreshold {
		t.Errorf("score = %d, want >= %d", outcome.QAScore, generate.PassThreshold)
	}

	item, err := f.content.Get(context.Background(), outcome.ContentID)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != domain.ContentDraft {
		t.Errorf("content status = %s, want draft", item.Status)
	}
	if item.Pillar != generate.PillarWeeklyBriefing {
		t.Errorf("pillar = %q, want Monday's %q", item.Pillar, generate.PillarWeeklyBriefing)
	}
	body, err := domain.DecodeContentBody(item.Body)
	if err != nil {
		t.Fatal(err)
	}
	if body.QAScore != outcome.QAScore {
		t.Errorf("stored qa score = %d, want %d", body.QAScore, outcome.QAScore)
	}

	meta := f.lastRunMetadata(t)
	if meta.Generate == nil || meta.Generate.Attempts != 1 || meta.Generate.ContentID != item.ID {
		t.Errorf("unexpected generate metadata: %+v", meta.Generate)
	}
	if meta.Generate.Model != "test-model" {
		t.Errorf("model = %q, want test-model", meta.Generate.Model)
	}

	types := notificationTypes(f)
	if len(types) != 1 || types[0] != domain.NotifyDraftCreated {
		t.Errorf("notifications = %v, want [draft_created]", types)
	}
}

func TestGenerateStage_QualityMissTriggersRegeneration(t *testing.T) {
	f := newFixture()
	gen := &scriptedGenerator{drafts: []*generate.Draft{lowQualityDraft(), goodDraft(t)}}
	s := newGenerateStage(f, gen)

	outcome := s.Run(context.Background(), "", "", domain.TriggerScheduled)

	if !outcome.Success {
		t.Fatal("expected success on second attempt")
	}
	if outcome.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", outcome.Attempts)
	}
	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls)
	}

	recs := f.store.Errors()
	if len(recs) != 1 {
		t.Fatalf("expected one quality record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Component != domain.ComponentQAChecker || rec.Kind != domain.ErrQualityFail {
		t.Errorf("record = %s/%s, want qa_checker/quality_fail", rec.Component, rec.Kind)
	}
	if rec.FixResult != domain.FixFailed {
		t.Errorf("fix result = %s, want failed", rec.FixResult)
	}
	if rec.FixAction != "regeneration attempt 2/3" {
		t.Errorf("fix action = %q", rec.FixAction)
	}
}

func TestGenerateStage_AcceptsDraftOnExhaustion(t *testing.T) {
	f := newFixture()
	gen := &scriptedGenerator{drafts: []*generate.Draft{lowQualityDraft()}}
	s := newGenerateStage(f, gen)

	outcome := s.Run(context.Background(), "", "", domain.TriggerScheduled)

	if !outcome.Success {
		t.Fatal("the final draft is accepted even below threshold")
	}
	if outcome.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", outcome.Attempts)
	}
	if gen.calls != 3 {
		t.Errorf("generator calls = %d, want 3", gen.calls)
	}

	// Two non-final misses, each with a failed remediation.
	recs := f.store.Errors()
	if len(recs) != 2 {
		t.Fatalf("expected two quality records, got %d", len(recs))
	}

	types := notificationTypes(f)
	want := map[domain.NotificationType]bool{}
	for _, typ := range types {
		want[typ] = true
	}
	if !want[domain.NotifyQAFailed] || !want[domain.NotifyDraftCreated] {
		t.Errorf("notifications = %v, want qa_failed and draft_created", types)
	}

	item, err := f.content.Get(context.Background(), outcome.ContentID)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != domain.ContentDraft {
		t.Errorf("content status = %s, want draft", item.Status)
	}
}

func TestGenerateStage_ModelAuthFailureEscalates(t *testing.T) {
	f := newFixture()
	gen := &scriptedGenerator{
		drafts: []*generate.Draft{nil},
		errs:   []error{errors.New("generation request failed: status 401")},
	}
	s := newGenerateStage(f, gen)

	outcome := s.Run(context.Background(), "", "", domain.TriggerManual)

	if outcome.Success {
		t.Fatal("expected failure")
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}

	recs := f.store.Errors()
	if len(recs) != 1 {
		t.Fatalf("expected one error record, got %d", len(recs))
	}
	if recs[0].Component != domain.ComponentAIGenerator || recs[0].Kind != domain.ErrAuthFail {
		t.Errorf("record = %s/%s, want ai_generator/auth_fail", recs[0].Component, recs[0].Kind)
	}
	if !recs[0].Escalated {
		t.Error("auth failure should escalate")
	}
	if f.lastRun(t).Status != domain.RunFailed {
		t.Error("run should be failed")
	}
}

func TestGenerateStage_ConsumesNewsContext(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seed := []*domain.CollectedItem{
		{ID: "news-1", Title: "Model release", URL: "https://a.example.com/1", Source: "A"},
		{ID: "news-2", Title: "Benchmark results", URL: "https://b.example.com/2", Source: "B"},
	}
	if _, err := f.items.SaveNew(ctx, seed); err != nil {
		t.Fatal(err)
	}

	gen := &scriptedGenerator{drafts: []*generate.Draft{goodDraft(t)}}
	s := newGenerateStage(f, gen)

	if outcome := s.Run(ctx, "", "", domain.TriggerScheduled); !outcome.Success {
		t.Fatal("expected success")
	}

	remaining, err := f.items.ListUnused(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected all news marked used, %d remain", len(remaining))
	}
}

func TestGenerateStage_PillarOverride(t *testing.T) {
	f := newFixture()
	gen := &scriptedGenerator{drafts: []*generate.Draft{goodDraft(t)}}
	s := newGenerateStage(f, gen)

	outcome := s.Run(context.Background(), "Prompting for review workflows", generate.PillarPromptGuide, domain.TriggerManual)
	if !outcome.Success {
		t.Fatal("expected success")
	}

	item, err := f.content.Get(context.Background(), outcome.ContentID)
	if err != nil {
		t.Fatal(err)
	}
	if item.Pillar != generate.PillarPromptGuide {
		t.Errorf("pillar = %q, want override %q", item.Pillar, generate.PillarPromptGuide)
	}
}

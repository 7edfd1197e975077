package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/generate"
	"github.com/apppro/content-pipeline/internal/healing"
	"github.com/apppro/content-pipeline/internal/infra/storage"
	"github.com/apppro/content-pipeline/internal/notify"
)

// maxGenerateAttempts bounds the quality-gate loop: one initial attempt plus
// two regenerations. The final attempt's draft is accepted regardless of
// score; a human reviews every draft anyway.
const maxGenerateAttempts = 3

// newsContextSize is how many unused collected items feed the model.
const newsContextSize = 5

// GenerateStage produces one draft through the quality-gated generation
// loop. It applies no stage-level L1 retry; regeneration is its retry.
type GenerateStage struct {
	runner    *Runner
	generator generate.Generator
	scorer    *generate.Scorer
	content   storage.ContentRepository
	items     storage.CollectedItemRepository
	executor  *healing.Executor
	gate      *healing.Gate
	notifier  *notify.Notifier
	model     string
	log       *slog.Logger
	now       func() time.Time
}

// NewGenerateStage wires the generate stage. model names the configured
// generative model for run metadata only.
func NewGenerateStage(
	runner *Runner,
	generator generate.Generator,
	scorer *generate.Scorer,
	content storage.ContentRepository,
	items storage.CollectedItemRepository,
	executor *healing.Executor,
	gate *healing.Gate,
	notifier *notify.Notifier,
	model string,
) *GenerateStage {
	return &GenerateStage{
		runner:    runner,
		generator: generator,
		scorer:    scorer,
		content:   content,
		items:     items,
		executor:  executor,
		gate:      gate,
		notifier:  notifier,
		model:     model,
		log:       slog.Default().With("component", "stage-generate"),
		now:       time.Now,
	}
}

// GenerateOutcome summarizes one generate stage run.
type GenerateOutcome struct {
	Success   bool
	RunID     string
	ContentID string
	Title     string
	QAScore   int
	Attempts  int
}

// Run executes one generation under its run envelope. topic and
// pillarOverride are optional; defaults derive from the weekday pillar.
func (s *GenerateStage) Run(ctx context.Context, topic, pillarOverride string, trigger domain.Trigger) *GenerateOutcome {
	run, err := s.runner.start(ctx, domain.StageGenerate, trigger)
	if err != nil {
		s.log.Error("Failed to start generate run", "error", err)
		return &GenerateOutcome{}
	}
	outcome := &GenerateOutcome{RunID: run.ID}

	pillar := pillarOverride
	if pillar == "" {
		pillar = generate.TodayPillar(s.now())
	}
	if topic == "" {
		subject := pillar
		if subject == "" {
			subject = "practical ai"
		}
		topic = fmt.Sprintf("latest %s trends", subject)
	}

	news, newsIDs := s.loadNewsContext(ctx)
	req := generate.Request{Topic: topic, Pillar: pillar, News: news}

	var draft *generate.Draft
	var quality generate.QualityResult
	attempt := 0
	for attempt = 1; attempt <= maxGenerateAttempts; attempt++ {
		if attempt > 1 {
			s.log.Info("Regenerating draft", "attempt", attempt, "max", maxGenerateAttempts)
		}

		draft, err = s.generator.Generate(ctx, req)
		if err != nil {
			s.failGeneration(ctx, run, err)
			outcome.Attempts = attempt
			return outcome
		}

		quality = s.scorer.Score(draft)
		if quality.Passed {
			break
		}

		if attempt < maxGenerateAttempts {
			s.recordQualityMiss(ctx, quality.Score, attempt)
			continue
		}

		// Exhausted: accept the final draft below threshold.
		s.log.Warn("Quality gate missed on final attempt, accepting draft",
			"score", quality.Score, "threshold", generate.PassThreshold)
		s.notifier.QAFailed(ctx, topic, quality.Score, attempt)
		break
	}
	if attempt > maxGenerateAttempts {
		attempt = maxGenerateAttempts
	}

	item, err := s.saveDraft(ctx, draft, pillar, quality.Score)
	if err != nil {
		recordID, recErr := s.executor.Record(ctx, healing.Failure{
			Component: domain.ComponentAIGenerator,
			Kind:      InferKind(err),
			Message:   err.Error(),
		})
		if recErr != nil {
			s.log.Error("Failed to record draft save failure", "error", recErr)
		}
		s.runner.fail(ctx, run, err.Error(), recordID)
		return outcome
	}

	if len(newsIDs) > 0 {
		if err := s.items.MarkUsed(ctx, newsIDs); err != nil {
			s.log.Warn("Failed to mark news items used", "error", err)
		}
	}
	s.notifier.DraftCreated(ctx, item.ID, item.Title, quality.Score)

	outcome.Success = true
	outcome.ContentID = item.ID
	outcome.Title = item.Title
	outcome.QAScore = quality.Score
	outcome.Attempts = attempt

	s.runner.complete(ctx, run, 1, &domain.RunMetadata{
		Generate: &domain.GenerateMetadata{
			Pillar:    pillar,
			QAScore:   quality.Score,
			Attempts:  attempt,
			ContentID: item.ID,
			Model:     s.model,
		},
	})
	return outcome
}

func (s *GenerateStage) loadNewsContext(ctx context.Context) ([]generate.NewsItem, []string) {
	recent, err := s.items.ListUnused(ctx, newsContextSize)
	if err != nil {
		// Context is an enrichment; generation proceeds without it.
		s.log.Warn("Failed to load news context", "error", err)
		return nil, nil
	}

	news := make([]generate.NewsItem, 0, len(recent))
	ids := make([]string, 0, len(recent))
	for _, item := range recent {
		news = append(news, generate.NewsItem{
			Title:   item.Title,
			Source:  item.Source,
			Summary: item.Summary,
		})
		ids = append(ids, item.ID)
	}
	return news, ids
}

// failGeneration records the model failure and fails the run. Credential
// failures escalate immediately.
func (s *GenerateStage) failGeneration(ctx context.Context, run *domain.PipelineRun, err error) {
	kind := InferKind(err)
	failure := healing.Failure{
		Component: domain.ComponentAIGenerator,
		Kind:      kind,
		Message:   err.Error(),
	}

	var recordID string
	if kind == domain.ErrAuthFail {
		id, escErr := s.gate.Escalate(ctx, s.executor, failure)
		if escErr != nil {
			s.log.Error("Failed to escalate generation failure", "error", escErr)
		}
		recordID = id
	} else {
		id, recErr := s.executor.Record(ctx, failure)
		if recErr != nil {
			s.log.Error("Failed to record generation failure", "error", recErr)
		}
		recordID = id
	}
	s.runner.fail(ctx, run, err.Error(), recordID)
}

// recordQualityMiss writes the quality_fail record for a non-final attempt
// and immediately marks its remediation as the upcoming regeneration.
func (s *GenerateStage) recordQualityMiss(ctx context.Context, score, attempt int) {
	recordID, err := s.executor.Record(ctx, healing.Failure{
		Component: domain.ComponentQAChecker,
		Kind:      domain.ErrQualityFail,
		Message:   fmt.Sprintf("quality score %d/%d below threshold %d (attempt %d)", score, generate.MaxScore, generate.PassThreshold, attempt),
	})
	if err != nil {
		s.log.Error("Failed to record quality miss", "error", err)
		return
	}
	action := fmt.Sprintf("regeneration attempt %d/%d", attempt+1, maxGenerateAttempts)
	if err := s.executor.RecordFix(ctx, recordID, domain.FixFailed, action); err != nil {
		s.log.Error("Failed to record regeneration attempt", "error", err)
	}
}

func (s *GenerateStage) saveDraft(ctx context.Context, draft *generate.Draft, pillar string, qaScore int) (*domain.ContentItem, error) {
	body, err := domain.EncodeContentBody(&domain.ContentBody{
		Content:         draft.Content,
		Slug:            draft.Slug,
		Excerpt:         draft.Excerpt,
		MetaDescription: draft.MetaDescription,
		Category:        draft.Category,
		Tags:            draft.Tags,
		QAScore:         qaScore,
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UnixMilli()
	item := &domain.ContentItem{
		ID:        uuid.New().String(),
		Status:    domain.ContentDraft,
		Pillar:    pillar,
		Title:     draft.Title,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.content.SaveDraft(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

package generate

import (
	"context"
	"strings"
	"testing"
)

func passingDraft() *Draft {
	content := strings.Repeat("Useful sentence with actual substance in it. ", 40)
	content += "\n## First\n\ntext\n## Second\n\ntext\n## Third\n\ntext\n"
	content += "[tools](https://example.com/tools) [guides](https://example.com/guides)\n"
	return &Draft{
		Title:           "Practical automation with small models",
		Slug:            "practical-automation-with-small-models",
		Content:         content,
		Excerpt:         "How small models change day-to-day automation work.",
		MetaDescription: "Small models in practice.",
		Category:        PillarToolReview,
		Tags:            []string{"ai"},
	}
}

func TestScore_PassingDraft(t *testing.T) {
	s := &Scorer{LinkHost: "example.com"}
	result := s.Score(passingDraft())
	if !result.Passed {
		for _, c := range result.Checks {
			if !c.Passed {
				t.Logf("failed check: %s (%s)", c.Name, c.Detail)
			}
		}
		t.Fatalf("expected pass, score %d/%d", result.Score, MaxScore)
	}
	if result.Score != MaxScore {
		t.Errorf("expected perfect score, got %d", result.Score)
	}
	if len(result.Checks) != MaxScore {
		t.Errorf("expected %d checks, got %d", MaxScore, len(result.Checks))
	}
}

func TestScore_TwoFailuresStillPass(t *testing.T) {
	s := &Scorer{LinkHost: "example.com"}
	d := passingDraft()
	d.Title = strings.Repeat("long title ", 10) // fails title length
	d.Excerpt = ""                              // fails excerpt

	result := s.Score(d)
	if result.Score != MaxScore-2 {
		t.Fatalf("expected score %d, got %d", MaxScore-2, result.Score)
	}
	if !result.Passed {
		t.Error("two failures must still clear the gate")
	}
}

func TestScore_ThreeFailuresFail(t *testing.T) {
	s := &Scorer{LinkHost: "example.com"}
	d := passingDraft()
	d.Title = strings.Repeat("long title ", 10)
	d.Excerpt = ""
	d.Category = "not-a-pillar"

	result := s.Score(d)
	if result.Passed {
		t.Errorf("three failures must fail the gate, score %d", result.Score)
	}
}

func TestScore_IndividualChecks(t *testing.T) {
	s := &Scorer{LinkHost: "example.com"}

	tests := []struct {
		name    string
		mutate  func(*Draft)
		failing string
	}{
		{"short content", func(d *Draft) { d.Content = "## a\n## b\n## c\nexample.com example.com" }, "content length"},
		{"few headings", func(d *Draft) {
			d.Content = strings.ReplaceAll(d.Content, "## ", "")
		}, "h2 structure"},
		{"no internal links", func(d *Draft) {
			d.Content = strings.ReplaceAll(d.Content, "example.com", "other.net")
		}, "internal links"},
		{"empty meta", func(d *Draft) { d.MetaDescription = "" }, "meta description"},
		{"empty markdown link", func(d *Draft) { d.Content += "[broken]( )" }, "markdown validity"},
		{"invalid category", func(d *Draft) { d.Category = "misc" }, "category"},
	}

	for _, tt := range tests {
		d := passingDraft()
		tt.mutate(d)
		result := s.Score(d)

		found := false
		for _, c := range result.Checks {
			if c.Name == tt.failing {
				found = true
				if c.Passed {
					t.Errorf("%s: check %q should fail", tt.name, tt.failing)
				}
			}
		}
		if !found {
			t.Errorf("%s: check %q missing from result", tt.name, tt.failing)
		}
	}
}

func TestScore_MockDraftPassesGate(t *testing.T) {
	mock := &Mock{LinkHost: "example.com"}
	draft, err := mock.Generate(context.Background(), Request{
		Topic:  "Automating feed triage",
		Pillar: PillarAutomationPlaybook,
	})
	if err != nil {
		t.Fatal(err)
	}

	s := &Scorer{LinkHost: "example.com"}
	result := s.Score(draft)
	if !result.Passed {
		for _, c := range result.Checks {
			if !c.Passed {
				t.Logf("failed check: %s (%s)", c.Name, c.Detail)
			}
		}
		t.Fatalf("mock draft must clear the gate, score %d/%d", result.Score, MaxScore)
	}
}

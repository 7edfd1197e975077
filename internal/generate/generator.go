// Package generate implements the generate capability: produce a draft for a
// topic via a generative model endpoint and grade it with the quality scorer.
package generate

import (
	"context"
	"strings"
	"time"
)

// Pillars are the weekday content tracks. Each weekday owns one pillar;
// weekends have none and the generate stage falls back to the default topic.
const (
	PillarWeeklyBriefing     = "weekly-ai-briefing"
	PillarToolReview         = "ai-tool-review"
	PillarAutomationPlaybook = "automation-playbook"
	PillarIndustryGuide      = "industry-ai-guide"
	PillarPromptGuide        = "prompt-guide"
)

var pillarByWeekday = map[time.Weekday]string{
	time.Monday:    PillarWeeklyBriefing,
	time.Tuesday:   PillarToolReview,
	time.Wednesday: PillarAutomationPlaybook,
	time.Thursday:  PillarIndustryGuide,
	time.Friday:    PillarPromptGuide,
}

// ValidPillars is the category whitelist the quality scorer checks against.
var ValidPillars = []string{
	PillarWeeklyBriefing,
	PillarToolReview,
	PillarAutomationPlaybook,
	PillarIndustryGuide,
	PillarPromptGuide,
}

// TodayPillar returns the pillar assigned to the given day, or "" on
// weekends.
func TodayPillar(t time.Time) string {
	return pillarByWeekday[t.Weekday()]
}

// NewsItem is one piece of collected material fed to the model as context.
type NewsItem struct {
	Title   string
	Source  string
	Summary string
}

// Request describes one draft to produce.
type Request struct {
	Topic  string
	Pillar string
	News   []NewsItem
}

// Draft is a model-produced candidate post, pre-scoring.
type Draft struct {
	Title           string   `json:"title"`
	Slug            string   `json:"slug"`
	Content         string   `json:"content"`
	Excerpt         string   `json:"excerpt"`
	MetaDescription string   `json:"meta_description"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags"`
}

// Generator produces one draft per call. Implementations must be safe for
// concurrent use.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Draft, error)
}

// BuildSlug derives a URL slug from a title: lowercase, alphanumerics and
// hyphens only, capped at 80 bytes.
func BuildSlug(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteRune('-')
		}
	}
	slug := b.String()
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	if len(slug) > 80 {
		slug = strings.Trim(slug[:80], "-")
	}
	return slug
}

// BuildNewsContext renders collected items into the context block passed to
// the model, capped at five items.
func BuildNewsContext(news []NewsItem) string {
	if len(news) == 0 {
		return ""
	}
	if len(news) > 5 {
		news = news[:5]
	}
	var b strings.Builder
	for i, n := range news {
		if i > 0 {
			b.WriteString("\n\n")
		}
		summary := n.Summary
		if summary == "" {
			summary = "(no summary)"
		}
		b.WriteString(strings.Join([]string{
			string(rune('1'+i)) + ". [" + n.Source + "] " + n.Title,
			"   " + summary,
		}, "\n"))
	}
	return b.String()
}

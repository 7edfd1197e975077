package generate

import (
	"fmt"
	"regexp"
	"strings"
)

// PassThreshold is the minimum score out of MaxScore that clears the quality
// gate. Two minor check failures are tolerated.
const (
	PassThreshold = 6
	MaxScore      = 8
)

var (
	h2Pattern        = regexp.MustCompile(`(?m)^## `)
	emptyLinkPattern = regexp.MustCompile(`\[[^\]]*\]\(\s*\)`)
)

// QualityCheck is one graded heuristic.
type QualityCheck struct {
	Name   string
	Passed bool
	Detail string
}

// QualityResult is the outcome of scoring one draft.
type QualityResult struct {
	Passed bool
	Score  int
	Checks []QualityCheck
}

// Scorer grades drafts with fixed structural heuristics. LinkHost is the
// site host internal links must point at; empty disables that check's
// host matching and counts any markdown link.
type Scorer struct {
	LinkHost string
}

// Score runs all eight checks against the draft. The gate passes at
// PassThreshold or better.
func (s *Scorer) Score(d *Draft) QualityResult {
	var checks []QualityCheck
	add := func(name string, passed bool, detail string) {
		checks = append(checks, QualityCheck{Name: name, Passed: passed, Detail: detail})
	}

	contentLen := len([]rune(d.Content))
	add("content length", contentLen >= 1500 && contentLen <= 4000,
		fmt.Sprintf("%d chars (want 1500-4000)", contentLen))

	h2Count := len(h2Pattern.FindAllString(d.Content, -1))
	add("h2 structure", h2Count >= 3, fmt.Sprintf("%d headings (min 3)", h2Count))

	linkCount := s.countInternalLinks(d.Content)
	add("internal links", linkCount >= 2, fmt.Sprintf("%d links (min 2)", linkCount))

	metaLen := len([]rune(d.MetaDescription))
	add("meta description", metaLen > 0 && metaLen <= 160,
		fmt.Sprintf("%d chars (max 160)", metaLen))

	titleLen := len([]rune(d.Title))
	add("title length", titleLen > 0 && titleLen <= 45,
		fmt.Sprintf("%d chars (max 45)", titleLen))

	brokenLinks := len(emptyLinkPattern.FindAllString(d.Content, -1))
	add("markdown validity", brokenLinks == 0,
		fmt.Sprintf("%d empty links", brokenLinks))

	excerptLen := len([]rune(d.Excerpt))
	add("excerpt length", excerptLen > 0 && excerptLen <= 200,
		fmt.Sprintf("%d chars (max 200)", excerptLen))

	validCategory := false
	for _, p := range ValidPillars {
		if d.Category == p {
			validCategory = true
			break
		}
	}
	add("category", validCategory, d.Category)

	score := 0
	for _, c := range checks {
		if c.Passed {
			score++
		}
	}
	return QualityResult{
		Passed: score >= PassThreshold,
		Score:  score,
		Checks: checks,
	}
}

func (s *Scorer) countInternalLinks(content string) int {
	if s.LinkHost != "" {
		return strings.Count(content, s.LinkHost)
	}
	return strings.Count(content, "](")
}

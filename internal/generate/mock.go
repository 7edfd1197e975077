package generate

import (
	"context"
	"fmt"
	"strings"
)

// Mock produces deterministic drafts without a model endpoint, for local
// runs with no API key configured. Drafts are built to clear the quality
// gate so the rest of the pipeline can be exercised end to end.
type Mock struct {
	// LinkHost feeds the internal-links check; defaults to example.com.
	LinkHost string
}

// Generate builds a draft from the request alone.
func (m *Mock) Generate(ctx context.Context, req Request) (*Draft, error) {
	host := m.LinkHost
	if host == "" {
		host = "example.com"
	}

	category := req.Pillar
	if category == "" {
		category = PillarToolReview
	}

	title := req.Topic
	if len([]rune(title)) > 45 {
		title = string([]rune(title)[:45])
	}

	var sections strings.Builder
	for i, heading := range []string{"Overview", "What changed", "How to apply it", "Takeaways"} {
		fmt.Fprintf(&sections, "## %s\n\n", heading)
		for j := 0; j < 4; j++ {
			fmt.Fprintf(&sections,
				"Paragraph %d.%d expands on %s with enough practical detail to be useful on its own: concrete steps, trade-offs, and where this fits in an existing workflow. ",
				i+1, j+1, req.Topic)
		}
		sections.WriteString("\n\n")
	}
	fmt.Fprintf(&sections, "Related tools: [directory](https://%s/tools) and [guides](https://%s/guides).\n", host, host)

	if ctxBlock := BuildNewsContext(req.News); ctxBlock != "" {
		sections.WriteString("\n## This week's signals\n\n")
		sections.WriteString(ctxBlock)
		sections.WriteString("\n")
	}

	excerpt := fmt.Sprintf("A practical look at %s: what changed and how to apply it.", req.Topic)
	return &Draft{
		Title:           title,
		Slug:            BuildSlug(title),
		Content:         sections.String(),
		Excerpt:         truncateRunes(excerpt, 200),
		MetaDescription: truncateRunes(excerpt, 160),
		Category:        category,
		Tags:            []string{"ai", "automation"},
	}, nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

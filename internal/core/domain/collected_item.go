package domain

// CollectedItem is one piece of raw material returned by the collect
// capability. Items feed the generate stage as context and are marked used
// once a draft has consumed them.
type CollectedItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	Summary     string `json:"summary,omitempty"`
	PublishedAt int64  `json:"published_at,omitempty"`
	CollectedAt int64  `json:"collected_at"`
	Used        bool   `json:"used"`
}

package domain

// DistributionStatus is the delivery state of one channel attempt.
type DistributionStatus string

const (
	DistributionPending   DistributionStatus = "pending"
	DistributionPublished DistributionStatus = "published"
	DistributionFailed    DistributionStatus = "failed"
)

// Distribution is one channel-delivery attempt for one content item.
// Created once per (content, channel) attempt and updated in place as
// delivery progresses, e.g. campaign metrics arriving later.
type Distribution struct {
	ID           string             `json:"id"`
	ContentID    string             `json:"content_id"`
	ChannelID    string             `json:"channel_id"`
	Status       DistributionStatus `json:"status"`
	PlatformID   string             `json:"platform_id,omitempty"`
	PlatformURL  string             `json:"platform_url,omitempty"`
	ScheduledAt  int64              `json:"scheduled_at,omitempty"`
	PublishedAt  int64              `json:"published_at,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	RetryCount   int                `json:"retry_count"`
	Metrics      []byte             `json:"metrics,omitempty"`
	CreatedAt    int64              `json:"created_at"`
	UpdatedAt    int64              `json:"updated_at"`
}

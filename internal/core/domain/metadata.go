package domain

import (
	"encoding/json"
	"fmt"
)

// RunMetadata is the tagged union of stage-specific metadata shapes. It is
// serialized into PipelineRun.Metadata at the storage boundary and decoded
// back to the concrete shape by the stage that wrote it.
type RunMetadata struct {
	Collect  *CollectMetadata  `json:"collect,omitempty"`
	Generate *GenerateMetadata `json:"generate,omitempty"`
	Publish  *PublishMetadata  `json:"publish,omitempty"`
	Healing  *HealingMetadata  `json:"healing,omitempty"`
}

// CollectMetadata carries collect-stage counters.
type CollectMetadata struct {
	RawItems    int    `json:"raw_items"`
	SavedItems  int    `json:"saved_items"`
	FeedsOK     int    `json:"feeds_ok"`
	FeedsFailed int    `json:"feeds_fail"`
	SelfHealing string `json:"self_healing,omitempty"`
}

// GenerateMetadata carries generate-stage counters.
type GenerateMetadata struct {
	Pillar    string `json:"pillar"`
	QAScore   int    `json:"qa_score"`
	Attempts  int    `json:"attempts"`
	ContentID string `json:"content_id"`
	Model     string `json:"model,omitempty"`
}

// PublishMetadata carries publish-stage counters.
type PublishMetadata struct {
	ChannelsOK   int      `json:"channels_ok"`
	ChannelsFail int      `json:"channels_fail"`
	Channels     []string `json:"channels"`
	ContentID    string   `json:"content_id,omitempty"`
	SelfHealing  string   `json:"self_healing,omitempty"`
	Message      string   `json:"message,omitempty"`
}

// HealingMetadata is the self-healing cycle summary report.
type HealingMetadata struct {
	Total     int             `json:"total"`
	Fixed     int             `json:"fixed"`
	Escalated int             `json:"escalated"`
	Skipped   int             `json:"skipped"`
	Details   []HealingDetail `json:"details,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// HealingDetail is one per-error outcome entry in a cycle report.
type HealingDetail struct {
	ErrorID   string    `json:"error_id"`
	Component Component `json:"component"`
	Level     string    `json:"level"`
	Result    string    `json:"result"`
}

// EncodeMetadata serializes run metadata for storage.
func EncodeMetadata(m *RunMetadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run metadata: %w", err)
	}
	return data, nil
}

// DecodeMetadata deserializes run metadata read from storage.
func DecodeMetadata(data []byte) (*RunMetadata, error) {
	if len(data) == 0 {
		return &RunMetadata{}, nil
	}
	var m RunMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode run metadata: %w", err)
	}
	return &m, nil
}

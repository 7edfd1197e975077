package domain

import (
	"encoding/json"
	"fmt"
)

// ContentStatus is the lifecycle state of a content item.
// draft -> reviewing/approved -> published | failed; rejected returns to draft.
type ContentStatus string

const (
	ContentDraft     ContentStatus = "draft"
	ContentReviewing ContentStatus = "reviewing"
	ContentApproved  ContentStatus = "approved"
	ContentRejected  ContentStatus = "rejected"
	ContentPublished ContentStatus = "published"
	ContentFailed    ContentStatus = "failed"
)

// ContentItem is one piece of pipeline-produced content. The generate stage
// creates drafts; an external approval actor moves them to approved; the
// publish stage owns the terminal published/failed transition.
type ContentItem struct {
	ID         string        `json:"id"`
	Status     ContentStatus `json:"status"`
	Pillar     string        `json:"pillar,omitempty"`
	Title      string        `json:"title"`
	Body       []byte        `json:"body"` // encoded ContentBody
	CreatedAt  int64         `json:"created_at"`
	UpdatedAt  int64         `json:"updated_at"`
	ApprovedAt int64         `json:"approved_at,omitempty"`
}

// ContentBody is the serialized draft payload stored in ContentItem.Body.
type ContentBody struct {
	Content         string   `json:"content"`
	Slug            string   `json:"slug"`
	Excerpt         string   `json:"excerpt"`
	MetaDescription string   `json:"meta_description"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags"`
	QAScore         int      `json:"qa_score"`
}

// EncodeContentBody serializes a draft payload for ContentItem.Body.
func EncodeContentBody(body *ContentBody) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode content body: %w", err)
	}
	return data, nil
}

// DecodeContentBody deserializes a ContentItem.Body payload.
func DecodeContentBody(data []byte) (*ContentBody, error) {
	var body ContentBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("failed to decode content body: %w", err)
	}
	return &body, nil
}

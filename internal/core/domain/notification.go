package domain

// NotificationType classifies operator notifications produced by the pipeline.
type NotificationType string

const (
	NotifyDraftCreated    NotificationType = "draft_created"
	NotifyQAFailed        NotificationType = "qa_failed"
	NotifyPublished       NotificationType = "published"
	NotifyErrorEscalation NotificationType = "error_escalation"
)

// Notification is a pending operator alert. Delivery is handled by an
// external sender polling the table; the pipeline only inserts rows.
type Notification struct {
	ID            string           `json:"id"`
	Type          NotificationType `json:"type"`
	Title         string           `json:"title"`
	Body          string           `json:"body"`
	ContentID     string           `json:"content_id,omitempty"`
	PipelineRunID string           `json:"pipeline_run_id,omitempty"`
	ErrorRecordID string           `json:"error_record_id,omitempty"`
	Status        string           `json:"status"`
	CreatedAt     int64            `json:"created_at"`
}

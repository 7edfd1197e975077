package domain

// Component is the fixed set of pipeline components that can raise errors.
type Component string

const (
	ComponentRSSCollector   Component = "rss_collector"
	ComponentAIGenerator    Component = "ai_generator"
	ComponentQAChecker      Component = "qa_checker"
	ComponentPublisher      Component = "publisher"
	ComponentScheduler      Component = "scheduler"
	ComponentCampaignMailer Component = "campaign_mailer"
	ComponentSNSPublisher   Component = "sns_publisher"
)

// ErrorKind is the fixed set of observed failure categories.
type ErrorKind string

const (
	ErrTimeout        ErrorKind = "timeout"
	ErrAuthFail       ErrorKind = "auth_fail"
	ErrQualityFail    ErrorKind = "quality_fail"
	ErrAPIError       ErrorKind = "api_error"
	ErrBuildFail      ErrorKind = "build_fail"
	ErrRateLimit      ErrorKind = "rate_limit"
	ErrValidationFail ErrorKind = "validation_fail"
)

// FixResult is the outcome of an automated remediation attempt.
type FixResult string

const (
	FixSuccess FixResult = "success"
	FixFailed  FixResult = "failed"
	FixSkipped FixResult = "skipped"
)

// ErrorRecord is one observed failure. Retry attempts update the one record
// that captured the originating failure; they never create new rows.
// Once ResolvedAt is set the record is immutable, and Escalated is monotonic.
type ErrorRecord struct {
	ID             string    `json:"id"`
	OccurredAt     int64     `json:"occurred_at"` // ms since epoch, UTC
	Component      Component `json:"component"`
	Kind           ErrorKind `json:"error_kind"`
	Message        string    `json:"error_message"`
	ContentID      string    `json:"content_id,omitempty"`
	ChannelID      string    `json:"channel_id,omitempty"`
	FixAttempted   bool      `json:"auto_fix_attempted"`
	FixResult      FixResult `json:"auto_fix_result,omitempty"`
	FixAction      string    `json:"auto_fix_action,omitempty"`
	Escalated      bool      `json:"escalated"`
	ResolvedAt     int64     `json:"resolved_at,omitempty"` // 0 = unresolved
	ResolutionKind string    `json:"resolution_type,omitempty"`
}

// Resolved reports whether the record has been closed.
func (e *ErrorRecord) Resolved() bool {
	return e.ResolvedAt != 0
}

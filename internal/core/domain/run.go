package domain

// Stage identifies one named phase of the content pipeline.
type Stage string

const (
	StageCollect     Stage = "collect"
	StageGenerate    Stage = "generate"
	StageApprove     Stage = "approve"
	StagePublish     Stage = "publish"
	StageSelfHealing Stage = "self-healing"
)

// RunStatus is the lifecycle state of a pipeline run.
// Transitions: started -> completed | failed. Both are terminal.
type RunStatus string

const (
	RunStarted   RunStatus = "started"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Trigger records what caused a run.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerRetry     Trigger = "retry"
)

// PipelineRun is one execution of a named stage. A run is append-then-update-once:
// DurationMs is set exactly once, on the single terminal transition.
type PipelineRun struct {
	ID             string    `json:"id"`
	Stage          Stage     `json:"stage"`
	Status         RunStatus `json:"status"`
	Trigger        Trigger   `json:"trigger"`
	StartedAt      int64     `json:"started_at"` // ms since epoch, UTC
	DurationMs     int64     `json:"duration_ms"`
	ItemsProcessed int       `json:"items_processed"`
	Metadata       []byte    `json:"metadata,omitempty"` // encoded RunMetadata
	ErrorMessage   string    `json:"error_message,omitempty"`
	ErrorRecordID  string    `json:"error_record_id,omitempty"`
}

// Terminal reports whether the run has reached a final status.
func (r *PipelineRun) Terminal() bool {
	return r.Status == RunCompleted || r.Status == RunFailed
}

package storage

import (
	"context"
	"errors"

	"github.com/apppro/content-pipeline/internal/core/domain"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist.
	ErrNotFound = errors.New("record not found")
	// ErrTerminal is returned when a write targets a record that already
	// reached a terminal state. Terminal writes happen at most once.
	ErrTerminal = errors.New("record already terminal")
)

// RunRepository handles pipeline run tracking.
type RunRepository interface {
	// Start appends a new run in the started state.
	Start(ctx context.Context, run *domain.PipelineRun) error

	// Get retrieves a run by id.
	Get(ctx context.Context, id string) (*domain.PipelineRun, error)

	// Complete transitions a run to completed. Fails with ErrTerminal if the
	// run is already terminal.
	Complete(ctx context.Context, id string, itemsProcessed int, metadata []byte) error

	// Fail transitions a run to failed, optionally linking an error record.
	Fail(ctx context.Context, id string, errorMessage, errorRecordID string) error

	// ListRecent retrieves the most recent runs, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.PipelineRun, error)
}

// ErrorRepository handles error record bookkeeping.
type ErrorRepository interface {
	// Add appends a new error record.
	Add(ctx context.Context, rec *domain.ErrorRecord) error

	// Get retrieves an error record by id.
	Get(ctx context.Context, id string) (*domain.ErrorRecord, error)

	// ListUnresolved retrieves unresolved, unescalated records that were
	// never attempted or whose last attempt failed, oldest first.
	ListUnresolved(ctx context.Context, limit int) ([]*domain.ErrorRecord, error)

	// RecordFix writes a remediation attempt outcome. A success outcome also
	// resolves the record. Returns ErrTerminal once the record is resolved.
	RecordFix(ctx context.Context, id string, result domain.FixResult, action string) error

	// MarkEscalated flags a record for human attention. Escalation is
	// monotonic; repeated calls are harmless. Returns ErrTerminal once the
	// record is resolved.
	MarkEscalated(ctx context.Context, id string) error

	// CountRecentFailures counts unresolved records for a component whose
	// remediation failed, occurring at or after the given time.
	CountRecentFailures(ctx context.Context, component domain.Component, since int64) (int, error)

	// CountUnresolved returns unresolved and escalated-unresolved counts.
	CountUnresolved(ctx context.Context) (total int, escalated int, err error)
}

// ContentRepository handles content item storage.
type ContentRepository interface {
	// SaveDraft inserts a new draft item.
	SaveDraft(ctx context.Context, item *domain.ContentItem) error

	// Get retrieves an item by id.
	Get(ctx context.Context, id string) (*domain.ContentItem, error)

	// NextApproved retrieves the oldest-approved item, or nil when none.
	NextApproved(ctx context.Context) (*domain.ContentItem, error)

	// SetStatus updates an item's lifecycle status.
	SetStatus(ctx context.Context, id string, status domain.ContentStatus) error

	// CountByStatus returns the number of items in the given status.
	CountByStatus(ctx context.Context, status domain.ContentStatus) (int, error)
}

// ChannelRepository provides read access to the channel registry.
type ChannelRepository interface {
	// ListActive retrieves active channels in creation order. An empty
	// typeFilter returns all types.
	ListActive(ctx context.Context, typeFilter domain.ChannelType) ([]*domain.Channel, error)

	// Get retrieves a channel by id.
	Get(ctx context.Context, id string) (*domain.Channel, error)
}

// DistributionRepository handles per-channel delivery records.
type DistributionRepository interface {
	// Add appends a new distribution record.
	Add(ctx context.Context, dist *domain.Distribution) error

	// Update rewrites a distribution's delivery state in place.
	Update(ctx context.Context, dist *domain.Distribution) error

	// ListByContent retrieves all distributions for a content item.
	ListByContent(ctx context.Context, contentID string) ([]*domain.Distribution, error)
}

// CollectedItemRepository stores raw collected material.
type CollectedItemRepository interface {
	// SaveNew inserts items whose URL is not already stored and reports how
	// many were inserted.
	SaveNew(ctx context.Context, items []*domain.CollectedItem) (int, error)

	// ListUnused retrieves the most recent unused items.
	ListUnused(ctx context.Context, limit int) ([]*domain.CollectedItem, error)

	// MarkUsed flags items as consumed by a draft.
	MarkUsed(ctx context.Context, ids []string) error
}

// NotificationRepository stores pending operator notifications.
type NotificationRepository interface {
	// Add appends a pending notification.
	Add(ctx context.Context, n *domain.Notification) error
}

package postgres

import (
	"context"
	"fmt"

	"github.com/apppro/content-pipeline/internal/core/domain"
)

// NotificationRepo implements storage.NotificationRepository using PostgreSQL.
type NotificationRepo struct {
	db *DB
}

// NewNotificationRepo creates a new PostgreSQL notification repository.
func NewNotificationRepo(db *DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Add appends a pending notification. An external sender polls this table
// and flips status once delivered.
func (r *NotificationRepo) Add(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications
			(id, type, title, body, content_id, pipeline_run_id, error_record_id, status, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), 'pending', $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.Type, n.Title, n.Body, n.ContentID, n.PipelineRunID, n.ErrorRecordID, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

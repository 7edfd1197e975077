package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/infra/storage"
)

// DistributionRepo implements storage.DistributionRepository using PostgreSQL.
type DistributionRepo struct {
	db *DB
}

// NewDistributionRepo creates a new PostgreSQL distribution repository.
func NewDistributionRepo(db *DB) *DistributionRepo {
	return &DistributionRepo{db: db}
}

type distributionRow struct {
	ID           string         `db:"id"`
	ContentID    string         `db:"content_id"`
	ChannelID    string         `db:"channel_id"`
	Status       string         `db:"status"`
	PlatformID   sql.NullString `db:"platform_id"`
	PlatformURL  sql.NullString `db:"platform_url"`
	ScheduledAt  sql.NullInt64  `db:"scheduled_at"`
	PublishedAt  sql.NullInt64  `db:"published_at"`
	ErrorMessage sql.NullString `db:"error_message"`
	RetryCount   int            `db:"retry_count"`
	Metrics      []byte         `db:"metrics"`
	CreatedAt    int64          `db:"created_at"`
	UpdatedAt    int64          `db:"updated_at"`
}

func (row distributionRow) toDomain() *domain.Distribution {
	return &domain.Distribution{
		ID:           row.ID,
		ContentID:    row.ContentID,
		ChannelID:    row.ChannelID,
		Status:       domain.DistributionStatus(row.Status),
		PlatformID:   row.PlatformID.String,
		PlatformURL:  row.PlatformURL.String,
		ScheduledAt:  row.ScheduledAt.Int64,
		PublishedAt:  row.PublishedAt.Int64,
		ErrorMessage: row.ErrorMessage.String,
		RetryCount:   row.RetryCount,
		Metrics:      row.Metrics,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

// Add appends a new distribution record.
func (r *DistributionRepo) Add(ctx context.Context, dist *domain.Distribution) error {
	query := `
		INSERT INTO distributions
			(id, content_id, channel_id, status, platform_id, platform_url,
			 scheduled_at, published_at, error_message, retry_count, metrics, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''),
		        NULLIF($7, 0), NULLIF($8, 0), NULLIF($9, ''), $10, $11, $12, $12)
	`
	now := time.Now().UnixMilli()
	_, err := r.db.ExecContext(ctx, query,
		dist.ID, dist.ContentID, dist.ChannelID, dist.Status,
		dist.PlatformID, dist.PlatformURL, dist.ScheduledAt, dist.PublishedAt,
		dist.ErrorMessage, dist.RetryCount, dist.Metrics, now)
	if err != nil {
		return fmt.Errorf("failed to insert distribution: %w", err)
	}
	return nil
}

// Update rewrites a distribution's delivery state in place.
func (r *DistributionRepo) Update(ctx context.Context, dist *domain.Distribution) error {
	query := `
		UPDATE distributions
		SET status = $2,
		    platform_id = NULLIF($3, ''),
		    platform_url = NULLIF($4, ''),
		    published_at = NULLIF($5, 0),
		    error_message = NULLIF($6, ''),
		    retry_count = $7,
		    metrics = $8,
		    updated_at = $9
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		dist.ID, dist.Status, dist.PlatformID, dist.PlatformURL,
		dist.PublishedAt, dist.ErrorMessage, dist.RetryCount, dist.Metrics,
		time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to update distribution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListByContent retrieves all distributions for a content item.
func (r *DistributionRepo) ListByContent(ctx context.Context, contentID string) ([]*domain.Distribution, error) {
	query := `
		SELECT id, content_id, channel_id, status, platform_id, platform_url,
		       scheduled_at, published_at, error_message, retry_count, metrics,
		       created_at, updated_at
		FROM distributions
		WHERE content_id = $1
		ORDER BY created_at ASC
	`
	var rows []distributionRow
	if err := r.db.SelectContext(ctx, &rows, query, contentID); err != nil {
		return nil, fmt.Errorf("failed to list distributions: %w", err)
	}
	dists := make([]*domain.Distribution, 0, len(rows))
	for _, row := range rows {
		dists = append(dists, row.toDomain())
	}
	return dists, nil
}

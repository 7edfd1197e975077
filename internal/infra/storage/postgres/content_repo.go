package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/infra/storage"
)

// ContentRepo implements storage.ContentRepository using PostgreSQL.
type ContentRepo struct {
	db *DB
}

// NewContentRepo creates a new PostgreSQL content repository.
func NewContentRepo(db *DB) *ContentRepo {
	return &ContentRepo{db: db}
}

type contentRow struct {
	ID         string         `db:"id"`
	Status     string         `db:"status"`
	Pillar     sql.NullString `db:"pillar"`
	Title      string         `db:"title"`
	Body       []byte         `db:"body"`
	CreatedAt  int64          `db:"created_at"`
	UpdatedAt  int64          `db:"updated_at"`
	ApprovedAt sql.NullInt64  `db:"approved_at"`
}

func (row contentRow) toDomain() *domain.ContentItem {
	return &domain.ContentItem{
		ID:         row.ID,
		Status:     domain.ContentStatus(row.Status),
		Pillar:     row.Pillar.String,
		Title:      row.Title,
		Body:       row.Body,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
		ApprovedAt: row.ApprovedAt.Int64,
	}
}

// SaveDraft inserts a new draft item.
func (r *ContentRepo) SaveDraft(ctx context.Context, item *domain.ContentItem) error {
	query := `
		INSERT INTO content_items (id, status, pillar, title, body, created_at, updated_at)
		VALUES ($1, 'draft', NULLIF($2, ''), $3, $4, $5, $5)
	`
	_, err := r.db.ExecContext(ctx, query, item.ID, item.Pillar, item.Title, item.Body, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert content draft: %w", err)
	}
	return nil
}

// Get retrieves an item by id.
func (r *ContentRepo) Get(ctx context.Context, id string) (*domain.ContentItem, error) {
	query := `
		SELECT id, status, pillar, title, body, created_at, updated_at, approved_at
		FROM content_items
		WHERE id = $1
	`
	var row contentRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return row.toDomain(), nil
}

// NextApproved retrieves the oldest-approved item, or nil when none.
func (r *ContentRepo) NextApproved(ctx context.Context) (*domain.ContentItem, error) {
	query := `
		SELECT id, status, pillar, title, body, created_at, updated_at, approved_at
		FROM content_items
		WHERE status = 'approved'
		ORDER BY approved_at ASC
		LIMIT 1
	`
	var row contentRow
	err := r.db.GetContext(ctx, &row, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next approved item: %w", err)
	}
	return row.toDomain(), nil
}

// SetStatus updates an item's lifecycle status.
func (r *ContentRepo) SetStatus(ctx context.Context, id string, status domain.ContentStatus) error {
	now := time.Now().UnixMilli()
	query := `
		UPDATE content_items
		SET status = $2,
		    updated_at = $3,
		    approved_at = CASE WHEN $2 = 'approved' THEN $3 ELSE approved_at END
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, status, now)
	if err != nil {
		return fmt.Errorf("failed to update content status: %w", err)
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

// CountByStatus returns the number of items in the given status.
func (r *ContentRepo) CountByStatus(ctx context.Context, status domain.ContentStatus) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM content_items WHERE status = $1`
	if err := r.db.GetContext(ctx, &count, query, status); err != nil {
		return 0, fmt.Errorf("failed to count content items: %w", err)
	}
	return count, nil
}

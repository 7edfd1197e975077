package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

// DocumentRepo stores published blog documents. It backs the blog channel's
// document-store publisher.
type DocumentRepo struct {
	db *DB
}

// NewDocumentRepo creates a new PostgreSQL document repository.
func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// SlugExists reports whether a document already uses the given slug.
func (r *DocumentRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM documents WHERE slug = $1)`
	if err := r.db.GetContext(ctx, &exists, query, slug); err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

// Insert writes a published document.
func (r *DocumentRepo) Insert(ctx context.Context, id, title, slug, content, excerpt, metaDescription, category string, tags []string, publishedAt int64) error {
	query := `
		INSERT INTO documents
			(id, title, slug, content, excerpt, meta_description, category, tags, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		id, title, slug, content, excerpt, metaDescription, category, pq.Array(tags), publishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/apppro/content-pipeline/internal/core/domain"
)

// CollectedItemRepo implements storage.CollectedItemRepository using PostgreSQL.
type CollectedItemRepo struct {
	db *DB
}

// NewCollectedItemRepo creates a new PostgreSQL collected item repository.
func NewCollectedItemRepo(db *DB) *CollectedItemRepo {
	return &CollectedItemRepo{db: db}
}

type collectedRow struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	URL         string `db:"url"`
	Source      string `db:"source"`
	Summary     string `db:"summary"`
	PublishedAt int64  `db:"published_at"`
	CollectedAt int64  `db:"collected_at"`
	Used        bool   `db:"used"`
}

// SaveNew inserts items whose URL is not already stored. The unique index on
// url makes re-collection idempotent.
func (r *CollectedItemRepo) SaveNew(ctx context.Context, items []*domain.CollectedItem) (int, error) {
	saved := 0
	for _, it := range items {
		query := `
			INSERT INTO collected_items (id, title, url, source, summary, published_at, collected_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (url) DO NOTHING
		`
		res, err := r.db.ExecContext(ctx, query,
			it.ID, it.Title, it.URL, it.Source, it.Summary, it.PublishedAt, it.CollectedAt)
		if err != nil {
			return saved, fmt.Errorf("failed to insert collected item: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected > 0 {
			saved++
		}
	}
	return saved, nil
}

// ListUnused retrieves the most recent unused items.
func (r *CollectedItemRepo) ListUnused(ctx context.Context, limit int) ([]*domain.CollectedItem, error) {
	query := `
		SELECT id, title, url, source, COALESCE(summary, '') AS summary,
		       COALESCE(published_at, 0) AS published_at, collected_at, used
		FROM collected_items
		WHERE used = FALSE
		ORDER BY collected_at DESC
		LIMIT $1
	`
	var rows []collectedRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list unused items: %w", err)
	}
	items := make([]*domain.CollectedItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, &domain.CollectedItem{
			ID:          row.ID,
			Title:       row.Title,
			URL:         row.URL,
			Source:      row.Source,
			Summary:     row.Summary,
			PublishedAt: row.PublishedAt,
			CollectedAt: row.CollectedAt,
			Used:        row.Used,
		})
	}
	return items, nil
}

// MarkUsed flags items as consumed by a draft.
func (r *CollectedItemRepo) MarkUsed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE collected_items SET used = TRUE WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("failed to build mark-used query: %w", err)
	}
	query = r.db.Rebind(query)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark items used: %w", err)
	}
	return nil
}

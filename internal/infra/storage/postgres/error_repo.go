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

// ErrorRepo implements storage.ErrorRepository using PostgreSQL.
type ErrorRepo struct {
	db *DB
}

// NewErrorRepo creates a new PostgreSQL error repository.
func NewErrorRepo(db *DB) *ErrorRepo {
	return &ErrorRepo{db: db}
}

type errorRow struct {
	ID             string         `db:"id"`
	OccurredAt     int64          `db:"occurred_at"`
	Component      string         `db:"component"`
	Kind           string         `db:"error_kind"`
	Message        string         `db:"error_message"`
	ContentID      sql.NullString `db:"content_id"`
	ChannelID      sql.NullString `db:"channel_id"`
	FixAttempted   bool           `db:"auto_fix_attempted"`
	FixResult      sql.NullString `db:"auto_fix_result"`
	FixAction      sql.NullString `db:"auto_fix_action"`
	Escalated      bool           `db:"escalated"`
	ResolvedAt     sql.NullInt64  `db:"resolved_at"`
	ResolutionKind sql.NullString `db:"resolution_type"`
}

func (row errorRow) toDomain() *domain.ErrorRecord {
	return &domain.ErrorRecord{
		ID:             row.ID,
		OccurredAt:     row.OccurredAt,
		Component:      domain.Component(row.Component),
		Kind:           domain.ErrorKind(row.Kind),
		Message:        row.Message,
		ContentID:      row.ContentID.String,
		ChannelID:      row.ChannelID.String,
		FixAttempted:   row.FixAttempted,
		FixResult:      domain.FixResult(row.FixResult.String),
		FixAction:      row.FixAction.String,
		Escalated:      row.Escalated,
		ResolvedAt:     row.ResolvedAt.Int64,
		ResolutionKind: row.ResolutionKind.String,
	}
}

const errorColumns = `
	id, occurred_at, component, error_kind, error_message, content_id, channel_id,
	auto_fix_attempted, auto_fix_result, auto_fix_action, escalated, resolved_at, resolution_type
`

// Add appends a new error record.
func (r *ErrorRepo) Add(ctx context.Context, rec *domain.ErrorRecord) error {
	query := `
		INSERT INTO error_records (id, occurred_at, component, error_kind, error_message, content_id, channel_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.OccurredAt, rec.Component, rec.Kind, rec.Message, rec.ContentID, rec.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to insert error record: %w", err)
	}
	return nil
}

// Get retrieves an error record by id.
func (r *ErrorRepo) Get(ctx context.Context, id string) (*domain.ErrorRecord, error) {
	query := `SELECT ` + errorColumns + ` FROM error_records WHERE id = $1`
	var row errorRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get error record: %w", err)
	}
	return row.toDomain(), nil
}

// ListUnresolved retrieves unresolved, unescalated records that were never
// attempted or whose last attempt failed, oldest first.
func (r *ErrorRepo) ListUnresolved(ctx context.Context, limit int) ([]*domain.ErrorRecord, error) {
	query := `
		SELECT ` + errorColumns + `
		FROM error_records
		WHERE resolved_at IS NULL
		  AND escalated = FALSE
		  AND (auto_fix_attempted = FALSE OR auto_fix_result = 'failed')
		ORDER BY occurred_at ASC
		LIMIT $1
	`
	var rows []errorRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list unresolved errors: %w", err)
	}
	recs := make([]*domain.ErrorRecord, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.toDomain())
	}
	return recs, nil
}

// RecordFix writes a remediation attempt outcome. The resolved_at guard keeps
// resolved records immutable.
func (r *ErrorRepo) RecordFix(ctx context.Context, id string, result domain.FixResult, action string) error {
	query := `
		UPDATE error_records
		SET auto_fix_attempted = TRUE,
		    auto_fix_result = $2,
		    auto_fix_action = $3,
		    resolved_at = CASE WHEN $2 = 'success' THEN $4 ELSE resolved_at END,
		    resolution_type = CASE WHEN $2 = 'success' THEN 'auto_fixed' ELSE resolution_type END
		WHERE id = $1 AND resolved_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, result, action, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record fix attempt: %w", err)
	}
	return terminalGuard(res)
}

// MarkEscalated flags a record for human attention. The escalated flag only
// ever moves to TRUE, and a resolved record can no longer be escalated.
func (r *ErrorRepo) MarkEscalated(ctx context.Context, id string) error {
	query := `
		UPDATE error_records
		SET escalated = TRUE,
		    auto_fix_attempted = TRUE,
		    auto_fix_result = 'skipped'
		WHERE id = $1
		  AND resolved_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark error escalated: %w", err)
	}
	return terminalGuard(res)
}

// CountRecentFailures counts unresolved failed-remediation records for a
// component occurring at or after the given time.
func (r *ErrorRepo) CountRecentFailures(ctx context.Context, component domain.Component, since int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM error_records
		WHERE component = $1
		  AND auto_fix_result = 'failed'
		  AND resolved_at IS NULL
		  AND occurred_at >= $2
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, component, since); err != nil {
		return 0, fmt.Errorf("failed to count recent failures: %w", err)
	}
	return count, nil
}

// CountUnresolved returns unresolved and escalated-unresolved counts.
func (r *ErrorRepo) CountUnresolved(ctx context.Context) (int, int, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE escalated = TRUE)
		FROM error_records
		WHERE resolved_at IS NULL
	`
	var total, escalated int
	row := r.db.QueryRowContext(ctx, query)
	if err := row.Scan(&total, &escalated); err != nil {
		return 0, 0, fmt.Errorf("failed to count unresolved errors: %w", err)
	}
	return total, escalated, nil
}

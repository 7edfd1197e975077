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

// RunRepo implements storage.RunRepository using PostgreSQL.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new PostgreSQL run repository.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

type runRow struct {
	ID             string         `db:"id"`
	Stage          string         `db:"stage"`
	Status         string         `db:"status"`
	Trigger        string         `db:"trigger_type"`
	StartedAt      int64          `db:"started_at"`
	DurationMs     sql.NullInt64  `db:"duration_ms"`
	ItemsProcessed sql.NullInt64  `db:"items_processed"`
	Metadata       []byte         `db:"metadata"`
	ErrorMessage   sql.NullString `db:"error_message"`
	ErrorRecordID  sql.NullString `db:"error_record_id"`
}

func (row runRow) toDomain() *domain.PipelineRun {
	return &domain.PipelineRun{
		ID:             row.ID,
		Stage:          domain.Stage(row.Stage),
		Status:         domain.RunStatus(row.Status),
		Trigger:        domain.Trigger(row.Trigger),
		StartedAt:      row.StartedAt,
		DurationMs:     row.DurationMs.Int64,
		ItemsProcessed: int(row.ItemsProcessed.Int64),
		Metadata:       row.Metadata,
		ErrorMessage:   row.ErrorMessage.String,
		ErrorRecordID:  row.ErrorRecordID.String,
	}
}

// Start appends a new run in the started state.
func (r *RunRepo) Start(ctx context.Context, run *domain.PipelineRun) error {
	query := `
		INSERT INTO pipeline_runs (id, stage, status, trigger_type, started_at)
		VALUES ($1, $2, 'started', $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, run.ID, run.Stage, run.Trigger, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert pipeline run: %w", err)
	}
	return nil
}

// Get retrieves a run by id.
func (r *RunRepo) Get(ctx context.Context, id string) (*domain.PipelineRun, error) {
	query := `
		SELECT id, stage, status, trigger_type, started_at, duration_ms,
		       items_processed, metadata, error_message, error_record_id
		FROM pipeline_runs
		WHERE id = $1
	`
	var row runRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline run: %w", err)
	}
	return row.toDomain(), nil
}

// Complete marks a run completed. The status guard makes the terminal write
// first-writer-wins: a run that already left 'started' is never rewritten.
func (r *RunRepo) Complete(ctx context.Context, id string, itemsProcessed int, metadata []byte) error {
	query := `
		UPDATE pipeline_runs
		SET status = 'completed',
		    duration_ms = $2 - started_at,
		    items_processed = $3,
		    metadata = $4
		WHERE id = $1 AND status = 'started'
	`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UnixMilli(), itemsProcessed, metadata)
	if err != nil {
		return fmt.Errorf("failed to complete pipeline run: %w", err)
	}
	return terminalGuard(res)
}

// Fail marks a run failed, optionally linking an error record.
func (r *RunRepo) Fail(ctx context.Context, id string, errorMessage, errorRecordID string) error {
	query := `
		UPDATE pipeline_runs
		SET status = 'failed',
		    duration_ms = $2 - started_at,
		    error_message = $3,
		    error_record_id = NULLIF($4, '')
		WHERE id = $1 AND status = 'started'
	`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UnixMilli(), errorMessage, errorRecordID)
	if err != nil {
		return fmt.Errorf("failed to fail pipeline run: %w", err)
	}
	return terminalGuard(res)
}

// ListRecent retrieves the most recent runs, newest first.
func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]*domain.PipelineRun, error) {
	query := `
		SELECT id, stage, status, trigger_type, started_at, duration_ms,
		       items_processed, metadata, error_message, error_record_id
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}
	runs := make([]*domain.PipelineRun, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, row.toDomain())
	}
	return runs, nil
}

func terminalGuard(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrTerminal
	}
	return nil
}

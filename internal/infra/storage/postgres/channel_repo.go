package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/infra/storage"
)

// ChannelRepo implements storage.ChannelRepository using PostgreSQL.
// Channels are owned by configuration management; this repository is read-only.
type ChannelRepo struct {
	db *DB
}

// NewChannelRepo creates a new PostgreSQL channel repository.
func NewChannelRepo(db *DB) *ChannelRepo {
	return &ChannelRepo{db: db}
}

type channelRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Type           string         `db:"type"`
	Platform       string         `db:"platform"`
	Config         []byte         `db:"config"`
	CredentialsRef sql.NullString `db:"credentials_ref"`
	Active         bool           `db:"is_active"`
	CreatedAt      int64          `db:"created_at"`
}

func (row channelRow) toDomain() *domain.Channel {
	return &domain.Channel{
		ID:             row.ID,
		Name:           row.Name,
		Type:           domain.ChannelType(row.Type),
		Platform:       row.Platform,
		Config:         row.Config,
		CredentialsRef: row.CredentialsRef.String,
		Active:         row.Active,
		CreatedAt:      row.CreatedAt,
	}
}

// ListActive retrieves active channels in creation order.
func (r *ChannelRepo) ListActive(ctx context.Context, typeFilter domain.ChannelType) ([]*domain.Channel, error) {
	query := `
		SELECT id, name, type, platform, config, credentials_ref, is_active, created_at
		FROM channels
		WHERE is_active = TRUE
		  AND ($1 = '' OR type = $1)
		ORDER BY created_at ASC
	`
	var rows []channelRow
	if err := r.db.SelectContext(ctx, &rows, query, string(typeFilter)); err != nil {
		return nil, fmt.Errorf("failed to list active channels: %w", err)
	}
	channels := make([]*domain.Channel, 0, len(rows))
	for _, row := range rows {
		channels = append(channels, row.toDomain())
	}
	return channels, nil
}

// Get retrieves a channel by id.
func (r *ChannelRepo) Get(ctx context.Context, id string) (*domain.Channel, error) {
	query := `
		SELECT id, name, type, platform, config, credentials_ref, is_active, created_at
		FROM channels
		WHERE id = $1
	`
	var row channelRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return row.toDomain(), nil
}

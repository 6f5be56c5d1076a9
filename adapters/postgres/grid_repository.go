package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"gogrid/domain/core"
	"gogrid/domain/grid"
	"gogrid/models"

	"github.com/jmoiron/sqlx"
)

// GridRepository stores grids as JSONB rows and announces every write with
// pg_notify so other instances can pick it up
type GridRepository struct {
	db            *sqlx.DB
	notifyChannel string
}

// NewGridRepository creates a grid repository. An empty notifyChannel
// disables change notifications.
func NewGridRepository(db *sqlx.DB, notifyChannel string) *GridRepository {
	return &GridRepository{db: db, notifyChannel: notifyChannel}
}

// Load retrieves the grid stored under key
func (r *GridRepository) Load(ctx context.Context, key core.GridKey) (*models.StoredGrid, error) {
	query := `
		SELECT key, raw, version, origin, updated_at
		FROM grids
		WHERE key = $1`

	var stored models.StoredGrid
	if err := r.db.GetContext(ctx, &stored, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("grid %s: %w", key, core.ErrGridNotFound)
		}
		return nil, fmt.Errorf("failed to load grid %s: %w", key, err)
	}
	return &stored, nil
}

// Save upserts the grid and notifies listeners in the same transaction, so
// a notification is never seen before the row it describes
func (r *GridRepository) Save(ctx context.Context, key core.GridKey, raw grid.RawGrid, origin core.InstanceID) (*models.StoredGrid, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO grids (key, raw, version, origin, updated_at)
		VALUES ($1, $2, 1, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET
			raw = EXCLUDED.raw,
			version = grids.version + 1,
			origin = EXCLUDED.origin,
			updated_at = NOW()
		RETURNING key, raw, version, origin, updated_at`

	var stored models.StoredGrid
	if err := tx.GetContext(ctx, &stored, query, key, raw, origin); err != nil {
		return nil, fmt.Errorf("failed to save grid %s: %w", key, err)
	}

	if r.notifyChannel != "" {
		payload, err := json.Marshal(models.GridChange{Key: key, Origin: origin, Version: stored.Version})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal change: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", r.notifyChannel, string(payload)); err != nil {
			return nil, fmt.Errorf("failed to notify change for %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit grid %s: %w", key, err)
	}
	return &stored, nil
}

// Delete removes the grid stored under key
func (r *GridRepository) Delete(ctx context.Context, key core.GridKey) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM grids WHERE key = $1", key); err != nil {
		return fmt.Errorf("failed to delete grid %s: %w", key, err)
	}
	return nil
}

// ListKeys returns every stored key in ascending order
func (r *GridRepository) ListKeys(ctx context.Context) ([]core.GridKey, error) {
	var keys []core.GridKey
	if err := r.db.SelectContext(ctx, &keys, "SELECT key FROM grids ORDER BY key"); err != nil {
		return nil, fmt.Errorf("failed to list grids: %w", err)
	}
	return keys, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gogrid/domain/core"
	"gogrid/domain/grid"
	"gogrid/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to a SQLite database. A single connection is kept so that
// ":memory:" databases are shared by every query.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// GridRepository stores grids as JSON text in a local SQLite file. It has no
// change feed; use it for single-instance development.
type GridRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewGridRepository creates a SQLite-backed grid repository
func NewGridRepository(db *sqlx.DB) *GridRepository {
	return &GridRepository{db: db, now: time.Now}
}

// Load retrieves the grid stored under key
func (r *GridRepository) Load(ctx context.Context, key core.GridKey) (*models.StoredGrid, error) {
	query := `
		SELECT key, raw, version, origin, updated_at
		FROM grids
		WHERE key = ?`

	var stored models.StoredGrid
	if err := r.db.GetContext(ctx, &stored, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("grid %s: %w", key, core.ErrGridNotFound)
		}
		return nil, fmt.Errorf("failed to load grid %s: %w", key, err)
	}
	return &stored, nil
}

// Save upserts the grid and returns the stored row
func (r *GridRepository) Save(ctx context.Context, key core.GridKey, raw grid.RawGrid, origin core.InstanceID) (*models.StoredGrid, error) {
	data, err := grid.Encode(raw)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO grids (key, raw, version, origin, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			raw = excluded.raw,
			version = grids.version + 1,
			origin = excluded.origin,
			updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, query, key, string(data), origin, r.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to save grid %s: %w", key, err)
	}
	return r.Load(ctx, key)
}

// Delete removes the grid stored under key
func (r *GridRepository) Delete(ctx context.Context, key core.GridKey) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM grids WHERE key = ?", key); err != nil {
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

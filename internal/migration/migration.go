package migration

import (
	"context"
	"fmt"

	"gogrid/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations for Postgres and SQLite
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	dialect, err := dialectFor(db)
	if err != nil {
		return err
	}

	if err := r.createGridsTable(ctx, db, dialect); err != nil {
		return errors.DatabaseError("failed to create grids table", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.DatabaseError("failed to create indexes", err)
	}

	return nil
}

// Reset drops every table Run creates
func (r *MigrationRunner) Reset(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS grids"); err != nil {
		return errors.DatabaseError("failed to drop grids table", err)
	}
	return nil
}

type dialect struct {
	jsonType string
	timeType string
	now      string
}

func dialectFor(db *sqlx.DB) (dialect, error) {
	switch db.DriverName() {
	case "postgres":
		return dialect{jsonType: "JSONB", timeType: "TIMESTAMP WITH TIME ZONE", now: "NOW()"}, nil
	case "sqlite3":
		return dialect{jsonType: "TEXT", timeType: "TIMESTAMP", now: "CURRENT_TIMESTAMP"}, nil
	default:
		return dialect{}, errors.ConfigInvalid(fmt.Sprintf("no migrations for driver %q", db.DriverName()))
	}
}

func (r *MigrationRunner) createGridsTable(ctx context.Context, db *sqlx.DB, d dialect) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS grids (
			key TEXT PRIMARY KEY,
			raw %s NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			origin TEXT NOT NULL DEFAULT '',
			updated_at %s NOT NULL DEFAULT %s
		)
	`, d.jsonType, d.timeType, d.now))
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_grids_updated_at ON grids(updated_at DESC)",
	}

	for _, indexSQL := range indexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return err
		}
	}
	return nil
}

package migration

import (
	"context"
	"testing"

	"gogrid/adapters/sqlite"
	"gogrid/internal/errors"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableCount(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'grids'"))
	return n
}

func TestRunIsIdempotent(t *testing.T) {
	db := openSQLite(t)
	runner := NewRunner()
	ctx := context.Background()

	require.NoError(t, runner.Run(ctx, db))
	require.NoError(t, runner.Run(ctx, db))
	assert.Equal(t, 1, tableCount(t, db))
	assert.Equal(t, "1.0.0", runner.Version())

	_, err := db.Exec("INSERT INTO grids (key, raw) VALUES ('k', '[]')")
	require.NoError(t, err)

	var version int64
	require.NoError(t, db.Get(&version, "SELECT version FROM grids WHERE key = 'k'"))
	assert.Equal(t, int64(1), version)
}

func TestReset(t *testing.T) {
	db := openSQLite(t)
	runner := NewRunner()
	ctx := context.Background()

	require.NoError(t, runner.Run(ctx, db))
	require.NoError(t, runner.Reset(ctx, db))
	assert.Equal(t, 0, tableCount(t, db))
}

func TestUnknownDriver(t *testing.T) {
	db := sqlx.NewDb(openSQLite(t).DB, "mysql")
	err := NewRunner().Run(context.Background(), db)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

var _ Migrator = (*MigrationRunner)(nil)

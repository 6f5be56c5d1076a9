package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gogrid/adapters/sqlite"
	"gogrid/domain/core"
	"gogrid/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.URL = filepath.Join(t.TempDir(), "grids.db")
	cfg.Grid.Rows = 4
	cfg.Grid.DefaultKey = core.DefaultGridKey
	cfg.Import.MaxConcurrent = 1
	return cfg
}

func TestRunImportsGrid(t *testing.T) {
	cfg := sqliteConfig(t)
	ctx := context.Background()

	file := filepath.Join(t.TempDir(), "grid.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"A":"1","B":"=A1+1"}]`), 0o644))

	require.NoError(t, run(ctx, cfg, false, file, "budget"))
	// Importing again bumps the version; resetting starts over
	require.NoError(t, run(ctx, cfg, false, file, "budget"))

	db, err := sqlite.Open(cfg.Database.URL)
	require.NoError(t, err)

	stored, err := sqlite.NewGridRepository(db).Load(ctx, "budget")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Len(t, stored.Raw, 4)
	assert.Equal(t, "=A1+1", stored.Raw.Cell(0, "B"))
	db.Close()

	require.NoError(t, run(ctx, cfg, true, file, "budget"))
	db, err = sqlite.Open(cfg.Database.URL)
	require.NoError(t, err)
	defer db.Close()
	stored, err = sqlite.NewGridRepository(db).Load(ctx, "budget")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestRunWithoutImport(t *testing.T) {
	assert.NoError(t, run(context.Background(), sqliteConfig(t), false, "", core.DefaultGridKey))
}

func TestRunBadImportFile(t *testing.T) {
	err := run(context.Background(), sqliteConfig(t), false, filepath.Join(t.TempDir(), "none.csv"), core.DefaultGridKey)
	assert.Error(t, err)
}

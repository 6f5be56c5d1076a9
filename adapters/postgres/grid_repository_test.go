package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"gogrid/domain/core"
	"gogrid/domain/grid"
	"gogrid/internal"
	"gogrid/internal/migration"
	"gogrid/models"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNotifyChannel = "grid_changes_test"

// liveDB connects to TEST_DATABASE_URL and migrates it; the test is skipped
// when no database is configured
func liveDB(t *testing.T) (*sqlx.DB, string) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping live test: TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.NewRunner().Run(context.Background(), db))
	return db, dsn
}

func uniqueKey(t *testing.T, db *sqlx.DB) core.GridKey {
	t.Helper()
	key := core.GridKey("test-" + core.NewInstanceID().String())
	t.Cleanup(func() {
		db.Exec("DELETE FROM grids WHERE key = $1", key)
	})
	return key
}

func TestGridRepositoryUpsert(t *testing.T) {
	db, _ := liveDB(t)
	repo := NewGridRepository(db, "")
	ctx := context.Background()
	key := uniqueKey(t, db)

	_, err := repo.Load(ctx, key)
	assert.ErrorIs(t, err, core.ErrGridNotFound)

	raw := grid.NewRawGrid(2)
	raw[0][grid.ColumnA] = "5"
	raw[1][grid.ColumnB] = "=A1*2"

	first, err := repo.Save(ctx, key, raw, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)

	raw[0][grid.ColumnA] = "6"
	second, err := repo.Save(ctx, key, raw, "inst-2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Version)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

	loaded, err := repo.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, raw.Equal(loaded.Raw))
	assert.Equal(t, core.InstanceID("inst-2"), loaded.Origin)

	keys, err := repo.ListKeys(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, key)

	require.NoError(t, repo.Delete(ctx, key))
	_, err = repo.Load(ctx, key)
	assert.ErrorIs(t, err, core.ErrGridNotFound)
}

func TestGridRepositoryNotifiesListener(t *testing.T) {
	db, dsn := liveDB(t)
	repo := NewGridRepository(db, testNotifyChannel)
	key := uniqueKey(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := NewGridListener(dsn, testNotifyChannel, 10*time.Millisecond, time.Second,
		internal.NewLogger(internal.LogLevelError))
	changes := make(chan models.GridChange, 64)
	done := make(chan error, 1)
	go func() {
		done <- listener.Listen(ctx, func(c models.GridChange) {
			if c.Key == key {
				changes <- c
			}
		})
	}()

	// Keep writing until the listener has subscribed and sees one
	var got models.GridChange
	require.Eventually(t, func() bool {
		if _, err := repo.Save(context.Background(), key, grid.NewRawGrid(1), "inst-notify"); err != nil {
			return false
		}
		select {
		case got = <-changes:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, key, got.Key)
	assert.Equal(t, core.InstanceID("inst-notify"), got.Origin)
	assert.Positive(t, got.Version)

	stored, err := repo.Load(context.Background(), key)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stored.Version, got.Version, "the row is committed before the notification")

	cancel()
	require.NoError(t, <-done)
}

package poll

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gogrid/adapters/sqlite"
	"gogrid/domain/core"
	"gogrid/domain/grid"
	"gogrid/internal"
	"gogrid/internal/migration"
	"gogrid/models"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openShared(t *testing.T, path string) *sqlx.DB {
	t.Helper()
	db, err := sqlite.Open("file:" + path + "?_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPollerReportsWritesFromAnotherConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grids.db")
	writerDB := openShared(t, path)
	require.NoError(t, migration.NewRunner().Run(context.Background(), writerDB))
	writer := sqlite.NewGridRepository(writerDB)

	_, err := writer.Save(context.Background(), "before", grid.NewRawGrid(1), "inst-1")
	require.NoError(t, err)

	poller := NewGridPoller(openShared(t, path), 10*time.Millisecond, internal.NewLogger(internal.LogLevelError))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan models.GridChange, 16)
	done := make(chan error, 1)
	go func() {
		done <- poller.Listen(ctx, func(c models.GridChange) { changes <- c })
	}()

	// Let the first read settle so the existing row is the baseline
	time.Sleep(50 * time.Millisecond)
	_, err = writer.Save(context.Background(), "before", grid.NewRawGrid(1), "inst-2")
	require.NoError(t, err)
	_, err = writer.Save(context.Background(), "after", grid.NewRawGrid(1), "inst-2")
	require.NoError(t, err)

	got := map[core.GridKey]models.GridChange{}
	for len(got) < 2 {
		select {
		case c := <-changes:
			got[c.Key] = c
		case <-time.After(2 * time.Second):
			t.Fatalf("changes not reported, got %v", got)
		}
	}
	assert.Equal(t, int64(2), got["before"].Version)
	assert.Equal(t, core.InstanceID("inst-2"), got["before"].Origin)
	assert.Equal(t, int64(1), got["after"].Version)

	select {
	case c := <-changes:
		t.Fatalf("unchanged grid reported again: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}

func TestPollerNeedsGridsTable(t *testing.T) {
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	err = NewGridPoller(db, 0, nil).Listen(context.Background(), func(models.GridChange) {})
	assert.Error(t, err)
}

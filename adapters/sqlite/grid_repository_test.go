package sqlite

import (
	"context"
	"testing"

	"gogrid/domain/core"
	"gogrid/domain/grid"
	"gogrid/internal/migration"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *GridRepository {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migration.NewRunner().Run(context.Background(), db))
	return NewGridRepository(db)
}

func TestGridRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Load(ctx, core.DefaultGridKey)
	assert.ErrorIs(t, err, core.ErrGridNotFound)

	raw := grid.NewRawGrid(10)
	raw[0][grid.ColumnA] = "5"
	raw[1][grid.ColumnA] = "=A1*2"
	raw[9][grid.ColumnD] = "note"

	stored, err := repo.Save(ctx, core.DefaultGridKey, raw, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, core.InstanceID("inst-1"), stored.Origin)
	assert.False(t, stored.UpdatedAt.IsZero())
	assert.True(t, raw.Equal(stored.Raw))

	raw2 := raw.Clone()
	raw2[2][grid.ColumnB] = "=A2+1"
	stored, err = repo.Save(ctx, core.DefaultGridKey, raw2, "inst-2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)

	loaded, err := repo.Load(ctx, core.DefaultGridKey)
	require.NoError(t, err)
	assert.True(t, raw2.Equal(loaded.Raw))
	assert.Equal(t, core.InstanceID("inst-2"), loaded.Origin)
}

func TestDeleteAndList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, key := range []core.GridKey{"zeta", "alpha"} {
		_, err := repo.Save(ctx, key, grid.NewRawGrid(2), "inst")
		require.NoError(t, err)
	}

	keys, err := repo.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.GridKey{"alpha", "zeta"}, keys)

	require.NoError(t, repo.Delete(ctx, "alpha"))
	_, err = repo.Load(ctx, "alpha")
	assert.ErrorIs(t, err, core.ErrGridNotFound)
}

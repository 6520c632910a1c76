package boltstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tangled.org/vigil.community/vigil/internal/warnings"
)

func TestWarningStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).WarningStore()

	got, err := store.GetAccumulator(ctx, 100, 1)
	require.NoError(t, err)
	assert.Nil(t, got, "unknown accumulators are nil, not an error")

	a := &warnings.Accumulator{
		User:  100,
		Guild: 1,
		Givens: []warnings.Given{
			{At: time.Now().UTC(), Act: 7},
		},
	}
	require.NoError(t, store.PutAccumulator(ctx, a))

	got, err = store.GetAccumulator(ctx, 100, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Givens, 1)
	assert.Equal(t, int64(7), got.Givens[0].Act)

	t.Run("put replaces", func(t *testing.T) {
		a.Count = 2
		require.NoError(t, store.PutAccumulator(ctx, a))

		got, err := store.GetAccumulator(ctx, 100, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Count)
	})

	t.Run("guilds are keyed separately", func(t *testing.T) {
		got, err := store.GetAccumulator(ctx, 100, 2)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestWarningStoreDeleteAndList(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).WarningStore()

	for _, user := range []int64{100, 101} {
		require.NoError(t, store.PutAccumulator(ctx, &warnings.Accumulator{
			User: user, Guild: 1, Count: 1,
		}))
	}

	all, err := store.ListAccumulators(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, store.DeleteAccumulator(ctx, 100, 1))

	all, err = store.ListAccumulators(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(101), all[0].User)

	// Deleting an absent key is a no-op.
	require.NoError(t, store.DeleteAccumulator(ctx, 100, 1))
}

package boltstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/moderr"
	"tangled.org/vigil.community/vigil/internal/sanctions"
)

func newSanction(family actions.Family, subtype string, user, guild int64) *sanctions.Sanction {
	return &sanctions.Sanction{
		User:     user,
		Family:   family,
		Subtype:  subtype,
		Guild:    guild,
		Action:   1,
		Start:    time.Now().UTC(),
		Duration: 3600,
	}
}

func TestSanctionStoreCreateConflict(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).SanctionStore()

	sn := newSanction(actions.FamilyMute, sanctions.MuteText, 100, 1)
	require.NoError(t, store.CreateSanction(ctx, sn))

	dup := newSanction(actions.FamilyMute, sanctions.MuteText, 100, 1)
	assert.ErrorIs(t, store.CreateSanction(ctx, dup), moderr.ErrConflict)

	t.Run("other subtypes coexist", func(t *testing.T) {
		require.NoError(t, store.CreateSanction(ctx,
			newSanction(actions.FamilyMute, sanctions.MuteVoice, 100, 1)))
	})

	t.Run("global ban key collapses the guild", func(t *testing.T) {
		require.NoError(t, store.CreateSanction(ctx,
			newSanction(actions.FamilyBan, sanctions.ScopeGlobal, 100, 1)))
		err := store.CreateSanction(ctx,
			newSanction(actions.FamilyBan, sanctions.ScopeGlobal, 100, 2))
		assert.ErrorIs(t, err, moderr.ErrConflict)
	})
}

func TestSanctionStoreGetAndDelete(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).SanctionStore()

	sn := newSanction(actions.FamilyHide, "", 100, 1)
	require.NoError(t, store.CreateSanction(ctx, sn))

	got, err := store.GetSanction(ctx, sn.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sn.User, got.User)

	deleted, err := store.DeleteSanction(ctx, sn.Key())
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err = store.GetSanction(ctx, sn.Key())
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an absent key reports nothing was there.
	deleted, err = store.DeleteSanction(ctx, sn.Key())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSanctionStoreList(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).SanctionStore()

	require.NoError(t, store.CreateSanction(ctx, newSanction(actions.FamilyMute, sanctions.MuteText, 100, 1)))
	require.NoError(t, store.CreateSanction(ctx, newSanction(actions.FamilyMute, sanctions.MuteVoice, 101, 1)))
	require.NoError(t, store.CreateSanction(ctx, newSanction(actions.FamilyBan, sanctions.ScopeLocal, 100, 1)))

	mutes, err := store.ListSanctions(ctx, actions.FamilyMute)
	require.NoError(t, err)
	assert.Len(t, mutes, 2)

	bans, err := store.ListSanctions(ctx, actions.FamilyBan)
	require.NoError(t, err)
	assert.Len(t, bans, 1)

	hides, err := store.ListSanctions(ctx, actions.FamilyHide)
	require.NoError(t, err)
	assert.Empty(t, hides)

	byUser, err := store.SanctionsByUser(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)
}

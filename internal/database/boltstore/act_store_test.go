package boltstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/moderr"
)

func newAct(user, guild, moderator int64, kind actions.Kind) *actions.Act {
	return &actions.Act{
		At:        time.Now().UTC(),
		User:      user,
		Guild:     guild,
		Moderator: moderator,
		Kind:      kind,
		Active:    true,
		Counting:  true,
		Reason:    "spam",
	}
}

func TestActStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).ActStore()

	first := newAct(100, 1, 900, actions.MuteKind("text", actions.DirectionGive))
	require.NoError(t, store.CreateAct(ctx, first))
	assert.Equal(t, int64(1), first.ID)

	second := newAct(101, 1, 900, actions.WarnKind(actions.DirectionGive))
	require.NoError(t, store.CreateAct(ctx, second))
	assert.Equal(t, int64(2), second.ID, "ids are monotonic")

	got, err := store.GetAct(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.User, got.User)
	assert.Equal(t, first.Kind, got.Kind)
	assert.True(t, got.Active)

	_, err = store.GetAct(ctx, 999)
	assert.ErrorIs(t, err, moderr.ErrNotFound)
}

func TestActStoreLastActive(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).ActStore()

	kind := actions.MuteKind("text", actions.DirectionGive)

	older := newAct(100, 1, 900, kind)
	require.NoError(t, store.CreateAct(ctx, older))
	newer := newAct(100, 1, 901, kind)
	require.NoError(t, store.CreateAct(ctx, newer))

	got, err := store.LastActive(ctx, 100, 1, kind)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID, got.ID, "the newest active act wins")

	t.Run("closed acts are skipped", func(t *testing.T) {
		require.NoError(t, store.DeactivateAct(ctx, newer.ID, 950))

		got, err := store.LastActive(ctx, 100, 1, kind)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, older.ID, got.ID)
	})

	t.Run("no match returns nil", func(t *testing.T) {
		got, err := store.LastActive(ctx, 100, 2, kind)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("zero guild matches any guild", func(t *testing.T) {
		elsewhere := newAct(100, 9, 902, kind)
		require.NoError(t, store.CreateAct(ctx, elsewhere))

		got, err := store.LastActive(ctx, 100, 0, kind)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, elsewhere.ID, got.ID)
	})
}

func TestActStoreDeactivate(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).ActStore()

	act := newAct(100, 1, 900, actions.BanKind("local", actions.DirectionGive))
	require.NoError(t, store.CreateAct(ctx, act))
	require.NoError(t, store.SetReviewer(ctx, act.ID, 950))
	require.NoError(t, store.DeactivateAct(ctx, act.ID, 960))

	got, err := store.GetAct(ctx, act.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.False(t, got.Counting)
	assert.Equal(t, int64(950), got.Reviewer, "an existing reviewer is kept")

	assert.ErrorIs(t, store.DeactivateAct(ctx, 999, 950), moderr.ErrNotFound)
}

func TestActStoreSetProveLink(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).ActStore()

	act := newAct(100, 1, 900, actions.WarnKind(actions.DirectionGive))
	require.NoError(t, store.CreateAct(ctx, act))
	require.NoError(t, store.SetProveLink(ctx, act.ID, "https://evidence.example/1"))

	got, err := store.GetAct(ctx, act.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://evidence.example/1", got.ProveLink)
}

func TestActStoreQueries(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).ActStore()

	muteKind := actions.MuteKind("text", actions.DirectionGive)

	inGuild1 := newAct(100, 1, 900, muteKind)
	require.NoError(t, store.CreateAct(ctx, inGuild1))
	inGuild2 := newAct(100, 2, 901, muteKind)
	require.NoError(t, store.CreateAct(ctx, inGuild2))

	notCounting := newAct(100, 1, 900, actions.WarnKind(actions.DirectionGive))
	notCounting.Counting = false
	require.NoError(t, store.CreateAct(ctx, notCounting))

	t.Run("by user", func(t *testing.T) {
		acts, err := store.ActsByUser(ctx, 100, actions.UserQuery{})
		require.NoError(t, err)
		assert.Len(t, acts, 3)

		acts, err = store.ActsByUser(ctx, 100, actions.UserQuery{Guild: 1})
		require.NoError(t, err)
		assert.Len(t, acts, 2)

		acts, err = store.ActsByUser(ctx, 100, actions.UserQuery{Guild: 1, CountingOnly: true})
		require.NoError(t, err)
		require.Len(t, acts, 1)
		assert.Equal(t, inGuild1.ID, acts[0].ID)

		acts, err = store.ActsByUser(ctx, 100, actions.UserQuery{After: time.Now().Add(time.Hour)})
		require.NoError(t, err)
		assert.Empty(t, acts)
	})

	t.Run("by moderator", func(t *testing.T) {
		acts, err := store.ActsByModerator(ctx, 900, actions.ModeratorQuery{Guild: 1})
		require.NoError(t, err)
		assert.Len(t, acts, 2)

		acts, err = store.ActsByModerator(ctx, 900, actions.ModeratorQuery{
			From: time.Now().Add(-time.Hour),
			To:   time.Now().Add(-time.Minute),
		})
		require.NoError(t, err)
		assert.Empty(t, acts)
	})

	t.Run("by guild", func(t *testing.T) {
		acts, err := store.ActsByGuild(ctx, 2)
		require.NoError(t, err)
		require.Len(t, acts, 1)
		assert.Equal(t, inGuild2.ID, acts[0].ID)
	})
}

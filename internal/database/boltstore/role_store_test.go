package boltstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tangled.org/vigil.community/vigil/internal/moderr"
	"tangled.org/vigil.community/vigil/internal/roles"
)

func newRequest(user, guild int64) *roles.Request {
	return &roles.Request{
		User:     user,
		Guild:    guild,
		Nickname: "Recruit",
		Role:     "Vanguard",
		Rank:     3,
		Counting: true,
		SentAt:   time.Now().UTC(),
	}
}

func TestRoleStoreOpenIndex(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).RoleStore()

	r := newRequest(100, 1)
	require.NoError(t, store.CreateRequest(ctx, r))
	assert.Equal(t, int64(1), r.ID)

	t.Run("second open request conflicts", func(t *testing.T) {
		err := store.CreateRequest(ctx, newRequest(100, 1))
		assert.ErrorIs(t, err, moderr.ErrConflict)
	})

	t.Run("other guilds are independent", func(t *testing.T) {
		require.NoError(t, store.CreateRequest(ctx, newRequest(100, 2)))
	})

	open, err := store.OpenRequest(ctx, 100, 1)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, r.ID, open.ID)

	t.Run("deciding frees the slot", func(t *testing.T) {
		_, err := store.MutateRequest(ctx, r.ID, func(r *roles.Request) error {
			r.CheckedAt = time.Now().UTC()
			r.Approved = true
			return nil
		})
		require.NoError(t, err)

		open, err := store.OpenRequest(ctx, 100, 1)
		require.NoError(t, err)
		assert.Nil(t, open)

		require.NoError(t, store.CreateRequest(ctx, newRequest(100, 1)))
	})
}

func TestRoleStoreGetAndMutate(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).RoleStore()

	r := newRequest(100, 1)
	require.NoError(t, store.CreateRequest(ctx, r))

	claimed, err := store.MutateRequest(ctx, r.ID, func(r *roles.Request) error {
		r.Moderator = 900
		r.TakenAt = time.Now().UTC()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(900), claimed.Moderator)

	got, err := store.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), got.Moderator)
	assert.Equal(t, roles.StatusUnderReview, got.Status())

	_, err = store.GetRequest(ctx, 999)
	assert.ErrorIs(t, err, moderr.ErrNotFound)

	_, err = store.MutateRequest(ctx, 999, func(*roles.Request) error { return nil })
	assert.ErrorIs(t, err, moderr.ErrNotFound)

	t.Run("a mutate error aborts the write", func(t *testing.T) {
		_, err := store.MutateRequest(ctx, r.ID, func(r *roles.Request) error {
			r.Moderator = 0
			return moderr.Conflictf("request %d is claimed", r.ID)
		})
		assert.ErrorIs(t, err, moderr.ErrConflict)

		got, err := store.GetRequest(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(900), got.Moderator)
	})
}

func TestRoleStoreIsLastRequest(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).RoleStore()

	decide := func(r *roles.Request) {
		_, err := store.MutateRequest(ctx, r.ID, func(r *roles.Request) error {
			r.CheckedAt = time.Now().UTC()
			return nil
		})
		require.NoError(t, err)
	}

	first := newRequest(100, 1)
	require.NoError(t, store.CreateRequest(ctx, first))
	decide(first)

	second := newRequest(100, 1)
	require.NoError(t, store.CreateRequest(ctx, second))
	decide(second)

	other := newRequest(101, 1)
	require.NoError(t, store.CreateRequest(ctx, other))

	last, err := store.IsLastRequest(ctx, first.ID, 100, 1)
	require.NoError(t, err)
	assert.False(t, last)

	last, err = store.IsLastRequest(ctx, second.ID, 100, 1)
	require.NoError(t, err)
	assert.True(t, last, "another user's request does not shadow it")
}

func TestRoleStoreCounting(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).RoleStore()

	open := newRequest(100, 1)
	require.NoError(t, store.CreateRequest(ctx, open))

	decided := newRequest(101, 1)
	require.NoError(t, store.CreateRequest(ctx, decided))
	_, err := store.MutateRequest(ctx, decided.ID, func(r *roles.Request) error {
		r.Moderator = 900
		r.CheckedAt = time.Now().UTC()
		return nil
	})
	require.NoError(t, err)

	n, err := store.CountOpenRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reqs, err := store.RequestsByUser(ctx, 101, 1)
	require.NoError(t, err)
	assert.Len(t, reqs, 1)

	byMod, err := store.RequestsByModerator(ctx, 1, 900,
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, byMod, 1)
	assert.Equal(t, decided.ID, byMod[0].ID)

	t.Run("a partial revisit drops it from the tally", func(t *testing.T) {
		_, err := store.MutateRequest(ctx, decided.ID, func(r *roles.Request) error {
			r.Counting = false
			return nil
		})
		require.NoError(t, err)

		byMod, err := store.RequestsByModerator(ctx, 1, 900,
			time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, byMod)
	})
}

func TestRoleStoreRemovals(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).RoleStore()

	rm := &roles.Removal{
		User:      100,
		Guild:     1,
		Roles:     []string{"Vanguard"},
		At:        time.Now().UTC(),
		Moderator: 900,
	}
	require.NoError(t, store.CreateRemoval(ctx, rm))
	assert.Equal(t, int64(1), rm.ID)

	got, err := store.RemovalsByModerator(ctx, 1, 900,
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"Vanguard"}, got[0].Roles)

	got, err = store.RemovalsByModerator(ctx, 2, 900,
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

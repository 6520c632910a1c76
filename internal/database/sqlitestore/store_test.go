package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/moderr"
	"tangled.org/vigil.community/vigil/internal/notices"
	"tangled.org/vigil.community/vigil/internal/roles"
	"tangled.org/vigil.community/vigil/internal/sanctions"
	"tangled.org/vigil.community/vigil/internal/warnings"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestActStore(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).ActStore()

	kind := actions.MuteKind("text", actions.DirectionGive)
	act := &actions.Act{
		At:        time.Now().UTC(),
		User:      100,
		Guild:     1,
		Moderator: 900,
		Kind:      kind,
		Active:    true,
		Counting:  true,
		Duration:  3600,
		Reason:    "spam",
	}
	require.NoError(t, store.CreateAct(ctx, act))
	require.Equal(t, int64(1), act.ID)

	got, err := store.GetAct(ctx, act.ID)
	require.NoError(t, err)
	assert.Equal(t, kind, got.Kind)
	assert.True(t, got.Active)
	assert.Equal(t, "spam", got.Reason)

	_, err = store.GetAct(ctx, 999)
	assert.ErrorIs(t, err, moderr.ErrNotFound)

	t.Run("last active prefers the newest", func(t *testing.T) {
		newer := &actions.Act{
			At: time.Now().UTC(), User: 100, Guild: 1, Moderator: 901,
			Kind: kind, Active: true,
		}
		require.NoError(t, store.CreateAct(ctx, newer))

		found, err := store.LastActive(ctx, 100, 1, kind)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, newer.ID, found.ID)

		require.NoError(t, store.DeactivateAct(ctx, newer.ID, 950))
		found, err = store.LastActive(ctx, 100, 1, kind)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, act.ID, found.ID)
	})

	t.Run("zero guild matches any guild", func(t *testing.T) {
		elsewhere := &actions.Act{
			At: time.Now().UTC(), User: 100, Guild: 2, Moderator: 902,
			Kind: kind, Active: true,
		}
		require.NoError(t, store.CreateAct(ctx, elsewhere))

		found, err := store.LastActive(ctx, 100, 0, kind)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, elsewhere.ID, found.ID)
	})

	t.Run("review and evidence updates", func(t *testing.T) {
		require.NoError(t, store.SetReviewer(ctx, act.ID, 950))
		require.NoError(t, store.SetProveLink(ctx, act.ID, "https://evidence.example/1"))

		got, err := store.GetAct(ctx, act.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(950), got.Reviewer)
		assert.Equal(t, "https://evidence.example/1", got.ProveLink)
	})

	t.Run("queries", func(t *testing.T) {
		byUser, err := store.ActsByUser(ctx, 100, actions.UserQuery{Guild: 1})
		require.NoError(t, err)
		assert.Len(t, byUser, 2)

		byMod, err := store.ActsByModerator(ctx, 900, actions.ModeratorQuery{Guild: 1})
		require.NoError(t, err)
		assert.Len(t, byMod, 1)

		byGuild, err := store.ActsByGuild(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, byGuild, 2)
	})
}

func TestSanctionStore(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).SanctionStore()

	sn := &sanctions.Sanction{
		User:     100,
		Family:   actions.FamilyMute,
		Subtype:  sanctions.MuteText,
		Guild:    1,
		Action:   1,
		Start:    time.Now().UTC(),
		Duration: 3600,
	}
	require.NoError(t, store.CreateSanction(ctx, sn))

	t.Run("duplicate key conflicts", func(t *testing.T) {
		dup := *sn
		assert.ErrorIs(t, store.CreateSanction(ctx, &dup), moderr.ErrConflict)
	})

	got, err := store.GetSanction(ctx, sn.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sn.Duration, got.Duration)

	mutes, err := store.ListSanctions(ctx, actions.FamilyMute)
	require.NoError(t, err)
	assert.Len(t, mutes, 1)

	byUser, err := store.SanctionsByUser(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

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

func TestWarningStore(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).WarningStore()

	a := &warnings.Accumulator{
		User:  100,
		Guild: 1,
		Count: 1,
		Givens: []warnings.Given{
			{At: time.Now().UTC(), Act: 7},
		},
	}
	require.NoError(t, store.PutAccumulator(ctx, a))

	got, err := store.GetAccumulator(ctx, 100, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Count)
	require.Len(t, got.Givens, 1)
	assert.Equal(t, int64(7), got.Givens[0].Act)

	all, err := store.ListAccumulators(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeleteAccumulator(ctx, 100, 1))
	got, err = store.GetAccumulator(ctx, 100, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRoleStore(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).RoleStore()

	r := &roles.Request{
		User:     100,
		Guild:    1,
		Nickname: "Recruit",
		Role:     "Vanguard",
		Rank:     3,
		Counting: true,
		SentAt:   time.Now().UTC(),
	}
	require.NoError(t, store.CreateRequest(ctx, r))
	require.Equal(t, int64(1), r.ID)

	t.Run("second open request conflicts", func(t *testing.T) {
		dup := *r
		dup.ID = 0
		assert.ErrorIs(t, store.CreateRequest(ctx, &dup), moderr.ErrConflict)
	})

	open, err := store.OpenRequest(ctx, 100, 1)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, r.ID, open.ID)

	t.Run("a mutate error aborts the write", func(t *testing.T) {
		_, err := store.MutateRequest(ctx, r.ID, func(r *roles.Request) error {
			r.Moderator = 555
			return moderr.Conflictf("request %d is claimed", r.ID)
		})
		assert.ErrorIs(t, err, moderr.ErrConflict)

		got, err := store.GetRequest(ctx, r.ID)
		require.NoError(t, err)
		assert.Zero(t, got.Moderator)
	})

	t.Run("deciding frees the slot", func(t *testing.T) {
		_, err := store.MutateRequest(ctx, r.ID, func(r *roles.Request) error {
			r.Moderator = 900
			r.TakenAt = time.Now().UTC()
			r.CheckedAt = time.Now().UTC()
			r.Approved = true
			return nil
		})
		require.NoError(t, err)

		open, err := store.OpenRequest(ctx, 100, 1)
		require.NoError(t, err)
		assert.Nil(t, open)

		next := &roles.Request{
			User: 100, Guild: 1, Nickname: "Veteran", Role: "Vanguard",
			Counting: true, SentAt: time.Now().UTC(),
		}
		require.NoError(t, store.CreateRequest(ctx, next))

		last, err := store.IsLastRequest(ctx, r.ID, 100, 1)
		require.NoError(t, err)
		assert.False(t, last)
		last, err = store.IsLastRequest(ctx, next.ID, 100, 1)
		require.NoError(t, err)
		assert.True(t, last)
	})

	t.Run("moderator work", func(t *testing.T) {
		reqs, err := store.RequestsByModerator(ctx, 1, 900,
			time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Len(t, reqs, 1)

		n, err := store.CountOpenRequests(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("removals", func(t *testing.T) {
		rm := &roles.Removal{
			User: 100, Guild: 1, Roles: []string{"Vanguard"},
			At: time.Now().UTC(), Moderator: 900,
		}
		require.NoError(t, store.CreateRemoval(ctx, rm))
		require.NotZero(t, rm.ID)

		got, err := store.RemovalsByModerator(ctx, 1, 900,
			time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, []string{"Vanguard"}, got[0].Roles)
	})
}

func TestNoticeStore(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).NoticeStore()

	n := &notices.Notification{
		User:      100,
		Guild:     1,
		Moderator: 900,
		Kind:      actions.MuteKind("text", actions.DirectionGive),
		At:        time.Now().UTC(),
		Duration:  3600,
		Message:   555,
	}
	require.NoError(t, store.CreateNotification(ctx, n))
	require.Equal(t, int64(1), n.ID)

	got, err := store.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(555), got.Message)

	require.NoError(t, store.MarkExpired(ctx, n.ID))
	require.NoError(t, store.MarkNotified(ctx, n.ID))

	got, err = store.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, got.Expired)
	assert.True(t, got.Notified)

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

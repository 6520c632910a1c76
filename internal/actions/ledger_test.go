package actions_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/database/boltstore"
	"tangled.org/vigil.community/vigil/internal/moderr"
)

func setupTestLedger(t *testing.T) *actions.Ledger {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := boltstore.Open(boltstore.Options{Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})

	return actions.NewLedger(store.ActStore())
}

func TestLedgerRecord(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestLedger(t)

	t.Run("assigns ids and marks active", func(t *testing.T) {
		first, err := ledger.Record(ctx, actions.RecordParams{
			User:      100,
			Guild:     1,
			Moderator: 900,
			Kind:      actions.WarnKind(actions.DirectionGive),
			Counting:  true,
			Reason:    "spam",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), first.ID)
		assert.True(t, first.Active)
		assert.True(t, first.Counting)
		assert.False(t, first.Reviewed())

		second, err := ledger.Record(ctx, actions.RecordParams{
			User:      101,
			Guild:     1,
			Moderator: 900,
			Kind:      actions.WarnKind(actions.DirectionGive),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), second.ID)
	})

	t.Run("rejects placeholder reasons", func(t *testing.T) {
		_, err := ledger.Record(ctx, actions.RecordParams{
			User:      100,
			Guild:     1,
			Moderator: 900,
			Kind:      actions.WarnKind(actions.DirectionGive),
			Reason:    "[category] pick one",
		})
		assert.ErrorIs(t, err, moderr.ErrInvalidReason)
	})

	t.Run("auto review records the issuing moderator", func(t *testing.T) {
		act, err := ledger.Record(ctx, actions.RecordParams{
			User:       102,
			Guild:      1,
			Moderator:  900,
			Kind:       actions.HideKind(actions.DirectionGive),
			AutoReview: true,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(900), act.Reviewer)
		assert.True(t, act.Reviewed())
	})
}

func TestLedgerRecord_RemovalClosesGrant(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestLedger(t)

	grant, err := ledger.Record(ctx, actions.RecordParams{
		User:      200,
		Guild:     5,
		Moderator: 900,
		Kind:      actions.MuteKind("text", actions.DirectionGive),
		Counting:  true,
		Duration:  3600,
	})
	require.NoError(t, err)

	removal, err := ledger.Record(ctx, actions.RecordParams{
		User:      200,
		Guild:     5,
		Moderator: 901,
		Kind:      actions.MuteKind("text", actions.DirectionRemove),
	})
	require.NoError(t, err)
	assert.True(t, removal.Active)

	closed, err := ledger.Get(ctx, grant.ID)
	require.NoError(t, err)
	assert.False(t, closed.Active)
	assert.False(t, closed.Counting)
	assert.Equal(t, int64(901), closed.Reviewer)
}

func TestLedgerRecord_GlobalRemovalClosesGrantAcrossGuilds(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestLedger(t)

	grant, err := ledger.Record(ctx, actions.RecordParams{
		User:      200,
		Guild:     5,
		Moderator: 900,
		Kind:      actions.BanKind("global", actions.DirectionGive),
		Counting:  true,
	})
	require.NoError(t, err)

	// A global ban is lifted from whichever guild the moderator acts in.
	_, err = ledger.Record(ctx, actions.RecordParams{
		User:      200,
		Guild:     7,
		Moderator: 901,
		Kind:      actions.BanKind("global", actions.DirectionRemove),
	})
	require.NoError(t, err)

	closed, err := ledger.Get(ctx, grant.ID)
	require.NoError(t, err)
	assert.False(t, closed.Active)
	assert.Equal(t, int64(901), closed.Reviewer)
}

func TestLedgerRecord_RemovalIgnoresOtherSubjects(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestLedger(t)

	grant, err := ledger.Record(ctx, actions.RecordParams{
		User:      200,
		Guild:     5,
		Moderator: 900,
		Kind:      actions.MuteKind("text", actions.DirectionGive),
		Counting:  true,
	})
	require.NoError(t, err)

	// Different user, same guild: the grant must stay open.
	_, err = ledger.Record(ctx, actions.RecordParams{
		User:      201,
		Guild:     5,
		Moderator: 901,
		Kind:      actions.MuteKind("text", actions.DirectionRemove),
	})
	require.NoError(t, err)

	got, err := ledger.Get(ctx, grant.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func TestLedgerApprove(t *testing.T) {
	ctx := context.Background()

	t.Run("runs the family effect before committing", func(t *testing.T) {
		ledger := setupTestLedger(t)

		var effectRan bool
		ledger.OnApprove(actions.FamilyWarn, func(ctx context.Context, act *actions.Act) error {
			effectRan = true
			assert.False(t, act.Reviewed(), "effect must see the act unreviewed")
			return nil
		})

		act, err := ledger.Record(ctx, actions.RecordParams{
			User:      300,
			Guild:     1,
			Moderator: 900,
			Kind:      actions.WarnKind(actions.DirectionGive),
		})
		require.NoError(t, err)

		require.NoError(t, ledger.Approve(ctx, act.ID, 950))
		assert.True(t, effectRan)

		got, err := ledger.Get(ctx, act.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(950), got.Reviewer)
	})

	t.Run("effect failure leaves the act open", func(t *testing.T) {
		ledger := setupTestLedger(t)
		boom := errors.New("enforcement down")
		ledger.OnApprove(actions.FamilyWarn, func(ctx context.Context, act *actions.Act) error {
			return boom
		})

		act, err := ledger.Record(ctx, actions.RecordParams{
			User:      301,
			Guild:     1,
			Moderator: 900,
			Kind:      actions.WarnKind(actions.DirectionGive),
		})
		require.NoError(t, err)

		require.ErrorIs(t, ledger.Approve(ctx, act.ID, 950), boom)

		got, err := ledger.Get(ctx, act.ID)
		require.NoError(t, err)
		assert.False(t, got.Reviewed(), "a failed effect must not commit the reviewer")

		// Retry succeeds once the effect recovers.
		ledger.OnApprove(actions.FamilyWarn, func(ctx context.Context, act *actions.Act) error {
			return nil
		})
		require.NoError(t, ledger.Approve(ctx, act.ID, 950))
	})

	t.Run("double approval conflicts", func(t *testing.T) {
		ledger := setupTestLedger(t)
		act, err := ledger.Record(ctx, actions.RecordParams{
			User:      302,
			Guild:     1,
			Moderator: 900,
			Kind:      actions.HideKind(actions.DirectionGive),
		})
		require.NoError(t, err)

		require.NoError(t, ledger.Approve(ctx, act.ID, 950))
		assert.ErrorIs(t, ledger.Approve(ctx, act.ID, 951), moderr.ErrConflict)
	})

	t.Run("unknown act", func(t *testing.T) {
		ledger := setupTestLedger(t)
		assert.ErrorIs(t, ledger.Approve(ctx, 999, 950), moderr.ErrNotFound)
	})
}

func TestLedgerDeactivate(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestLedger(t)

	act, err := ledger.Record(ctx, actions.RecordParams{
		User:      400,
		Guild:     1,
		Moderator: 900,
		Kind:      actions.WarnKind(actions.DirectionGive),
		Counting:  true,
	})
	require.NoError(t, err)

	require.NoError(t, ledger.Deactivate(ctx, act.ID, 950))

	got, err := ledger.Get(ctx, act.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.False(t, got.Counting)
	assert.Equal(t, int64(950), got.Reviewer)
}

func TestLedgerSimilar(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestLedger(t)

	record := func(user, moderator int64, counting bool) {
		t.Helper()
		_, err := ledger.Record(ctx, actions.RecordParams{
			User:      user,
			Guild:     7,
			Moderator: moderator,
			Kind:      actions.WarnKind(actions.DirectionGive),
			Counting:  counting,
		})
		require.NoError(t, err)
	}

	// Moderator 900 warns user 500 three times, user 501 once.
	record(500, 900, true)
	record(500, 900, true)
	record(500, 900, true)
	record(501, 900, true)
	// Moderator 901 warns user 500 twice, but one is not counting.
	record(500, 901, true)
	record(500, 901, false)

	pairs, err := ledger.Similar(ctx, 7)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, int64(900), pairs[0].Moderator)
	assert.Equal(t, int64(500), pairs[0].User)
	assert.Equal(t, 3, pairs[0].Count)
}

func TestLedgerByGuild(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestLedger(t)

	for _, guild := range []int64{1, 1, 2} {
		_, err := ledger.Record(ctx, actions.RecordParams{
			User:      600,
			Guild:     guild,
			Moderator: 900,
			Kind:      actions.WarnKind(actions.DirectionGive),
		})
		require.NoError(t, err)
	}

	acts, err := ledger.ByGuild(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, acts, 2)
}

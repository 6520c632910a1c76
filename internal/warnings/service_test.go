package warnings_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/database/boltstore"
	"tangled.org/vigil.community/vigil/internal/moderr"
	"tangled.org/vigil.community/vigil/internal/warnings"
)

func setupWarningsService(t *testing.T) (*warnings.Service, *actions.Ledger) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := boltstore.Open(boltstore.Options{Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})

	ledger := actions.NewLedger(store.ActStore())
	return warnings.NewService(store.WarningStore(), ledger), ledger
}

func TestWarningsGive(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupWarningsService(t)

	act, err := svc.Give(ctx, warnings.GiveParams{
		User:      100,
		Guild:     1,
		Moderator: 900,
		Reason:    "spam",
	})
	require.NoError(t, err)
	assert.Equal(t, actions.WarnKind(actions.DirectionGive), act.Kind)
	assert.True(t, act.Counting)

	// Issuance alone never moves the accumulator.
	active, err := svc.Active(ctx, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, active)
}

func TestWarningsApply(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupWarningsService(t)

	give := func() *actions.Act {
		t.Helper()
		act, err := svc.Give(ctx, warnings.GiveParams{User: 100, Guild: 1, Moderator: 900})
		require.NoError(t, err)
		return act
	}

	first := give()
	escalated, err := svc.Apply(ctx, first)
	require.NoError(t, err)
	assert.False(t, escalated)

	// Applying the same act again does not double-count.
	escalated, err = svc.Apply(ctx, first)
	require.NoError(t, err)
	assert.False(t, escalated)

	active, err := svc.Active(ctx, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	escalated, err = svc.Apply(ctx, give())
	require.NoError(t, err)
	assert.False(t, escalated)

	escalated, err = svc.Apply(ctx, give())
	require.NoError(t, err)
	assert.True(t, escalated, "third warning reaches the threshold")

	// Apply never clears; the caller resets after the escalation lands.
	active, err = svc.Active(ctx, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, active)

	require.NoError(t, svc.Reset(ctx, 100, 1))
	active, err = svc.Active(ctx, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, active, "fourth warning starts a fresh count")
}

func TestWarningsRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("drops the oldest active warning", func(t *testing.T) {
		svc, ledger := setupWarningsService(t)

		for i := 0; i < 2; i++ {
			act, err := svc.Give(ctx, warnings.GiveParams{User: 100, Guild: 1, Moderator: 900})
			require.NoError(t, err)
			_, err = svc.Apply(ctx, act)
			require.NoError(t, err)
		}

		removal, err := svc.Remove(ctx, 100, 1, 901, "appealed", false)
		require.NoError(t, err)
		assert.Equal(t, actions.WarnKind(actions.DirectionRemove), removal.Kind)

		active, err := svc.Active(ctx, 100, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, active)

		got, err := ledger.Get(ctx, removal.ID)
		require.NoError(t, err)
		assert.Equal(t, "appealed", got.Reason)
	})

	t.Run("nothing to remove", func(t *testing.T) {
		svc, _ := setupWarningsService(t)
		_, err := svc.Remove(ctx, 100, 1, 900, "", false)
		assert.ErrorIs(t, err, moderr.ErrNotFound)
	})
}

func TestWarningsActiveAccumulators(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupWarningsService(t)

	for _, user := range []int64{100, 101} {
		act, err := svc.Give(ctx, warnings.GiveParams{User: user, Guild: 1, Moderator: 900})
		require.NoError(t, err)
		_, err = svc.Apply(ctx, act)
		require.NoError(t, err)
	}

	n, err := svc.ActiveAccumulators(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

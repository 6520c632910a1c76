package notices_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/database/boltstore"
	"tangled.org/vigil.community/vigil/internal/moderr"
	"tangled.org/vigil.community/vigil/internal/notices"
)

func setupNoticesService(t *testing.T) (*notices.Service, notices.Store) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := boltstore.Open(boltstore.Options{Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})

	svc := notices.NewService(store.NoticeStore())
	t.Cleanup(svc.Stop)
	return svc, store.NoticeStore()
}

func noopCallback(ctx context.Context, n *notices.Notification) error { return nil }

func TestNoticesGive(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupNoticesService(t)
	svc.SetCallback(noopCallback)

	n, err := svc.Give(ctx, notices.GiveParams{
		User:      100,
		Guild:     1,
		Moderator: 900,
		Kind:      actions.MuteKind("text", actions.DirectionGive),
		Duration:  3600,
		Message:   555,
	})
	require.NoError(t, err)
	assert.NotZero(t, n.ID)
	assert.False(t, n.Expired)
	assert.Equal(t, 1, svc.PendingCount())

	got, err := svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(555), got.Message)
}

func TestNoticesExpireMarksNotDeletes(t *testing.T) {
	ctx := context.Background()
	svc, store := setupNoticesService(t)

	due := make(chan *notices.Notification, 1)
	svc.SetCallback(func(ctx context.Context, n *notices.Notification) error {
		due <- n
		return nil
	})

	n, err := svc.Give(ctx, notices.GiveParams{
		User: 100, Guild: 1, Moderator: 900,
		Kind:     actions.MuteKind("text", actions.DirectionGive),
		Duration: 1,
	})
	require.NoError(t, err)

	select {
	case got := <-due:
		assert.Equal(t, n.ID, got.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("notice did not come due")
	}

	assert.Equal(t, 0, svc.PendingCount())

	// The row survives expiration for late delivery.
	row, err := store.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, row.Expired)
	assert.False(t, row.Notified)
}

func TestNoticesNotify(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupNoticesService(t)

	due := make(chan struct{}, 1)
	svc.SetCallback(func(ctx context.Context, n *notices.Notification) error {
		due <- struct{}{}
		return nil
	})

	n, err := svc.Give(ctx, notices.GiveParams{
		User: 100, Guild: 1, Moderator: 900,
		Kind:     actions.BanKind("local", actions.DirectionGive),
		Duration: 1,
	})
	require.NoError(t, err)

	t.Run("acknowledgement before expiry conflicts", func(t *testing.T) {
		assert.ErrorIs(t, svc.Notify(ctx, n.ID), moderr.ErrConflict)
	})

	select {
	case <-due:
	case <-time.After(3 * time.Second):
		t.Fatal("notice did not come due")
	}

	require.NoError(t, svc.Notify(ctx, n.ID))

	t.Run("second acknowledgement conflicts", func(t *testing.T) {
		assert.ErrorIs(t, svc.Notify(ctx, n.ID), moderr.ErrConflict)
	})

	t.Run("unknown notice", func(t *testing.T) {
		assert.ErrorIs(t, svc.Notify(ctx, 999), moderr.ErrNotFound)
	})
}

func TestNoticesLoadReschedules(t *testing.T) {
	ctx := context.Background()
	svc, store := setupNoticesService(t)
	svc.SetCallback(noopCallback)

	_, err := svc.Give(ctx, notices.GiveParams{
		User: 100, Guild: 1, Moderator: 900,
		Kind:     actions.MuteKind("full", actions.DirectionGive),
		Duration: 3600,
	})
	require.NoError(t, err)
	svc.Stop()

	// Simulated restart over the same store.
	fresh := notices.NewService(store)
	t.Cleanup(fresh.Stop)
	fresh.SetCallback(noopCallback)
	require.NoError(t, fresh.Load(ctx))
	assert.Equal(t, 1, fresh.PendingCount())
}

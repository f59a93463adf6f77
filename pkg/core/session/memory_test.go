package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxcart/voxcart/pkg/core"
	"github.com/voxcart/voxcart/pkg/core/types"
)

func newTestSession(id string) *types.Session {
	return &types.Session{
		ID:        id,
		Language:  "en-US",
		State:     types.StateActive,
		StartedAt: time.Now().UTC(),
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	sess := newTestSession("sess_1")
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Get(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, "sess_1", got.ID)
	assert.Equal(t, types.StateActive, got.State)

	// The store hands out clones, never aliases.
	got.State = types.StateCompleted
	again, err := store.Get(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, types.StateActive, again.State)
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTestSession("sess_1")))
	err := store.Create(ctx, newTestSession("sess_1"))
	require.Error(t, err)
	assert.True(t, core.IsType(err, core.ErrStorage))
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemory()
	_, err := store.Get(context.Background(), "sess_missing")
	require.Error(t, err)
	assert.True(t, core.IsType(err, core.ErrNotFound))
}

func TestMemoryStore_AppendTurn(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newTestSession("sess_1")))

	turn := types.Turn{Role: types.RoleUser, Content: "hello", Timestamp: time.Now().UTC()}
	require.NoError(t, store.AppendTurn(ctx, "sess_1", turn, types.AnalyticsDelta{}))

	got, err := store.Get(ctx, "sess_1")
	require.NoError(t, err)
	require.Len(t, got.History, 1)
	assert.Equal(t, got.TotalTurns, len(got.History))
	assert.Equal(t, "hello", got.History[0].Content)
	assert.Empty(t, got.Analytics.IntentCounts)

	err = store.AppendTurn(ctx, "sess_missing", turn, types.AnalyticsDelta{})
	assert.True(t, core.IsType(err, core.ErrNotFound))
}

func TestMemoryStore_AppendTurn_AppliesAnalyticsDelta(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newTestSession("sess_1")))

	reply := types.Turn{Role: types.RoleAssistant, Content: "Adding it now.", Intent: "add_to_cart", Timestamp: time.Now().UTC()}
	delta := types.AnalyticsDelta{Intent: "add_to_cart", ConversionAttempt: true}
	require.NoError(t, store.AppendTurn(ctx, "sess_1", reply, delta))

	got, err := store.Get(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Analytics.IntentCounts["add_to_cart"])
	assert.Equal(t, 1, got.Analytics.ConversionAttempts)
}

func TestMemoryStore_PutOverwrites(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newTestSession("sess_1")))

	sess, err := store.Get(ctx, "sess_1")
	require.NoError(t, err)
	sess.State = types.StatePaused
	require.NoError(t, store.Put(ctx, sess))

	got, err := store.Get(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, types.StatePaused, got.State)
}

func TestMemoryStore_ListIdle(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	cutoff := time.Now().UTC()

	old := newTestSession("sess_old")
	old.StartedAt = cutoff.Add(-2 * time.Hour)
	require.NoError(t, store.Create(ctx, old))

	fresh := newTestSession("sess_fresh")
	fresh.StartedAt = cutoff.Add(time.Minute)
	require.NoError(t, store.Create(ctx, fresh))

	oldPaused := newTestSession("sess_old_paused")
	oldPaused.StartedAt = cutoff.Add(-2 * time.Hour)
	oldPaused.State = types.StatePaused
	require.NoError(t, store.Create(ctx, oldPaused))

	ids, err := store.ListIdle(ctx, types.StateActive, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{"sess_old"}, ids)
}

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateReadDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))
	assert.ErrorIs(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"), ErrAlreadyExists)

	doc, err := store.Read(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, LifecycleActive, doc.State)

	require.NoError(t, store.Delete(ctx, "call-1"))
	_, err = store.Read(ctx, "call-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ReadReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))
	require.NoError(t, store.AppendTurn(ctx, "call-1", RoleUser, "hello"))

	doc, err := store.Read(ctx, "call-1")
	require.NoError(t, err)
	doc.History[0].Content = "mutated"
	doc.TurnCount = 99

	fresh, err := store.Read(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", fresh.History[0].Content)
	assert.Equal(t, 1, fresh.TurnCount)
}

func TestMemoryStore_ExitReasonWriteOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))
	require.NoError(t, store.SetExitReason(ctx, "call-1", ExitReasonConfusion))
	require.NoError(t, store.SetExitReason(ctx, "call-1", ExitReasonTimeout))

	doc, err := store.Read(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, ExitReasonConfusion, doc.ExitReason)
}

func TestMemoryStore_LifecycleNeverReverses(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))
	require.NoError(t, store.MarkEnding(ctx, "call-1"))
	require.NoError(t, store.MarkEnded(ctx, "call-1"))
	require.NoError(t, store.MarkEnding(ctx, "call-1"))

	doc, err := store.Read(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, LifecycleEnded, doc.State)
}

func TestMemoryStore_EntryExpiresWithoutDelete(t *testing.T) {
	store := NewMemoryStore(WithMemoryTTL(time.Minute))
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))

	now = now.Add(2 * time.Minute)

	_, err := store.Read(ctx, "call-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_WritesRefreshTTL(t *testing.T) {
	store := NewMemoryStore(WithMemoryTTL(time.Minute))
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))

	now = now.Add(40 * time.Second)
	require.NoError(t, store.ResetSilence(ctx, "call-1"))
	now = now.Add(40 * time.Second)

	_, err := store.Read(ctx, "call-1")
	require.NoError(t, err)
}

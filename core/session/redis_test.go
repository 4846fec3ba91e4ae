package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return NewRedisStore(client, opts...), mr
}

func TestRedisStore_ReadNotFound(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	_, err := store.Read(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_CreateAndRead(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))

	doc, err := store.Read(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, "call-1", doc.CallID)
	assert.Equal(t, "tenant-1", doc.TenantID)
	assert.Equal(t, "profile-1", doc.AIProfileID)
	assert.Equal(t, LifecycleActive, doc.State)
	assert.Zero(t, doc.TurnCount)
	assert.Empty(t, doc.History)
	assert.False(t, doc.StartedAt.IsZero())
}

func TestRedisStore_CreateTwiceFails(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))
	assert.ErrorIs(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"), ErrAlreadyExists)
}

func TestRedisStore_AppendTurnRoundTrip(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))

	turns := []struct {
		role    Role
		content string
	}{
		{RoleUser, "hello"},
		{RoleAssistant, "hi, how can I help?"},
		{RoleUser, "what are your opening hours?"},
		{RoleAssistant, "we are open nine to five"},
	}
	for _, turn := range turns {
		require.NoError(t, store.AppendTurn(ctx, "call-1", turn.role, turn.content))
	}

	doc, err := store.Read(ctx, "call-1")
	require.NoError(t, err)
	require.Len(t, doc.History, len(turns))
	for i, turn := range turns {
		assert.Equal(t, turn.role, doc.History[i].Role)
		assert.Equal(t, turn.content, doc.History[i].Content)
		assert.NotEmpty(t, doc.History[i].ID)
	}
	// Only user turns count toward the turn limit.
	assert.Equal(t, 2, doc.TurnCount)
}

func TestRedisStore_TurnCountNeverDecreases(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))

	prev := 0
	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendTurn(ctx, "call-1", RoleUser, "utterance"))
		require.NoError(t, store.AppendTurn(ctx, "call-1", RoleAssistant, "response"))

		doc, err := store.Read(ctx, "call-1")
		require.NoError(t, err)
		assert.Equal(t, prev+1, doc.TurnCount)
		prev = doc.TurnCount
	}
}

func TestRedisStore_SilenceCounter(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))

	count, err := store.IncrementSilence(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.IncrementSilence(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.ResetSilence(ctx, "call-1"))

	doc, err := store.Read(ctx, "call-1")
	require.NoError(t, err)
	assert.Zero(t, doc.SilenceCount)
}

func TestRedisStore_ExitReasonWriteOnce(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))
	require.NoError(t, store.SetExitReason(ctx, "call-1", ExitReasonSilence))
	require.NoError(t, store.SetExitReason(ctx, "call-1", ExitReasonMaxTurns))

	doc, err := store.Read(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, ExitReasonSilence, doc.ExitReason)
}

func TestRedisStore_MarkEnding(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))
	require.NoError(t, store.MarkEnding(ctx, "call-1"))

	doc, err := store.Read(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, LifecycleEnding, doc.State)
}

func TestRedisStore_LifecycleNeverReverses(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))
	require.NoError(t, store.MarkEnding(ctx, "call-1"))
	require.NoError(t, store.MarkEnded(ctx, "call-1"))

	doc, err := store.Read(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, LifecycleEnded, doc.State)

	// A late MarkEnding must not move the state back.
	require.NoError(t, store.MarkEnding(ctx, "call-1"))
	doc, err = store.Read(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, LifecycleEnded, doc.State)
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))
	require.NoError(t, store.Delete(ctx, "call-1"))

	_, err := store.Read(ctx, "call-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "call-1"), ErrNotFound)
}

func TestRedisStore_EntryExpiresWithoutDelete(t *testing.T) {
	store, mr := setupRedisStore(t, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))

	mr.FastForward(2 * time.Minute)

	_, err := store.Read(ctx, "call-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_WritesRefreshTTL(t *testing.T) {
	store, mr := setupRedisStore(t, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "call-1", "tenant-1", "profile-1"))

	mr.FastForward(40 * time.Second)
	require.NoError(t, store.AppendTurn(ctx, "call-1", RoleUser, "still here"))
	mr.FastForward(40 * time.Second)

	// 80s elapsed in total, but the append reset the clock.
	_, err := store.Read(ctx, "call-1")
	require.NoError(t, err)
}

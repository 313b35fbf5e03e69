package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return mr, NewRedis(rdb)
}

func exerciseLeaser(t *testing.T, l Leaser) {
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "alice", "s1", time.Minute))
	assert.ErrorIs(t, l.Acquire(ctx, "alice", "s2", time.Minute), ErrLeaseHeld)

	// other owners are independent
	require.NoError(t, l.Acquire(ctx, "bob", "s3", time.Minute))

	// a stale session cannot free the current holder
	require.NoError(t, l.Release(ctx, "alice", "s2"))
	assert.ErrorIs(t, l.Acquire(ctx, "alice", "s4", time.Minute), ErrLeaseHeld)

	require.NoError(t, l.Release(ctx, "alice", "s1"))
	require.NoError(t, l.Acquire(ctx, "alice", "s5", time.Minute))

	// releasing twice is harmless
	require.NoError(t, l.Release(ctx, "alice", "s5"))
	require.NoError(t, l.Release(ctx, "alice", "s5"))
	require.NoError(t, l.Acquire(ctx, "alice", "s6", time.Minute))
}

func TestMemoryLease(t *testing.T) {
	m := NewMemory()
	exerciseLeaser(t, m)

	id, ok := m.Holder("alice")
	assert.True(t, ok)
	assert.Equal(t, "s6", id)
}

func TestRedisLease(t *testing.T) {
	_, r := setupMiniRedis(t)
	exerciseLeaser(t, r)
}

func TestRedisLeaseExpires(t *testing.T) {
	mr, r := setupMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Acquire(ctx, "alice", "s1", time.Minute))
	mr.FastForward(2 * time.Minute)

	assert.NoError(t, r.Acquire(ctx, "alice", "s2", time.Minute))
}

func TestMemoryLeaseExpires(t *testing.T) {
	m := NewMemory()
	start := time.Now()
	m.now = func() time.Time { return start }
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "alice", "s1", time.Minute))
	require.NoError(t, m.Acquire(ctx, "bob", "s2", 0))

	m.now = func() time.Time { return start.Add(2 * time.Minute) }
	require.NoError(t, m.Acquire(ctx, "alice", "s3", time.Minute))
	assert.ErrorIs(t, m.Acquire(ctx, "alice", "s4", time.Minute), ErrLeaseHeld)

	// without a ttl the lease is held until released
	assert.ErrorIs(t, m.Acquire(ctx, "bob", "s5", time.Minute), ErrLeaseHeld)

	// the expired holder no longer frees the lease
	require.NoError(t, m.Release(ctx, "alice", "s1"))
	id, ok := m.Holder("alice")
	assert.True(t, ok)
	assert.Equal(t, "s3", id)

	require.NoError(t, m.Release(ctx, "alice", "s3"))
	require.NoError(t, m.Acquire(ctx, "alice", "s6", time.Minute))
}

package redislocker

import (
	"context"
	"testing"
	"time"

	"github.com/OdyseeTeam/mintstudio/internal/test"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T, opts ...Option) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	m, rdb := test.Redis(t)
	l, err := New(rdb, opts...)
	require.NoError(t, err)
	return l, m
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	l, _ := newLocker(t)

	taken := testutil.ToFloat64(lockOps.WithLabelValues("lock", "taken"))
	lock, err := l.TryLock(ctx, "acc-1")
	require.NoError(t, err)

	_, err = l.TryLock(ctx, "acc-1")
	assert.ErrorIs(t, err, ErrLocked)
	assert.Equal(t, taken+1, testutil.ToFloat64(lockOps.WithLabelValues("lock", "taken")))

	other, err := l.TryLock(ctx, "acc-2")
	require.NoError(t, err)
	require.NoError(t, other.Unlock(ctx))

	require.NoError(t, lock.Unlock(ctx))
	lock, err = l.TryLock(ctx, "acc-1")
	require.NoError(t, err)
	require.NoError(t, lock.Unlock(ctx))
}

func TestLockerExpiry(t *testing.T) {
	ctx := context.Background()
	l, m := newLocker(t, WithExpiry(time.Second), WithPrefix("test:"))

	stale, err := l.TryLock(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, m.Exists("test:acc-1"))

	m.FastForward(2 * time.Second)
	lock, err := l.TryLock(ctx, "acc-1")
	require.NoError(t, err)

	// The crashed holder cannot release a lock that moved on.
	assert.Error(t, stale.Unlock(ctx))
	assert.True(t, m.Exists("test:acc-1"))
	require.NoError(t, lock.Unlock(ctx))
}

func TestLockerUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()
	_, err := New(rdb)
	assert.Error(t, err)
}

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/escrow/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "tx-1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)

	assert.True(t, mr.Exists("test:lock:tx-1"), "Lock key should be set in Redis")

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:tx-1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	_, client := newClient(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:")

	unlock1, err := locker1.Lock(context.Background(), "shared", 5*time.Second)
	require.NoError(t, err)

	// Second client must time out while the first holds the lock.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = locker2.Lock(ctx, "shared", 5*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock1(context.Background()))

	unlock2, err := locker2.Lock(context.Background(), "shared", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(context.Background()))
}

func TestRedisLocker_UnlockDoesNotStealForeignLock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "tx-1", time.Second)
	require.NoError(t, err)

	// Lock expires and another holder takes it over.
	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists("test:lock:tx-1"))
	require.NoError(t, mr.Set("test:lock:tx-1", "someone-else"))

	require.NoError(t, unlock(ctx))
	val, err := mr.Get("test:lock:tx-1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

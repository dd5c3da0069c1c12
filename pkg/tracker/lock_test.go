package tracker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/escrow/pkg/adapters/memory"
	"github.com/aretw0/escrow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_LockLifecycle(t *testing.T) {
	tr, err := New(memory.NewStore())
	require.NoError(t, err)
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("transaction-%d", i)
		_ = tr.withLock(ctx, id, func(context.Context) error { return nil })
	}

	if n := tr.locks.size(); n != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory", n)
	}
}

func TestTracker_WithLockSerializes(t *testing.T) {
	tr, err := New(memory.NewStore())
	require.NoError(t, err)
	ctx := context.Background()

	var (
		inside  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.withLock(ctx, "same", func(context.Context) error {
				if inside.Add(1) > 1 {
					overlap.Store(true)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.False(t, overlap.Load(), "critical sections for one transaction must not overlap")
}

type recordingLocker struct {
	mu       sync.Mutex
	keys     []string
	released int
	fail     error
}

func (l *recordingLocker) Lock(_ context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	l.keys = append(l.keys, key)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
		return nil
	}, nil
}

func TestTracker_DistributedLock(t *testing.T) {
	locker := &recordingLocker{}
	tr, err := New(memory.NewStore(), WithLocker(locker), WithLockTTL(time.Second))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, tr.withLock(ctx, "tx-1", func(context.Context) error { return nil }))
	assert.Equal(t, []string{"tx-1"}, locker.keys)
	assert.Equal(t, 1, locker.released)

	locker.fail = fmt.Errorf("redis down")
	called := false
	err = tr.withLock(ctx, "tx-1", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorContains(t, err, "failed to acquire distributed lock")
	assert.False(t, called)
	assert.Equal(t, 0, tr.locks.size())
}

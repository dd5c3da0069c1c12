package tracker

import (
	"context"
	"fmt"
	"sync"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per transaction and forgets it once no caller holds a reference.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (k *keyedMutex) acquire(key string) *lockEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, exists := k.locks[key]
	if !exists {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (k *keyedMutex) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, exists := k.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(k.locks, key)
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// withLock executes fn while holding the local and (if configured) distributed lock for a transaction.
func (t *Tracker) withLock(ctx context.Context, transactionID string, fn func(context.Context) error) error {
	entry := t.locks.acquire(transactionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		t.locks.release(transactionID)
	}()

	if t.locker != nil {
		unlock, err := t.locker.Lock(ctx, transactionID, t.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				t.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"transaction_id", transactionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

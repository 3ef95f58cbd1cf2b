package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// KeyLock implements domain.LockManager with in-process mutexes, one per key.
// It is the single-node counterpart of the redis lock manager: same contract,
// no network. Unlike the redis implementation it blocks until the lock is
// free (or the context is cancelled) instead of failing with ErrLockHeld,
// since waiting is cheap in-process.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyEntry
}

type keyEntry struct {
	ch   chan struct{} // capacity 1; holding the token means holding the lock
	refs int
}

// NewKeyLock creates an empty KeyLock.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyEntry)}
}

// Acquire obtains the lock for key, waiting if necessary. The ttl is ignored;
// in-process locks cannot leak past the process. The returned unlock function
// is safe to call more than once.
func (kl *KeyLock) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	kl.mu.Lock()
	e, ok := kl.locks[key]
	if !ok {
		e = &keyEntry{ch: make(chan struct{}, 1)}
		e.ch <- struct{}{}
		kl.locks[key] = e
	}
	e.refs++
	kl.mu.Unlock()

	select {
	case <-e.ch:
	case <-ctx.Done():
		kl.release(key, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			kl.release(key, e, true)
		})
	}
	return unlock, nil
}

// release drops a reference and, when the caller held the token, returns it.
// Entries with no remaining references are removed so the map does not grow
// with one entry per proposition forever.
func (kl *KeyLock) release(key string, e *keyEntry, heldToken bool) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if heldToken {
		e.ch <- struct{}{}
	}
	e.refs--
	if e.refs == 0 {
		delete(kl.locks, key)
	}
}

// Compile-time interface check.
var _ domain.LockManager = (*KeyLock)(nil)

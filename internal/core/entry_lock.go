package core

import (
	"context"
	"sync"
)

// KeyedLocker is the in-process EntryLocker. It keeps one mutex per inbox
// entry currently in use and forgets it once the last holder leaves.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[int64]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker creates an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[int64]*keyedLock)}
}

// Lock blocks until id is free or ctx is done.
func (l *KeyedLocker) Lock(ctx context.Context, id int64) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(id, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.ch
			l.release(id, lk)
		})
	}, nil
}

func (l *KeyedLocker) release(id int64, lk *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, id)
	}
}

// Len returns the number of entries with holders or waiters.
func (l *KeyedLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

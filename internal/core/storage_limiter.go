package core

// storage_limiter.go implements concurrency control for photo storage.
//
// Writing an upload and moving files into permanent storage are the I/O
// heavy parts of the inbox. The limiter uses a semaphore to restrict them to
// a configurable number of parallel operations. When all slots are occupied,
// new requests wait up to maxWait before failing with ErrStorageBusy.
//
// The limiter also supports graceful shutdown via WaitForDrain, which blocks
// until all active operations complete.

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/JonMunkholm/stationinbox/internal/metrics"
)

// ErrStorageBusy is returned when all storage slots are occupied and the
// wait timeout expires. Clients should retry after a short delay.
var ErrStorageBusy = errors.New("photo storage busy, please try again later")

// DefaultMaxConcurrentStorage is the default limit for parallel storage operations.
const DefaultMaxConcurrentStorage = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 10 * time.Second

// StorageLimiter controls concurrent storage operations using a semaphore pattern.
type StorageLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewStorageLimiter creates a limiter that allows at most maxConcurrent
// simultaneous operations. Requests that cannot acquire a slot within
// maxWait receive ErrStorageBusy.
func NewStorageLimiter(maxConcurrent int, maxWait time.Duration) *StorageLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentStorage
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &StorageLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire attempts to acquire a slot.
// The caller MUST call Release() when the operation completes (use defer).
func (l *StorageLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		metrics.StorageInFlight.Inc()
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.StorageRejectedTotal.Inc()
		return ErrStorageBusy
	}
}

// Release releases a previously acquired slot.
// Must be called exactly once for each successful Acquire.
func (l *StorageLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	metrics.StorageInFlight.Dec()

	<-l.semaphore
}

// ActiveCount returns the number of currently active operations.
func (l *StorageLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the maximum allowed concurrent operations.
func (l *StorageLimiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// Available returns the number of available slots.
func (l *StorageLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until all active operations complete or ctx is cancelled.
func (l *StorageLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// StorageLimiterStatus is a snapshot of the limiter's state.
type StorageLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns a snapshot of the limiter state.
func (l *StorageLimiter) Status() StorageLimiterStatus {
	return StorageLimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: l.MaxConcurrent(),
	}
}

// LimitedStorage wraps a PhotoStorage so that every call moving binaries
// holds a limiter slot while it runs.
type LimitedStorage struct {
	PhotoStorage
	limiter *StorageLimiter
}

// NewLimitedStorage wraps storage with limiter.
func NewLimitedStorage(storage PhotoStorage, limiter *StorageLimiter) *LimitedStorage {
	return &LimitedStorage{PhotoStorage: storage, limiter: limiter}
}

// Limiter returns the wrapped limiter.
func (s *LimitedStorage) Limiter() *StorageLimiter {
	return s.limiter
}

func (s *LimitedStorage) StoreUpload(ctx context.Context, body io.Reader, filename string) (uint32, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return 0, err
	}
	defer s.limiter.Release()
	return s.PhotoStorage.StoreUpload(ctx, body, filename)
}

func (s *LimitedStorage) ImportPhoto(ctx context.Context, entry InboxEntry, station Station) error {
	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer s.limiter.Release()
	return s.PhotoStorage.ImportPhoto(ctx, entry, station)
}

func (s *LimitedStorage) UnimportPhoto(ctx context.Context, entry InboxEntry, station Station) error {
	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer s.limiter.Release()
	return s.PhotoStorage.UnimportPhoto(ctx, entry, station)
}

func (s *LimitedStorage) Reject(ctx context.Context, entry InboxEntry) error {
	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer s.limiter.Release()
	return s.PhotoStorage.Reject(ctx, entry)
}

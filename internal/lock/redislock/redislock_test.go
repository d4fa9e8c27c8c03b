package redislock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, ttl), mr
}

func TestLockAndRelease(t *testing.T) {
	l, mr := newLocker(t, time.Minute)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, 42)
	require.NoError(t, err)
	assert.True(t, mr.Exists("rsapi:inbox:lock:42"))

	unlock()
	assert.False(t, mr.Exists("rsapi:inbox:lock:42"))
	unlock()
}

func TestLockWaitsForHolder(t *testing.T) {
	l, _ := newLocker(t, time.Minute)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, 1)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := l.Lock(ctx, 1)
		if err == nil {
			second()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second holder got the lock while the first still holds it")
	case <-time.After(100 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second holder never got the lock")
	}
}

func TestLockContextCancelled(t *testing.T) {
	l, _ := newLocker(t, time.Minute)
	unlock, err := l.Lock(context.Background(), 2)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, 2)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	l, mr := newLocker(t, time.Second)
	ctx := context.Background()

	stale, err := l.Lock(ctx, 3)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := l.Lock(ctx, 3)
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("rsapi:inbox:lock:3"), "stale unlock must not drop the new holder's lock")
	fresh()
	assert.False(t, mr.Exists("rsapi:inbox:lock:3"))
}

func TestHeldLockIsRenewed(t *testing.T) {
	ttl := 150 * time.Millisecond
	l, mr := newLocker(t, ttl)
	key := "rsapi:inbox:lock:4"

	unlock, err := l.Lock(context.Background(), 4)
	require.NoError(t, err)

	mr.SetTTL(key, time.Millisecond)
	assert.Eventually(t, func() bool { return mr.TTL(key) == ttl }, time.Second, 10*time.Millisecond)

	unlock()
	assert.False(t, mr.Exists(key))
}

func TestRenewalStopsAfterTakeover(t *testing.T) {
	ttl := 150 * time.Millisecond
	l, mr := newLocker(t, ttl)
	key := "rsapi:inbox:lock:5"

	stale, err := l.Lock(context.Background(), 5)
	require.NoError(t, err)
	defer stale()

	require.NoError(t, mr.Set(key, "someone-else"))
	mr.SetTTL(key, time.Hour)
	time.Sleep(2 * ttl)

	assert.Equal(t, time.Hour, mr.TTL(key), "a lost lock must not be extended")
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

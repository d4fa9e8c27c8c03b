// Package redislock serializes admin commands per inbox entry across
// several service instances with Redis.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/stationinbox/internal/core"
	"github.com/JonMunkholm/stationinbox/internal/logging"
)

const (
	keyPrefix    = "rsapi:inbox:lock:"
	pollInterval = 25 * time.Millisecond
)

// release deletes the key only if it still carries our token, so a holder
// whose TTL ran out never frees somebody else's lock.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extend pushes the expiry out while the key still carries our token.
var extend = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker implements core.EntryLocker with SET NX PX. A held lock is renewed
// every third of its TTL, so the TTL only bounds how long a crashed holder
// blocks an entry.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

var _ core.EntryLocker = (*Locker)(nil)

// New creates a locker with the given lock TTL (default 30s).
func New(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// Lock polls until the entry key is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, id int64) (func(), error) {
	key := fmt.Sprintf("%s%d", keyPrefix, id)
	token := uuid.NewString()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire lock for entry %d: %w", id, err)
		}
		if ok {
			stop := make(chan struct{})
			done := make(chan struct{})
			go l.renew(ctx, key, token, stop, done)
			return l.unlocker(ctx, key, token, stop, done), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// renew extends the key until stop is closed or the token no longer matches.
func (l *Locker) renew(ctx context.Context, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	log := logging.FromContext(ctx)
	ctx = context.WithoutCancel(ctx)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		extendCtx, cancel := context.WithTimeout(ctx, l.ttl/3)
		n, err := extend.Run(extendCtx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			log.Warn("renewing entry lock failed", "key", key, "error", err)
		case n == 0:
			log.Warn("entry lock expired before it was released", "key", key)
			return
		}
	}
}

func (l *Locker) unlocker(ctx context.Context, key, token string, stop chan<- struct{}, done <-chan struct{}) func() {
	log := logging.FromContext(ctx)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		close(stop)
		<-done

		// the request context may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			log.Warn("releasing entry lock failed", "key", key, "error", err)
		}
	}
}

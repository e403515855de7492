package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	DispatchLockKey        = "newsletter:dispatch:lock"
	defaultDispatchLockTTL = 15 * time.Minute
)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// DispatchLock is a single-holder lease that keeps overlapping dispatcher
// invocations from draining the same campaign twice. While held, the lease
// is extended every refreshEvery so a long batch never outlives it; a
// crashed holder stops extending and the lease expires after ttl.
type DispatchLock struct {
	client       *goredis.Client
	key          string
	ttl          time.Duration
	refreshEvery time.Duration
	newToken     func() string
}

func NewDispatchLock(client *goredis.Client, ttl time.Duration) (*DispatchLock, error) {
	return newDispatchLock(client, DispatchLockKey, ttl, uuid.NewString)
}

func newDispatchLock(client *goredis.Client, key string, ttl time.Duration, tokenFn func() string) (*DispatchLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultDispatchLockTTL
	}
	if tokenFn == nil {
		tokenFn = uuid.NewString
	}

	return &DispatchLock{
		client:       client,
		key:          key,
		ttl:          ttl,
		refreshEvery: ttl / 3,
		newToken:     tokenFn,
	}, nil
}

// Acquire returns ok=false without error when another holder owns the lease.
// The returned release func stops the renewal and only deletes the key while
// it still holds our token.
func (l *DispatchLock) Acquire(ctx context.Context) (release func(context.Context) error, ok bool, err error) {
	if l == nil || l.client == nil {
		return nil, false, fmt.Errorf("dispatch lock is not initialized")
	}

	token := l.newToken()
	acquired, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire dispatch lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}

	renewCtx, stopRenewal := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(renewCtx, token)
	}()

	var (
		once       sync.Once
		releaseErr error
	)
	release = func(ctx context.Context) error {
		once.Do(func() {
			stopRenewal()
			wg.Wait()
			if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
				releaseErr = fmt.Errorf("failed to release dispatch lock: %w", err)
			}
		})
		return releaseErr
	}

	return release, true, nil
}

// keepAlive extends the lease until ctx is done or the lease is lost.
func (l *DispatchLock) keepAlive(ctx context.Context, token string) {
	if l.refreshEvery <= 0 {
		return
	}

	ticker := time.NewTicker(l.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extended, err := extendScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int64()
			if err != nil {
				// Transient redis errors are retried on the next tick.
				continue
			}
			if extended == 0 {
				return
			}
		}
	}
}

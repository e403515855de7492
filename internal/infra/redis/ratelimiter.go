package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	rateLimitKeyPrefix       = "newsletter-engine:ratelimit"
	rateWindow               = time.Second
	minRetryAfter            = 5 * time.Millisecond
	defaultSendsPerSec int64 = 5
)

// reserveScript counts one send against the current one-second window. It
// returns 0 when the send fits and otherwise the window's remaining lifetime
// in milliseconds, which is how long the caller has to wait.
var reserveScript = goredis.NewScript(`
local used = redis.call("INCR", KEYS[1])
if used == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if used <= tonumber(ARGV[1]) then
  return 0
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 1 then
  return 1
end
return ttl
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter paces sends per bucket across every process that shares
// the same email provider account.
type RedisRateLimiter struct {
	client      *goredis.Client
	sendsPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewRedisRateLimiter(client *goredis.Client, sendsPerSec int) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, int64(sendsPerSec), time.Now, sleepWithContext)
}

func newRedisRateLimiter(
	client *goredis.Client,
	sendsPerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if sendsPerSec <= 0 {
		sendsPerSec = defaultSendsPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{
		client:      client,
		sendsPerSec: sendsPerSec,
		now:         nowFn,
		sleep:       sleepFn,
	}, nil
}

// Allow reserves a slot if one is free in the current window.
func (r *RedisRateLimiter) Allow(ctx context.Context, bucket string) (bool, error) {
	retryAfter, err := r.reserve(ctx, bucket)
	if err != nil {
		return false, err
	}
	return retryAfter == 0, nil
}

// Wait blocks until a slot is reserved or ctx is done.
func (r *RedisRateLimiter) Wait(ctx context.Context, bucket string) error {
	for {
		retryAfter, err := r.reserve(ctx, bucket)
		if err != nil {
			return err
		}
		if retryAfter == 0 {
			return nil
		}
		if err := r.sleep(ctx, retryAfter); err != nil {
			return err
		}
	}
}

func (r *RedisRateLimiter) reserve(ctx context.Context, bucket string) (time.Duration, error) {
	if r == nil || r.client == nil {
		return 0, fmt.Errorf("rate limiter is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key, err := r.windowKey(bucket)
	if err != nil {
		return 0, err
	}

	ms, err := reserveScript.Run(ctx, r.client, []string{key}, r.sendsPerSec, rateWindow.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to reserve send slot: %w", err)
	}
	if ms == 0 {
		return 0, nil
	}

	retryAfter := time.Duration(ms) * time.Millisecond
	if retryAfter < minRetryAfter {
		retryAfter = minRetryAfter
	}
	if retryAfter > rateWindow {
		retryAfter = rateWindow
	}
	return retryAfter, nil
}

func (r *RedisRateLimiter) windowKey(bucket string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(bucket))
	if normalized == "" {
		return "", fmt.Errorf("bucket is required")
	}
	return fmt.Sprintf("%s:%s:%d", rateLimitKeyPrefix, normalized, r.now().UTC().Unix()), nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

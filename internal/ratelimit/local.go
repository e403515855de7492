package ratelimit

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

var _ RateLimiter = (*LocalLimiter)(nil)

// LocalLimiter is an in-process token bucket per bucket name, for single
// instance deployments that do not share a provider account.
type LocalLimiter struct {
	mu          sync.Mutex
	limitPerSec int
	buckets     map[string]*rate.Limiter
}

func NewLocalLimiter(limitPerSec int) *LocalLimiter {
	if limitPerSec <= 0 {
		limitPerSec = 1
	}
	return &LocalLimiter{
		limitPerSec: limitPerSec,
		buckets:     make(map[string]*rate.Limiter),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, bucket string) (bool, error) {
	return l.bucket(bucket).Allow(), nil
}

func (l *LocalLimiter) Wait(ctx context.Context, bucket string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return l.bucket(bucket).Wait(ctx)
}

func (l *LocalLimiter) bucket(name string) *rate.Limiter {
	key := strings.ToLower(strings.TrimSpace(name))

	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.buckets[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.limitPerSec), l.limitPerSec)
		l.buckets[key] = limiter
	}
	return limiter
}

package quota

import (
	"context"
	"fmt"
	"time"
)

const (
	// Window is the rolling period the daily limit applies to.
	Window = 24 * time.Hour
	// WindowGrace shortens the window so a trigger firing once a day at the
	// same wall time sees the previous day's batch as expired even with
	// scheduler jitter.
	WindowGrace = 10 * time.Minute
)

// WindowStart is the earliest sent_at that still counts against the limit.
// Sends are stamped with their invocation's start time.
func WindowStart(now time.Time) time.Time {
	return now.UTC().Add(-Window + WindowGrace)
}

// Remaining returns how many sends the limit still allows. It never goes below zero.
func Remaining(limit, sent int) int {
	return max(limit-sent, 0)
}

// LimitSource returns the operator-configured daily limit. found=false means
// the operator never stored one.
type LimitSource interface {
	DailyLimit(ctx context.Context) (limit int, found bool, err error)
}

// SentCounter counts successful sends since a point in time.
type SentCounter interface {
	CountSentSince(ctx context.Context, since time.Time) (int64, error)
}

// Snapshot is one quota reading.
type Snapshot struct {
	Limit        int
	SentInWindow int
	Remaining    int
	WindowStart  time.Time
}

// Oracle reports the sends still permitted in the trailing window. The limit
// is trusted as configured; it is not compared to the provider's own ceiling.
type Oracle struct {
	limits       LimitSource
	sent         SentCounter
	defaultLimit int
	now          func() time.Time
}

func NewOracle(limits LimitSource, sent SentCounter, defaultLimit int) (*Oracle, error) {
	if limits == nil {
		return nil, fmt.Errorf("limit source is required")
	}
	if sent == nil {
		return nil, fmt.Errorf("sent counter is required")
	}
	if defaultLimit < 0 {
		defaultLimit = 0
	}

	return &Oracle{
		limits:       limits,
		sent:         sent,
		defaultLimit: defaultLimit,
		now:          time.Now,
	}, nil
}

func (o *Oracle) Check(ctx context.Context) (Snapshot, error) {
	limit, found, err := o.limits.DailyLimit(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read daily limit: %w", err)
	}
	if !found {
		limit = o.defaultLimit
	}

	windowStart := WindowStart(o.now())
	sent, err := o.sent.CountSentSince(ctx, windowStart)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to count sends in window: %w", err)
	}

	return Snapshot{
		Limit:        limit,
		SentInWindow: int(sent),
		Remaining:    Remaining(limit, int(sent)),
		WindowStart:  windowStart,
	}, nil
}

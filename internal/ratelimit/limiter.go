// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultPageDelay is the nominal pause between two consecutive page requests.
	DefaultPageDelay = time.Second

	// DefaultBackoff is the fixed pause applied after a secondary rate limit response.
	DefaultBackoff = 60 * time.Second
)

// Limiter paces requests against the GitHub API.
// Pause is the cooperative suspension point between consecutive calls of a paging loop,
// Backoff is the long fixed pause taken after a 403/429 before the same request is retried.
type Limiter struct {
	bucket  *rate.Limiter
	backoff time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter that allows one request per delay and backs off for backoff.
// A zero delay disables pacing.
func New(delay, backoff time.Duration) *Limiter {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Limiter{
		bucket:  rate.NewLimiter(limit, 1),
		backoff: backoff,
		sleep:   sleepContext,
	}
}

// Pause blocks until the next request is allowed.
func (l *Limiter) Pause(ctx context.Context) error {
	return l.bucket.Wait(ctx)
}

// Backoff blocks for the configured rate limit backoff.
func (l *Limiter) Backoff(ctx context.Context) error {
	if l.backoff <= 0 {
		return ctx.Err()
	}
	return l.sleep(ctx, l.backoff)
}

// BackoffDuration returns the configured backoff.
func (l *Limiter) BackoffDuration() time.Duration {
	return l.backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

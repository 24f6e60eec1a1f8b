// Package ratelimit implements a sliding-window request limit per key.
package ratelimit

import (
	"context"
	"math"
	"time"

	"clawqa/internal/platform/config"
)

const fallbackRetryAfter = 60

// Store records hits for a key. A hit is recorded only when it is allowed;
// when the window is full Hit returns the time of the oldest hit still inside
// it.
type Store interface {
	Hit(ctx context.Context, key string, now time.Time, limit int, window time.Duration) (allowed bool, oldest time.Time, err error)
}

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewLimiter(store Store, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		store:  store,
		limit:  cfg.Requests,
		window: cfg.Window,
		now:    time.Now,
	}
}

// Allow reports whether key may make another request. When it may not,
// retryAfter is the number of whole seconds until the oldest hit leaves the
// window.
func (l *Limiter) Allow(ctx context.Context, key string) (allowed bool, retryAfter int, err error) {
	now := l.now()
	allowed, oldest, err := l.store.Hit(ctx, key, now, l.limit, l.window)
	if err != nil || allowed {
		return allowed, 0, err
	}

	retryAfter = int(math.Ceil(oldest.Add(l.window).Sub(now).Seconds()))
	if retryAfter <= 0 {
		retryAfter = fallbackRetryAfter
	}
	return false, retryAfter, nil
}

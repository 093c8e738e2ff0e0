package ratelimit

import (
	"context"
	"time"
)

// WindowStore tracks request counts per key inside a fixed window. The
// first increment of a key opens the window; later increments reuse its
// expiry.
type WindowStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int, expiresAt time.Time, err error)
}

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter applies a fixed-window limit of Max requests per Window to
// each key.
type Limiter struct {
	store  WindowStore
	window time.Duration
	max    int
	now    func() time.Time
}

func NewLimiter(store WindowStore, window time.Duration, max int) *Limiter {
	return &Limiter{
		store:  store,
		window: window,
		max:    max,
		now:    time.Now,
	}
}

func (l *Limiter) Check(ctx context.Context, key string) (Decision, error) {
	count, expiresAt, err := l.store.Incr(ctx, "chat:ratelimit:"+key, l.window)
	if err != nil {
		return Decision{}, err
	}

	if count > l.max {
		retryAfter := expiresAt.Sub(l.now())
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	return Decision{Allowed: true, Remaining: l.max - count}, nil
}

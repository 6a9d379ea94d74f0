package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter keeps one token bucket per (purpose, key) in process
// memory. Suitable for single-instance deployments and tests; use
// RedisLimiter when more than one instance shares the limits.
type LocalLimiter struct {
	limits map[string]Limit

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewLocalLimiter builds a limiter from per-purpose limits. Purposes
// without a configured limit are always allowed.
func NewLocalLimiter(limits map[string]Limit) *LocalLimiter {
	return &LocalLimiter{
		limits:  limits,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, purpose, key string) (bool, time.Duration, error) {
	limit, ok := l.limits[purpose]
	if !ok {
		return true, 0, nil
	}

	bucket := l.obtain(purpose+":"+key, limit)
	reservation := bucket.Reserve()
	if !reservation.OK() {
		return false, limit.Window, nil
	}
	delay := reservation.Delay()
	if delay > 0 {
		// Not allowed now; give the tokens back and tell the caller
		// when to retry.
		reservation.Cancel()
		return false, delay, nil
	}
	return true, 0, nil
}

func (l *LocalLimiter) obtain(id string, cfg Limit) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bucket, ok := l.buckets[id]; ok {
		return bucket
	}

	perSecond := float64(cfg.Events) / cfg.Window.Seconds()
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	bucket := rate.NewLimiter(rate.Limit(perSecond), burst)
	l.buckets[id] = bucket
	return bucket
}

var _ Limiter = (*LocalLimiter)(nil)

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements a fixed-window counter per (purpose, key) so
// the limits hold across service instances sharing one Redis. The
// window admits Events requests; the first hit sets the expiry, PTTL
// supplies the retry-after on denial.
type RedisLimiter struct {
	client *redis.Client
	limits map[string]Limit
}

func NewRedisLimiter(client *redis.Client, limits map[string]Limit) *RedisLimiter {
	return &RedisLimiter{client: client, limits: limits}
}

func (l *RedisLimiter) Allow(ctx context.Context, purpose, key string) (bool, time.Duration, error) {
	limit, ok := l.limits[purpose]
	if !ok {
		return true, 0, nil
	}

	bucketKey := fmt.Sprintf("ratelimit:%s:%s", purpose, key)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, bucketKey)
	pipe.ExpireNX(ctx, bucketKey, limit.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit check: %w", err)
	}

	// Burst never extends the window budget; it only floors the
	// budget for purposes whose Events is below their burst size, the
	// way the local limiter's initial tokens do.
	allowed := int64(limit.Events)
	if b := int64(limit.Burst); b > allowed {
		allowed = b
	}
	if incr.Val() <= allowed {
		return true, 0, nil
	}

	retryAfter, err := l.client.PTTL(ctx, bucketKey).Result()
	if err != nil || retryAfter <= 0 {
		retryAfter = limit.Window
	}
	return false, retryAfter, nil
}

var _ Limiter = (*RedisLimiter)(nil)

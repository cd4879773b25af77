package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// RedisLimiter counts requests per client in fixed windows shared by every
// gateway instance.
type RedisLimiter struct {
	client redis.Cmdable
	window time.Duration
	max    int
	now    func() time.Time
}

func NewRedisLimiter(client redis.Cmdable, window time.Duration, max int) *RedisLimiter {
	return &RedisLimiter{client: client, window: window, max: max, now: time.Now}
}

// Allow increments the client's counter for the current window. On a Redis
// error the request is allowed and the error returned for logging.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	start := l.now().Truncate(l.window)
	reset := start.Add(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", keyPrefix, key, start.Unix())

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return Result{Allowed: true, Limit: l.max, Remaining: l.max, Reset: reset}, fmt.Errorf("rate limit: %w", err)
	}

	count := int(incr.Val())
	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= l.max,
		Limit:     l.max,
		Remaining: remaining,
		Reset:     reset,
	}, nil
}

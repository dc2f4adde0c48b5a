package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// AttemptLimiter implements ports.AttemptLimiter with one expiring counter per key.
// The window starts at the first failure and is not extended by later ones.
type AttemptLimiter struct {
	client *goredis.Client
	prefix string
}

// NewAttemptLimiter creates a new Redis-backed attempt limiter.
func NewAttemptLimiter(client *goredis.Client) *AttemptLimiter {
	return &AttemptLimiter{
		client: client,
		prefix: "attempts:",
	}
}

// Failures returns the failures recorded for key in the current window.
func (l *AttemptLimiter) Failures(ctx context.Context, key string) (int64, error) {
	n, err := l.client.Get(ctx, l.prefix+key).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis attempts get: %w", err)
	}
	return n, nil
}

// RecordFailure increments the counter and opens the window on the first failure.
func (l *AttemptLimiter) RecordFailure(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, l.prefix+key)
	pipe.ExpireNX(ctx, l.prefix+key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis attempts incr: %w", err)
	}
	return incr.Val(), nil
}

// Reset clears the counter after a successful check.
func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis attempts reset: %w", err)
	}
	return nil
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptLimiter_CountsWithinWindow(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	limiter := NewAttemptLimiter(client)
	ctx := context.Background()

	n, err := limiter.Failures(ctx, "pin:acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	for i := int64(1); i <= 3; i++ {
		n, err = limiter.RecordFailure(ctx, "pin:acct-1", 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	n, err = limiter.Failures(ctx, "pin:acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestAttemptLimiter_WindowStartsAtFirstFailure(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	limiter := NewAttemptLimiter(client)
	ctx := context.Background()

	_, err := limiter.RecordFailure(ctx, "pin:acct-2", 10*time.Minute)
	require.NoError(t, err)

	s.FastForward(6 * time.Minute)
	_, err = limiter.RecordFailure(ctx, "pin:acct-2", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 4*time.Minute, s.TTL("attempts:pin:acct-2"))

	s.FastForward(5 * time.Minute)
	n, err := limiter.Failures(ctx, "pin:acct-2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "counter should expire with the first window")
}

func TestAttemptLimiter_Reset(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	limiter := NewAttemptLimiter(client)
	ctx := context.Background()

	_, err := limiter.RecordFailure(ctx, "password:acct-3", time.Minute)
	require.NoError(t, err)
	require.NoError(t, limiter.Reset(ctx, "password:acct-3"))

	n, err := limiter.Failures(ctx, "password:acct-3")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.False(t, s.Exists("attempts:password:acct-3"))
}

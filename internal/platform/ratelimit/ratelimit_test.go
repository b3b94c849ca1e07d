package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/loganalytics/platform/internal/platform/kv"
)

func newTestClient(t *testing.T) *kv.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return kv.NewFromClient(rdb)
}

func TestCheckAllowsWithinBudget(t *testing.T) {
	limiter := New(newTestClient(t))

	res, err := limiter.Check(context.Background(), "proj-1", 10, 100)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.EqualValues(t, 1, res.MinuteCount)
}

func TestCheckRejectsOverMinuteBudget(t *testing.T) {
	limiter := New(newTestClient(t))
	ctx := context.Background()

	var last Result
	var err error
	for i := 0; i < 3; i++ {
		last, err = limiter.Check(ctx, "proj-1", 2, 1000)
		require.NoError(t, err)
	}
	require.False(t, last.Allowed)
	require.Greater(t, last.RetryAfter.Seconds(), 0.0)
}

func TestQuotaCheckAndIncrement(t *testing.T) {
	quota := NewQuota(newTestClient(t))
	ctx := context.Background()

	allowed, used, err := quota.CheckAndIncrement(ctx, "proj-1", 5, 10)
	require.NoError(t, err)
	require.True(t, allowed)
	require.EqualValues(t, 5, used)

	allowed, used, err = quota.CheckAndIncrement(ctx, "proj-1", 10, 10)
	require.NoError(t, err)
	require.False(t, allowed)
	require.EqualValues(t, 15, used)
}

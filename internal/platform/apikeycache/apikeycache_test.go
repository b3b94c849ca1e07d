package apikeycache

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

func TestSetThenGetRoundTrips(t *testing.T) {
	cache := New(newTestClient(t))
	ctx := context.Background()

	rec := Record{ProjectID: "proj-1", AccountID: "acct-1", RateLimitMinute: 60, RateLimitHour: 1000, DailyQuota: 100000}
	require.NoError(t, cache.Set(ctx, "ledger_abc123", rec, 0))

	got, err := cache.Get(ctx, "ledger_abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, rec, *got)
}

func TestGetMissReturnsNilNotError(t *testing.T) {
	cache := New(newTestClient(t))
	got, err := cache.Get(context.Background(), "ledger_unknown")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestInvalidateKeyOnlyRemovesTargetEntry(t *testing.T) {
	cache := New(newTestClient(t))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "ledger_revoke_me", Record{ProjectID: "p1"}, 0))
	require.NoError(t, cache.Set(ctx, "ledger_keep_me", Record{ProjectID: "p2"}, 0))

	require.NoError(t, cache.InvalidateKey(ctx, "ledger_revoke_me"))

	revoked, err := cache.Get(ctx, "ledger_revoke_me")
	require.NoError(t, err)
	require.Nil(t, revoked)

	kept, err := cache.Get(ctx, "ledger_keep_me")
	require.NoError(t, err)
	require.NotNil(t, kept)
}

func TestMaybeRefreshSkipsWhenTTLFresh(t *testing.T) {
	cache := New(newTestClient(t))
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "ledger_fresh", Record{ProjectID: "p1"}, DefaultTTL))

	called := false
	require.NoError(t, cache.MaybeRefresh(ctx, "ledger_fresh", func() { called = true }))
	require.False(t, called)
}

func TestMaybeRefreshNoOpOnMiss(t *testing.T) {
	cache := New(newTestClient(t))
	called := false
	require.NoError(t, cache.MaybeRefresh(context.Background(), "ledger_missing", func() { called = true }))
	require.False(t, called)
}

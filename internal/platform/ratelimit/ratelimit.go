// Package ratelimit implements §4.2: dual fixed-window (per-minute and
// per-hour) rate limiting and the separate daily quota counter, both
// backed by the shared KV store. Grounded on original_source's
// redis_client.py check_rate_limit/get_daily_usage/increment_daily_usage.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/loganalytics/platform/internal/platform/kv"
)

// Limiter enforces the dual fixed-window request budget for a project.
type Limiter struct {
	kv *kv.Client
}

func New(client *kv.Client) *Limiter { return &Limiter{kv: client} }

// Result reports the outcome of a Check call.
type Result struct {
	Allowed         bool
	MinuteCount     int64
	HourCount       int64
	MinuteRemaining int
	HourRemaining   int
	RetryAfter      time.Duration
}

// Check increments both the per-minute and per-hour counters for projectID
// in a single pipelined round trip and reports whether the request is
// within both budgets. On a KV failure the limiter fails open (§4.2):
// callers get Allowed=true and the error describing why the check could
// not be performed, so the request is never rejected because Redis is
// down.
func (l *Limiter) Check(ctx context.Context, projectID string, limitPerMinute, limitPerHour int) (Result, error) {
	now := time.Now().Unix()
	minuteKey := kv.RateLimitMinuteKey(projectID, now)
	hourKey := kv.RateLimitHourKey(projectID, now)

	rdb := l.kv.Raw()
	pipe := rdb.Pipeline()
	minuteIncr := pipe.Incr(ctx, minuteKey)
	pipe.Expire(ctx, minuteKey, 60*time.Second)
	hourIncr := pipe.Incr(ctx, hourKey)
	pipe.Expire(ctx, hourKey, 3600*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{Allowed: true}, err
	}

	minuteCount := minuteIncr.Val()
	hourCount := hourIncr.Val()

	allowed := minuteCount <= int64(limitPerMinute) && hourCount <= int64(limitPerHour)
	res := Result{
		Allowed:         allowed,
		MinuteCount:     minuteCount,
		HourCount:       hourCount,
		MinuteRemaining: maxInt(0, limitPerMinute-int(minuteCount)),
		HourRemaining:   maxInt(0, limitPerHour-int(hourCount)),
	}
	if !allowed {
		res.RetryAfter = time.Duration(60-now%60) * time.Second
	}
	return res, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Quota enforces the separate daily event quota per project.
type Quota struct {
	kv *kv.Client
}

func NewQuota(client *kv.Client) *Quota { return &Quota{kv: client} }

const dailyUsageTTL = 48 * time.Hour

// CheckAndIncrement increments today's usage counter for projectID by
// delta and reports whether the project is still within limit. The TTL
// on the counter key is 48h so yesterday's key is still readable briefly
// after midnight for end-of-day reporting, matching the original's usage
// tracking window.
func (q *Quota) CheckAndIncrement(ctx context.Context, projectID string, delta int64, limit int64) (allowed bool, used int64, err error) {
	key := kv.DailyUsageKey(projectID, time.Now().UTC().Format("20060102"))

	rdb := q.kv.Raw()
	pipe := rdb.Pipeline()
	incr := pipe.IncrBy(ctx, key, delta)
	pipe.Expire(ctx, key, dailyUsageTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, err
	}

	used = incr.Val()
	return used <= limit, used, nil
}

// Usage returns today's usage counter without incrementing it.
func (q *Quota) Usage(ctx context.Context, projectID string) (int64, error) {
	key := kv.DailyUsageKey(projectID, time.Now().UTC().Format("20060102"))
	raw, err := q.kv.Get(ctx, key)
	if err != nil {
		return 0, nil //nolint:nilerr // missing key means zero usage today
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

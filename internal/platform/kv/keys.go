package kv

import "fmt"

// Key builders for the namespaces named in §6.7. Every package that reads
// or writes one of these shapes imports this file instead of building the
// string itself, so there is exactly one place that defines the wire
// format of a KV key.

// APIKeyCacheKey returns the cache key for a hashed API key secret.
func APIKeyCacheKey(secretHashHex string) string {
	return fmt.Sprintf("api_key:%s", secretHashHex)
}

// RateLimitMinuteKey returns the per-project, per-minute rate-limit bucket
// key for the minute containing unixSeconds.
func RateLimitMinuteKey(projectID string, unixSeconds int64) string {
	return fmt.Sprintf("ratelimit:minute:%s:%d", projectID, unixSeconds/60)
}

// RateLimitHourKey returns the per-project, per-hour rate-limit bucket key
// for the hour containing unixSeconds.
func RateLimitHourKey(projectID string, unixSeconds int64) string {
	return fmt.Sprintf("ratelimit:hour:%s:%d", projectID, unixSeconds/3600)
}

// DailyUsageKey returns the daily-quota counter key for projectID on the
// given yyyymmdd date string.
func DailyUsageKey(projectID, yyyymmdd string) string {
	return fmt.Sprintf("usage:%s:%s", projectID, yyyymmdd)
}

// QueueKey returns the FIFO ingestion queue key for a project.
func QueueKey(projectID string) string {
	return fmt.Sprintf("queue:logs:%s", projectID)
}

// QueuePattern returns the scan pattern matching every project's queue key.
func QueuePattern() string { return "queue:logs:*" }

// NotificationTopic returns the pub/sub channel carrying qualifying error
// notifications for a project.
func NotificationTopic(projectID string) string {
	return fmt.Sprintf("notifications:errors:%s", projectID)
}

// MetricCacheKey returns the cache-warmer key for kind ("top_errors",
// "error_rate", "log_volume", "usage_stats") scoped to a project, with an
// optional interval suffix (e.g. "1h", "24h").
func MetricCacheKey(kind, projectID, interval string) string {
	if interval == "" {
		return fmt.Sprintf("metrics:%s:%s", kind, projectID)
	}
	return fmt.Sprintf("metrics:%s:%s:%s", kind, projectID, interval)
}

// CircuitStateKey returns a KV key for a downstream service's circuit
// breaker state. Nothing in this module reads or writes it; breaker state
// is held in process by internal/platform/circuitbreaker.
func CircuitStateKey(service string) string {
	return fmt.Sprintf("circuit:%s:state", service)
}

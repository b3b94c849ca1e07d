package aggregation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loganalytics/platform/internal/domain"
	"github.com/loganalytics/platform/internal/platform/kv"
)

// TTLs for each cache warmer kind (§4.11's "per-job TTLs, defaults
// 600-3600s"). top_errors and error_rate change fastest so they get the
// shortest TTL; usage_stats changes at most once per log batch so it can
// sit the full hour.
const (
	topErrorsTTL  = 600 * time.Second
	errorRateTTL  = 600 * time.Second
	logVolumeTTL  = 1800 * time.Second
	usageStatsTTL = 3600 * time.Second
)

// TopErrorsSnapshot is the cached payload GetTopErrors reads through
// (§4.12).
type TopErrorsSnapshot struct {
	Errors      []domain.ErrorGroup `json:"errors"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// ErrorRateSnapshot is the cached payload GetErrorRate reads through.
type ErrorRateSnapshot struct {
	TotalCount  int64     `json:"total_count"`
	ErrorCount  int64     `json:"error_count"`
	Rate        float64   `json:"rate"`
	BucketStart time.Time `json:"bucket_start"`
	BucketEnd   time.Time `json:"bucket_end"`
}

// LogVolumeSnapshot is the cached payload GetLogVolume reads through.
type LogVolumeSnapshot struct {
	TotalCount  int64            `json:"total_count"`
	ByLevel     map[string]int64 `json:"by_level"`
	BucketStart time.Time        `json:"bucket_start"`
	BucketEnd   time.Time        `json:"bucket_end"`
}

// UsageStatsSnapshot is the cached payload GetUsageStats reads through.
type UsageStatsSnapshot struct {
	EventCount int64     `json:"event_count"`
	DailyQuota int64     `json:"daily_quota"`
	Date       time.Time `json:"date"`
}

// warmAllProjects computes and caches the four §4.11 snapshots for every
// known project. One project's failure is logged and skipped so a single
// bad tenant can't stall the warmer for everyone else.
func (j *Jobs) warmAllProjects(ctx context.Context) (int, error) {
	ids, err := j.store.ListAllProjectIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list all project ids: %w", err)
	}

	warmed := 0
	for _, id := range ids {
		if err := j.warmProject(ctx, id); err != nil {
			j.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
				"project_id": id.String(),
			}).Error("cache warmer failed for project")
			continue
		}
		warmed++
	}
	return warmed, nil
}

func (j *Jobs) warmProject(ctx context.Context, projectID uuid.UUID) error {
	start, end := previousHourBounds(time.Now())

	if err := j.warmTopErrors(ctx, projectID); err != nil {
		return err
	}
	if err := j.warmErrorRate(ctx, projectID, start, end); err != nil {
		return err
	}
	if err := j.warmLogVolume(ctx, projectID, start, end); err != nil {
		return err
	}
	if err := j.warmUsageStats(ctx, projectID); err != nil {
		return err
	}
	return nil
}

func (j *Jobs) warmTopErrors(ctx context.Context, projectID uuid.UUID) error {
	groups, err := j.store.ListErrorGroups(ctx, projectID, true, 10, 0)
	if err != nil {
		return fmt.Errorf("list error groups: %w", err)
	}
	snap := TopErrorsSnapshot{Errors: groups, GeneratedAt: time.Now().UTC()}
	return j.setCache(ctx, "top_errors", projectID, "", snap, topErrorsTTL)
}

func (j *Jobs) warmErrorRate(ctx context.Context, projectID uuid.UUID, start, end time.Time) error {
	exceptions, err := j.store.QueryAggregatedMetrics(ctx, projectID, domain.MetricException, start, end)
	if err != nil {
		return fmt.Errorf("query exception metrics: %w", err)
	}
	logVolume, err := j.store.QueryAggregatedMetrics(ctx, projectID, domain.MetricLogVolume, start, end)
	if err != nil {
		return fmt.Errorf("query log volume metrics: %w", err)
	}

	var errorCount, total int64
	for _, m := range exceptions {
		errorCount += m.Count
	}
	for _, m := range logVolume {
		total += m.Count
	}

	var rate float64
	if total > 0 {
		rate = float64(errorCount) / float64(total)
	}

	snap := ErrorRateSnapshot{TotalCount: total, ErrorCount: errorCount, Rate: rate, BucketStart: start, BucketEnd: end}
	return j.setCache(ctx, "error_rate", projectID, "1h", snap, errorRateTTL)
}

func (j *Jobs) warmLogVolume(ctx context.Context, projectID uuid.UUID, start, end time.Time) error {
	rows, err := j.store.QueryAggregatedMetrics(ctx, projectID, domain.MetricLogVolume, start, end)
	if err != nil {
		return fmt.Errorf("query log volume metrics: %w", err)
	}

	byLevel := make(map[string]int64, len(rows))
	var total int64
	for _, m := range rows {
		level := levelFromDimension(m.Dimension)
		byLevel[level] += m.Count
		total += m.Count
	}

	snap := LogVolumeSnapshot{TotalCount: total, ByLevel: byLevel, BucketStart: start, BucketEnd: end}
	return j.setCache(ctx, "log_volume", projectID, "1h", snap, logVolumeTTL)
}

func (j *Jobs) warmUsageStats(ctx context.Context, projectID uuid.UUID) error {
	project, err := j.store.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	count, err := j.store.GetDailyUsage(ctx, projectID, today)
	if err != nil {
		return fmt.Errorf("get daily usage: %w", err)
	}

	snap := UsageStatsSnapshot{EventCount: count, DailyQuota: project.DailyQuota, Date: today}
	return j.setCache(ctx, "usage_stats", projectID, "", snap, usageStatsTTL)
}

// levelFromDimension reverses logVolumeDimension's "level:log_type"
// encoding to recover the level for a by-level breakdown.
func levelFromDimension(dimension string) string {
	for i := 0; i < len(dimension); i++ {
		if dimension[i] == ':' {
			return dimension[:i]
		}
	}
	return dimension
}

func (j *Jobs) setCache(ctx context.Context, kind string, projectID uuid.UUID, interval string, v interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s cache payload: %w", kind, err)
	}
	key := kv.MetricCacheKey(kind, projectID.String(), interval)
	return j.kv.Set(ctx, key, payload, ttl)
}

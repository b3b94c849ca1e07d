// Package aggregation implements the rollup jobs of spec.md §4.11: hourly
// endpoint/exception/log-volume metrics, per-project bottleneck metrics,
// and the cache warmers the query service reads through. Every job is
// grounded on
// original_source/services/analytics/analytics_workers/jobs/aggregated_metrics.py
// and bottleneck_metrics.py, adapted from that schema's separate
// endpoint_method/endpoint_path/log_level/log_type columns onto our
// single AggregatedMetric.Dimension column (see DESIGN.md).
package aggregation

import (
	"context"
	"time"

	"github.com/loganalytics/platform/internal/platform/kv"
	"github.com/loganalytics/platform/internal/platform/logging"
	"github.com/loganalytics/platform/internal/platform/sqlstore"
)

// Jobs holds the dependencies every rollup and cache-warmer job shares.
type Jobs struct {
	store  *sqlstore.Store
	kv     *kv.Client
	logger *logging.Logger
}

func New(store *sqlstore.Store, kvClient *kv.Client, logger *logging.Logger) *Jobs {
	return &Jobs{store: store, kv: kvClient, logger: logger}
}

// previousHourBounds returns the [start, end) range of the most recently
// completed calendar hour, the window every hourly job in §4.11 scans.
func previousHourBounds(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	currentHourStart := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC)
	return currentHourStart.Add(-time.Hour), currentHourStart
}

// RunHourly runs every §4.11 job for the previous completed hour. Each
// job is independent: one failing does not stop the rest, matching the
// spec's "must not block on a single slow project."
func (j *Jobs) RunHourly(ctx context.Context) {
	start, end := previousHourBounds(time.Now())

	j.runJob(ctx, "endpoint_metrics", func() (int, error) { return j.RunEndpointMetrics(ctx, start, end) })
	j.runJob(ctx, "exception_metrics", func() (int, error) { return j.RunExceptionMetrics(ctx, start, end) })
	j.runJob(ctx, "log_volume_metrics", func() (int, error) { return j.RunLogVolumeMetrics(ctx, start, end) })
	j.runJob(ctx, "bottleneck_metrics", func() (int, error) { return j.RunBottleneckMetrics(ctx, start, end) })
}

// RunCacheWarmers runs every §4.11 cache warmer for every project. Like
// RunHourly, one project's failure must not prevent the rest from
// warming.
func (j *Jobs) RunCacheWarmers(ctx context.Context) {
	j.runJob(ctx, "cache_warmers", func() (int, error) { return j.warmAllProjects(ctx) })
}

func (j *Jobs) runJob(ctx context.Context, name string, fn func() (int, error)) {
	start := time.Now()
	rows, err := fn()
	j.logger.LogAggregationRun(ctx, name, rows, time.Since(start), err)
}

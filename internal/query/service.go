// Package query implements the read surface of spec.md §4.12/§6.6: log
// lookup and search, aggregated metrics with dense zero-filled buckets,
// and the cache-only read-through operations (error rate, log volume,
// top errors, usage stats) the aggregator's cache warmers populate.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/loganalytics/platform/internal/aggregation"
	"github.com/loganalytics/platform/internal/domain"
	platformerrors "github.com/loganalytics/platform/internal/platform/errors"
	"github.com/loganalytics/platform/internal/platform/kv"
	"github.com/loganalytics/platform/internal/platform/logging"
	"github.com/loganalytics/platform/internal/platform/sqlstore"
)

// Service wraps the sqlstore query methods and the aggregation cache
// warmers' snapshot keys.
type Service struct {
	store  *sqlstore.Store
	kv     *kv.Client
	logger *logging.Logger
}

func NewService(store *sqlstore.Store, kvClient *kv.Client, logger *logging.Logger) *Service {
	return &Service{store: store, kv: kvClient, logger: logger}
}

// AuthorizeProject confirms projectID belongs to accountID, the way every
// query handler must check before returning data scoped by a caller-
// supplied project_id query parameter rather than an API key (§4.4,
// §4.12).
func (s *Service) AuthorizeProject(ctx context.Context, accountID, projectID uuid.UUID) error {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return platformerrors.NotFound("project", projectID.String())
	}
	if project.AccountID != accountID {
		return platformerrors.Forbidden("project does not belong to this account")
	}
	return nil
}

// QueryLogs returns a project's logs matching filter (§4.12 QueryLogs).
func (s *Service) QueryLogs(ctx context.Context, filter sqlstore.LogFilter, limit, offset int) ([]domain.LogEvent, int64, error) {
	return s.store.QueryLogs(ctx, filter, limit, offset)
}

// SearchLogs performs a substring search over a project's logs (§4.12
// SearchLogs).
func (s *Service) SearchLogs(ctx context.Context, projectID uuid.UUID, queryString string, from, to time.Time, limit, offset int) ([]domain.LogEvent, int64, error) {
	return s.store.SearchLogs(ctx, projectID, queryString, from, to, limit, offset)
}

// GetLog returns one log event scoped to its project (§4.12 GetLog).
func (s *Service) GetLog(ctx context.Context, id, projectID uuid.UUID) (*domain.LogEvent, error) {
	event, err := s.store.GetLog(ctx, id, projectID)
	if err != nil {
		return nil, platformerrors.NotFound("log", id.String())
	}
	return event, nil
}

// GetErrorList returns a project's error/critical logs within a range
// (§4.12 GetErrorList).
func (s *Service) GetErrorList(ctx context.Context, projectID uuid.UUID, from, to time.Time, limit, offset int) ([]domain.LogEvent, int64, error) {
	return s.store.GetErrorList(ctx, projectID, from, to, limit, offset)
}

// DataPoint is one bucket of a GetAggregatedMetrics time series.
type DataPoint struct {
	BucketTime    time.Time `json:"bucket_time"`
	Count         int64     `json:"count"`
	ErrorCount    int64     `json:"error_count"`
	AvgDurationMs float64   `json:"avg_duration_ms"`
	MinDurationMs float64   `json:"min_duration_ms"`
	MaxDurationMs float64   `json:"max_duration_ms"`
	P95DurationMs float64   `json:"p95_duration_ms"`
	P99DurationMs float64   `json:"p99_duration_ms"`
}

// MetricsResult is GetAggregatedMetrics's response: a dense, zero-filled
// time series at the derived granularity.
type MetricsResult struct {
	Granularity Granularity `json:"granularity"`
	From        time.Time   `json:"from"`
	To          time.Time   `json:"to"`
	Points      []DataPoint `json:"points"`
}

// GetAggregatedMetrics returns a project's metric series for either a
// named period or an explicit [periodFrom, periodTo) custom range,
// optionally narrowed to one endpoint path (§4.12). Granularity is
// derived, never caller-supplied. Non-hourly buckets merge their
// constituent hourly rows: counts sum, avg is averaged, min/max take the
// extremes, and percentiles are averaged as a reasonable approximation
// (mirrors the python original's re-bucketing behavior — see
// original_source/services/analytics/analytics_workers/jobs/aggregated_metrics.py).
func (s *Service) GetAggregatedMetrics(ctx context.Context, projectID uuid.UUID, kind domain.MetricKind, period string, customFrom, customTo time.Time, endpointPath string) (*MetricsResult, error) {
	var from, to time.Time
	var granularity Granularity
	var err error

	if period != "" {
		from, to, granularity, err = resolvePeriod(period, time.Now())
	} else {
		granularity, err = resolveCustomRange(customFrom, customTo)
		from, to = customFrom, customTo
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.store.QueryAggregatedMetrics(ctx, projectID, kind, from, to)
	if err != nil {
		return nil, fmt.Errorf("query aggregated metrics: %w", err)
	}
	if kind == domain.MetricEndpoint && endpointPath != "" {
		rows = filterByEndpointPath(rows, endpointPath)
	}

	bounds := bucketBoundaries(from, to, granularity)
	buckets := make(map[time.Time]*bucketAccumulator, len(bounds))
	for _, b := range bounds {
		buckets[b] = &bucketAccumulator{minDuration: -1}
	}
	for _, row := range rows {
		b := bucketFor(row.BucketTime, granularity, bounds)
		acc, ok := buckets[b]
		if !ok {
			acc = &bucketAccumulator{minDuration: -1}
			buckets[b] = acc
			bounds = append(bounds, b)
		}
		acc.merge(row)
	}

	points := make([]DataPoint, 0, len(bounds))
	for _, b := range bounds {
		points = append(points, buckets[b].toDataPoint(b))
	}

	return &MetricsResult{Granularity: granularity, From: from, To: to, Points: points}, nil
}

// bucketAccumulator merges one or more hourly aggregated_metrics rows
// into a single coarser-granularity DataPoint.
type bucketAccumulator struct {
	count, errorCount int64
	sumAvg            float64 // running total of per-row avg_duration_ms, divided by n at the end
	minDuration       float64
	maxDuration       float64
	sumP95, sumP99    float64
	n                 int
}

func (a *bucketAccumulator) merge(row domain.AggregatedMetric) {
	a.count += row.Count
	a.errorCount += row.ErrorCount
	a.sumAvg += row.AvgDurationMs
	a.sumP95 += row.P95DurationMs
	a.sumP99 += row.P99DurationMs
	if a.n == 0 || row.MinDurationMs < a.minDuration {
		a.minDuration = row.MinDurationMs
	}
	if row.MaxDurationMs > a.maxDuration {
		a.maxDuration = row.MaxDurationMs
	}
	a.n++
}

func (a *bucketAccumulator) toDataPoint(bucketTime time.Time) DataPoint {
	if a.n == 0 {
		return DataPoint{BucketTime: bucketTime}
	}
	return DataPoint{
		BucketTime:    bucketTime,
		Count:         a.count,
		ErrorCount:    a.errorCount,
		AvgDurationMs: a.sumAvg / float64(a.n),
		MinDurationMs: a.minDuration,
		MaxDurationMs: a.maxDuration,
		P95DurationMs: a.sumP95 / float64(a.n),
		P99DurationMs: a.sumP99 / float64(a.n),
	}
}

// filterByEndpointPath keeps only rows whose "METHOD path" dimension's
// path component matches path, combining every HTTP method for that
// route (§4.12's optional endpointPath narrowing).
func filterByEndpointPath(rows []domain.AggregatedMetric, path string) []domain.AggregatedMetric {
	out := rows[:0]
	for _, row := range rows {
		if dimensionPath(row.Dimension) == path {
			out = append(out, row)
		}
	}
	return out
}

// dimensionPath recovers the path half of an endpoint dimension encoded
// by aggregation.endpointDimension ("METHOD path").
func dimensionPath(dimension string) string {
	for i := 0; i < len(dimension); i++ {
		if dimension[i] == ' ' {
			return dimension[i+1:]
		}
	}
	return dimension
}

// ---------------------------------------------------------------------
// Cache-only read-through operations (§4.12). These never compute on the
// query path: a cache miss returns empty data, the same as the aggregator
// not having run yet for that project.
// ---------------------------------------------------------------------

// GetTopErrors reads the aggregator's top_errors snapshot.
func (s *Service) GetTopErrors(ctx context.Context, projectID uuid.UUID) (*aggregation.TopErrorsSnapshot, error) {
	var snap aggregation.TopErrorsSnapshot
	if err := s.readCache(ctx, "top_errors", projectID, "", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetErrorRate reads the aggregator's error_rate snapshot.
func (s *Service) GetErrorRate(ctx context.Context, projectID uuid.UUID) (*aggregation.ErrorRateSnapshot, error) {
	var snap aggregation.ErrorRateSnapshot
	if err := s.readCache(ctx, "error_rate", projectID, "1h", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetLogVolume reads the aggregator's log_volume snapshot.
func (s *Service) GetLogVolume(ctx context.Context, projectID uuid.UUID) (*aggregation.LogVolumeSnapshot, error) {
	var snap aggregation.LogVolumeSnapshot
	if err := s.readCache(ctx, "log_volume", projectID, "1h", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetUsageStats reads the aggregator's usage_stats snapshot.
func (s *Service) GetUsageStats(ctx context.Context, projectID uuid.UUID) (*aggregation.UsageStatsSnapshot, error) {
	var snap aggregation.UsageStatsSnapshot
	if err := s.readCache(ctx, "usage_stats", projectID, "", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// readCache unmarshals the cached snapshot at kind/projectID/interval
// into v. A cache miss leaves v at its zero value rather than erroring,
// per §4.12's "never compute on the query path".
func (s *Service) readCache(ctx context.Context, kind string, projectID uuid.UUID, interval string, v interface{}) error {
	key := kv.MetricCacheKey(kind, projectID.String(), interval)
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("read %s cache: %w", kind, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal %s cache payload: %w", kind, err)
	}
	return nil
}

package aggregation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loganalytics/platform/internal/domain"
)

type endpointRow struct {
	ProjectID     uuid.UUID `db:"project_id"`
	Method        string    `db:"method"`
	Path          string    `db:"path"`
	Count         int64     `db:"count"`
	ErrorCount    int64     `db:"error_count"`
	SumValue      float64   `db:"sum_value"`
	AvgDurationMs float64   `db:"avg_duration_ms"`
	MinDurationMs float64   `db:"min_duration_ms"`
	MaxDurationMs float64   `db:"max_duration_ms"`
	P95DurationMs float64   `db:"p95_duration_ms"`
	P99DurationMs float64   `db:"p99_duration_ms"`
}

// endpointDimension combines the method and path the source schema kept
// as separate endpoint_method/endpoint_path columns into our single
// Dimension column.
func endpointDimension(method, path string) string {
	return method + " " + path
}

// RunEndpointMetrics groups logs by (project, method, path) where
// log_type=endpoint, grounded on aggregated_metrics.py's
// _aggregate_endpoint_metrics, and upserts one AggregatedMetric row per
// group.
func (j *Jobs) RunEndpointMetrics(ctx context.Context, start, end time.Time) (int, error) {
	const q = `
		SELECT
			project_id,
			attributes->'endpoint'->>'method' AS method,
			attributes->'endpoint'->>'path' AS path,
			COUNT(*) AS count,
			COUNT(*) FILTER (WHERE (attributes->'endpoint'->>'status_code')::int >= 400) AS error_count,
			COALESCE(SUM((attributes->'endpoint'->>'duration_ms')::double precision), 0) AS sum_value,
			COALESCE(AVG((attributes->'endpoint'->>'duration_ms')::double precision), 0) AS avg_duration_ms,
			COALESCE(MIN((attributes->'endpoint'->>'duration_ms')::double precision), 0) AS min_duration_ms,
			COALESCE(MAX((attributes->'endpoint'->>'duration_ms')::double precision), 0) AS max_duration_ms,
			COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY (attributes->'endpoint'->>'duration_ms')::double precision), 0) AS p95_duration_ms,
			COALESCE(PERCENTILE_CONT(0.99) WITHIN GROUP (ORDER BY (attributes->'endpoint'->>'duration_ms')::double precision), 0) AS p99_duration_ms
		FROM log_events
		WHERE log_type = 'endpoint'
		  AND timestamp >= $1 AND timestamp < $2
		  AND attributes->'endpoint'->>'method' IS NOT NULL
		  AND attributes->'endpoint'->>'path' IS NOT NULL
		GROUP BY project_id, attributes->'endpoint'->>'method', attributes->'endpoint'->>'path'`

	var rows []endpointRow
	if err := j.store.DB().SelectContext(ctx, &rows, q, start, end); err != nil {
		return 0, fmt.Errorf("aggregate endpoint metrics: %w", err)
	}

	for _, r := range rows {
		m := domain.AggregatedMetric{
			ProjectID:     r.ProjectID,
			Kind:          domain.MetricEndpoint,
			BucketTime:    start,
			Dimension:     endpointDimension(r.Method, r.Path),
			Count:         r.Count,
			SumValue:      r.SumValue,
			ErrorCount:    r.ErrorCount,
			AvgDurationMs: r.AvgDurationMs,
			MinDurationMs: r.MinDurationMs,
			MaxDurationMs: r.MaxDurationMs,
			P95DurationMs: r.P95DurationMs,
			P99DurationMs: r.P99DurationMs,
		}
		if err := j.store.UpsertAggregatedMetric(ctx, m); err != nil {
			return len(rows), err
		}
	}
	return len(rows), nil
}

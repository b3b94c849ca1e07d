package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loganalytics/platform/internal/domain"
)

// UpsertAggregatedMetric writes (or merges into) one hourly rollup bucket
// (§4.11). Re-running the aggregator for a bucket it already processed
// must be idempotent, so this replaces rather than adds to count/sum.
func (s *Store) UpsertAggregatedMetric(ctx context.Context, m domain.AggregatedMetric) error {
	const q = `
		INSERT INTO aggregated_metrics (id, project_id, kind, bucket_time, dimension, count, sum_value,
			error_count, avg_duration_ms, min_duration_ms, max_duration_ms, p95_duration_ms, p99_duration_ms, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		ON CONFLICT (project_id, kind, bucket_time, dimension) DO UPDATE SET
			count = EXCLUDED.count,
			sum_value = EXCLUDED.sum_value,
			error_count = EXCLUDED.error_count,
			avg_duration_ms = EXCLUDED.avg_duration_ms,
			min_duration_ms = EXCLUDED.min_duration_ms,
			max_duration_ms = EXCLUDED.max_duration_ms,
			p95_duration_ms = EXCLUDED.p95_duration_ms,
			p99_duration_ms = EXCLUDED.p99_duration_ms,
			updated_at = now()`
	id := m.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, q, id, m.ProjectID, m.Kind, m.BucketTime, m.Dimension, m.Count, m.SumValue,
		m.ErrorCount, m.AvgDurationMs, m.MinDurationMs, m.MaxDurationMs, m.P95DurationMs, m.P99DurationMs)
	if err != nil {
		return fmt.Errorf("upsert aggregated metric: %w", err)
	}
	return nil
}

// UpsertBottleneckMetric writes (or replaces) one route's latency
// percentile bucket.
func (s *Store) UpsertBottleneckMetric(ctx context.Context, m domain.BottleneckMetric) error {
	const q = `
		INSERT INTO bottleneck_metrics (id, project_id, route, bucket_time, p50_ms, p95_ms, p99_ms, call_count, error_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (project_id, route, bucket_time) DO UPDATE SET
			p50_ms = EXCLUDED.p50_ms,
			p95_ms = EXCLUDED.p95_ms,
			p99_ms = EXCLUDED.p99_ms,
			call_count = EXCLUDED.call_count,
			error_count = EXCLUDED.error_count,
			updated_at = now()`
	id := m.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, q, id, m.ProjectID, m.Route, m.BucketTime, m.P50Ms, m.P95Ms, m.P99Ms, m.CallCount, m.ErrorCount)
	if err != nil {
		return fmt.Errorf("upsert bottleneck metric: %w", err)
	}
	return nil
}

// QueryAggregatedMetrics returns a project's rollup rows of the given
// kind within [from, to), ordered by bucket time.
func (s *Store) QueryAggregatedMetrics(ctx context.Context, projectID uuid.UUID, kind domain.MetricKind, from, to time.Time) ([]domain.AggregatedMetric, error) {
	var rows []domain.AggregatedMetric
	const q = `
		SELECT id, project_id, kind, bucket_time, dimension, count, sum_value,
		       error_count, avg_duration_ms, min_duration_ms, max_duration_ms, p95_duration_ms, p99_duration_ms, updated_at
		FROM aggregated_metrics
		WHERE project_id = $1 AND kind = $2 AND bucket_time >= $3 AND bucket_time < $4
		ORDER BY bucket_time`
	if err := s.db.SelectContext(ctx, &rows, q, projectID, kind, from, to); err != nil {
		return nil, fmt.Errorf("query aggregated metrics: %w", err)
	}
	return rows, nil
}

// QueryBottlenecks returns the slowest routes by p95 latency within
// [from, to), limited to limit rows (§4.12 GetBottlenecks).
func (s *Store) QueryBottlenecks(ctx context.Context, projectID uuid.UUID, from, to time.Time, limit int) ([]domain.BottleneckMetric, error) {
	var rows []domain.BottleneckMetric
	const q = `
		SELECT id, project_id, route, bucket_time, p50_ms, p95_ms, p99_ms, call_count, error_count, updated_at
		FROM bottleneck_metrics
		WHERE project_id = $1 AND bucket_time >= $2 AND bucket_time < $3
		ORDER BY p95_ms DESC
		LIMIT $4`
	if err := s.db.SelectContext(ctx, &rows, q, projectID, from, to, limit); err != nil {
		return nil, fmt.Errorf("query bottlenecks: %w", err)
	}
	return rows, nil
}

package aggregation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loganalytics/platform/internal/domain"
)

type exceptionRow struct {
	ProjectID uuid.UUID `db:"project_id"`
	Count     int64     `db:"count"`
}

// RunExceptionMetrics groups exception-type logs by project only,
// grounded on aggregated_metrics.py's _aggregate_exception_metrics where
// method/path/level/type are null. Our schema has no null dimension, so
// exception rows use the empty string.
func (j *Jobs) RunExceptionMetrics(ctx context.Context, start, end time.Time) (int, error) {
	const q = `
		SELECT project_id, COUNT(*) AS count
		FROM log_events
		WHERE log_type = 'exception'
		  AND timestamp >= $1 AND timestamp < $2
		GROUP BY project_id`

	var rows []exceptionRow
	if err := j.store.DB().SelectContext(ctx, &rows, q, start, end); err != nil {
		return 0, fmt.Errorf("aggregate exception metrics: %w", err)
	}

	for _, r := range rows {
		m := domain.AggregatedMetric{
			ProjectID:  r.ProjectID,
			Kind:       domain.MetricException,
			BucketTime: start,
			Dimension:  "",
			Count:      r.Count,
			ErrorCount: r.Count,
		}
		if err := j.store.UpsertAggregatedMetric(ctx, m); err != nil {
			return len(rows), err
		}
	}
	return len(rows), nil
}

package aggregation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loganalytics/platform/internal/domain"
)

type logVolumeRow struct {
	ProjectID  uuid.UUID `db:"project_id"`
	Level      string    `db:"level"`
	LogType    string    `db:"log_type"`
	Count      int64     `db:"count"`
	ErrorCount int64     `db:"error_count"`
}

// logVolumeDimension combines the level and log_type the source schema
// kept as separate log_level/log_type columns into our single Dimension
// column.
func logVolumeDimension(level, logType string) string {
	return level + ":" + logType
}

// RunLogVolumeMetrics groups every log (not just endpoint/exception) by
// (project, level, log_type), grounded on aggregated_metrics.py's
// _aggregate_log_volume_metrics. error_count only counts error/critical
// levels.
func (j *Jobs) RunLogVolumeMetrics(ctx context.Context, start, end time.Time) (int, error) {
	const q = `
		SELECT
			project_id,
			level,
			log_type,
			COUNT(*) AS count,
			COUNT(*) FILTER (WHERE level IN ('error', 'critical')) AS error_count
		FROM log_events
		WHERE timestamp >= $1 AND timestamp < $2
		GROUP BY project_id, level, log_type`

	var rows []logVolumeRow
	if err := j.store.DB().SelectContext(ctx, &rows, q, start, end); err != nil {
		return 0, fmt.Errorf("aggregate log volume metrics: %w", err)
	}

	for _, r := range rows {
		m := domain.AggregatedMetric{
			ProjectID:  r.ProjectID,
			Kind:       domain.MetricLogVolume,
			BucketTime: start,
			Dimension:  logVolumeDimension(r.Level, r.LogType),
			Count:      r.Count,
			ErrorCount: r.ErrorCount,
		}
		if err := j.store.UpsertAggregatedMetric(ctx, m); err != nil {
			return len(rows), err
		}
	}
	return len(rows), nil
}

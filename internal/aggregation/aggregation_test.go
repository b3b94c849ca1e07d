package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/loganalytics/platform/internal/platform/logging"
	"github.com/loganalytics/platform/internal/platform/sqlstore"
)

func newTestJobs(t *testing.T) (*Jobs, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := sqlstore.New(sqlx.NewDb(db, "sqlmock"))
	logger := logging.New("aggregation-test", "error", "json")
	return New(store, nil, logger), mock
}

func TestPreviousHourBoundsSpansTheLastCompletedHour(t *testing.T) {
	now := time.Date(2026, time.March, 10, 14, 37, 0, 0, time.UTC)
	start, end := previousHourBounds(now)
	require.Equal(t, time.Date(2026, time.March, 10, 13, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC), end)
}

func TestEndpointDimensionCombinesMethodAndPath(t *testing.T) {
	require.Equal(t, "GET /v1/widgets", endpointDimension("GET", "/v1/widgets"))
}

func TestLogVolumeDimensionCombinesLevelAndType(t *testing.T) {
	require.Equal(t, "error:exception", logVolumeDimension("error", "exception"))
}

func TestLevelFromDimensionRecoversLevel(t *testing.T) {
	require.Equal(t, "warning", levelFromDimension("warning:message"))
	require.Equal(t, "nocolon", levelFromDimension("nocolon"))
}

func TestRunEndpointMetricsUpsertsOneRowPerGroup(t *testing.T) {
	jobs, mock := newTestJobs(t)
	projectID := uuid.New()
	start := time.Date(2026, time.March, 10, 13, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	cols := []string{"project_id", "method", "path", "count", "error_count", "sum_value",
		"avg_duration_ms", "min_duration_ms", "max_duration_ms", "p95_duration_ms", "p99_duration_ms"}
	rows := sqlmock.NewRows(cols).AddRow(projectID, "GET", "/v1/widgets", 10, 1, 1000.0, 100.0, 50.0, 300.0, 280.0, 295.0)
	mock.ExpectQuery("FROM log_events").WithArgs(start, end).WillReturnRows(rows)
	mock.ExpectExec("INSERT INTO aggregated_metrics").WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := jobs.RunEndpointMetrics(context.Background(), start, end)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunExceptionMetricsGroupsByProjectOnly(t *testing.T) {
	jobs, mock := newTestJobs(t)
	projectID := uuid.New()
	start := time.Date(2026, time.March, 10, 13, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	rows := sqlmock.NewRows([]string{"project_id", "count"}).AddRow(projectID, 4)
	mock.ExpectQuery("FROM log_events").WithArgs(start, end).WillReturnRows(rows)
	mock.ExpectExec("INSERT INTO aggregated_metrics").WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := jobs.RunExceptionMetrics(context.Background(), start, end)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLogVolumeMetricsGroupsByProjectLevelAndType(t *testing.T) {
	jobs, mock := newTestJobs(t)
	projectID := uuid.New()
	start := time.Date(2026, time.March, 10, 13, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	rows := sqlmock.NewRows([]string{"project_id", "level", "log_type", "count", "error_count"}).
		AddRow(projectID, "error", "message", 3, 3).
		AddRow(projectID, "info", "message", 20, 0)
	mock.ExpectQuery("FROM log_events").WithArgs(start, end).WillReturnRows(rows)
	mock.ExpectExec("INSERT INTO aggregated_metrics").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO aggregated_metrics").WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := jobs.RunLogVolumeMetrics(context.Background(), start, end)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunBottleneckMetricsZeroFillsRoutesWithoutData(t *testing.T) {
	jobs, mock := newTestJobs(t)
	projectID := uuid.New()
	start := time.Date(2026, time.March, 10, 13, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	projectCols := []string{"id", "account_id", "name", "environment", "rate_limit_per_minute",
		"rate_limit_per_hour", "daily_quota", "retention_days", "available_routes", "created_at", "updated_at"}
	mock.ExpectQuery("FROM projects WHERE jsonb_array_length").WillReturnRows(
		sqlmock.NewRows(projectCols).AddRow(projectID, uuid.New(), "demo", "production", 60, 1000, 100000, 30,
			`["/v1/widgets", "/v1/gadgets"]`, time.Now(), time.Now()))

	routeCols := []string{"route", "count", "error_count", "p50_ms", "p95_ms", "p99_ms"}
	mock.ExpectQuery("FROM log_events").WithArgs(projectID, start, end).WillReturnRows(
		sqlmock.NewRows(routeCols).AddRow("/v1/widgets", 10, 1, 90.0, 200.0, 250.0))

	mock.ExpectExec("INSERT INTO bottleneck_metrics").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO bottleneck_metrics").WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := jobs.RunBottleneckMetrics(context.Background(), start, end)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

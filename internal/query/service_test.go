package query

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/loganalytics/platform/internal/aggregation"
	"github.com/loganalytics/platform/internal/domain"
	"github.com/loganalytics/platform/internal/platform/kv"
	"github.com/loganalytics/platform/internal/platform/logging"
	"github.com/loganalytics/platform/internal/platform/sqlstore"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *kv.Client) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	kvClient := kv.NewFromClient(rdb)

	store := sqlstore.New(sqlx.NewDb(db, "sqlmock"))
	logger := logging.New("query-test", "error", "json")
	return NewService(store, kvClient, logger), mock, kvClient
}

var projectCols = []string{"id", "account_id", "name", "environment", "rate_limit_per_minute",
	"rate_limit_per_hour", "daily_quota", "retention_days", "available_routes", "created_at", "updated_at"}

func TestAuthorizeProjectAcceptsOwningAccount(t *testing.T) {
	svc, mock, _ := newTestService(t)
	accountID, projectID := uuid.New(), uuid.New()

	mock.ExpectQuery("FROM projects WHERE id").WillReturnRows(
		sqlmock.NewRows(projectCols).AddRow(projectID, accountID, "demo", "production", 60, 1000, 50000, 30, `[]`, time.Now(), time.Now()))

	require.NoError(t, svc.AuthorizeProject(context.Background(), accountID, projectID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthorizeProjectRejectsNonOwningAccount(t *testing.T) {
	svc, mock, _ := newTestService(t)
	accountID, otherAccountID, projectID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery("FROM projects WHERE id").WillReturnRows(
		sqlmock.NewRows(projectCols).AddRow(projectID, otherAccountID, "demo", "production", 60, 1000, 50000, 30, `[]`, time.Now(), time.Now()))

	err := svc.AuthorizeProject(context.Background(), accountID, projectID)
	require.Error(t, err)
}

func TestGetAggregatedMetricsZeroFillsMissingHourlyBuckets(t *testing.T) {
	svc, mock, _ := newTestService(t)
	projectID := uuid.New()
	from := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	cols := []string{"id", "project_id", "kind", "bucket_time", "dimension", "count", "sum_value",
		"error_count", "avg_duration_ms", "min_duration_ms", "max_duration_ms", "p95_duration_ms", "p99_duration_ms", "updated_at"}
	mock.ExpectQuery("FROM aggregated_metrics").WillReturnRows(
		sqlmock.NewRows(cols).AddRow(uuid.New(), projectID, "endpoint", from.Add(5*time.Hour), "GET /v1/widgets",
			10, 1000.0, 1, 100.0, 50.0, 300.0, 280.0, 295.0, time.Now()))

	result, err := svc.GetAggregatedMetrics(context.Background(), projectID, domain.MetricEndpoint, "", from, to, "")
	require.NoError(t, err)
	require.Equal(t, GranularityHourly, result.Granularity)
	require.Len(t, result.Points, 24)

	var nonZero int
	for _, p := range result.Points {
		if p.Count > 0 {
			nonZero++
			require.Equal(t, int64(10), p.Count)
		}
	}
	require.Equal(t, 1, nonZero)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAggregatedMetricsFiltersByEndpointPath(t *testing.T) {
	svc, mock, _ := newTestService(t)
	projectID := uuid.New()
	from := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	cols := []string{"id", "project_id", "kind", "bucket_time", "dimension", "count", "sum_value",
		"error_count", "avg_duration_ms", "min_duration_ms", "max_duration_ms", "p95_duration_ms", "p99_duration_ms", "updated_at"}
	mock.ExpectQuery("FROM aggregated_metrics").WillReturnRows(
		sqlmock.NewRows(cols).
			AddRow(uuid.New(), projectID, "endpoint", from.Add(time.Hour), "GET /v1/widgets", 10, 1000.0, 0, 100.0, 50.0, 300.0, 280.0, 295.0, time.Now()).
			AddRow(uuid.New(), projectID, "endpoint", from.Add(time.Hour), "POST /v1/widgets", 5, 200.0, 0, 40.0, 10.0, 80.0, 70.0, 75.0, time.Now()).
			AddRow(uuid.New(), projectID, "endpoint", from.Add(time.Hour), "GET /v1/gadgets", 3, 30.0, 0, 10.0, 5.0, 20.0, 18.0, 19.0, time.Now()))

	result, err := svc.GetAggregatedMetrics(context.Background(), projectID, domain.MetricEndpoint, "", from, to, "/v1/widgets")
	require.NoError(t, err)

	var total int64
	for _, p := range result.Points {
		total += p.Count
	}
	require.Equal(t, int64(15), total) // GET + POST /v1/widgets, /v1/gadgets excluded
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadCacheLeavesZeroValueOnMiss(t *testing.T) {
	svc, _, _ := newTestService(t)
	snap, err := svc.GetTopErrors(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Empty(t, snap.Errors)
}

func TestReadCacheUnmarshalsExistingSnapshot(t *testing.T) {
	svc, _, kvClient := newTestService(t)
	projectID := uuid.New()

	payload, err := json.Marshal(aggregation.UsageStatsSnapshot{EventCount: 42, DailyQuota: 1000})
	require.NoError(t, err)
	require.NoError(t, kvClient.Set(context.Background(), kv.MetricCacheKey("usage_stats", projectID.String(), ""), payload, time.Minute))

	snap, err := svc.GetUsageStats(context.Background(), projectID)
	require.NoError(t, err)
	require.Equal(t, int64(42), snap.EventCount)
	require.Equal(t, int64(1000), snap.DailyQuota)
}

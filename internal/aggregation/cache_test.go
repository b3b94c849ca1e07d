package aggregation

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

	"github.com/loganalytics/platform/internal/platform/kv"
	"github.com/loganalytics/platform/internal/platform/logging"
	"github.com/loganalytics/platform/internal/platform/sqlstore"
)

func newTestJobsWithCache(t *testing.T) (*Jobs, sqlmock.Sqlmock, *kv.Client) {
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
	logger := logging.New("aggregation-cache-test", "error", "json")
	return New(store, kvClient, logger), mock, kvClient
}

func TestWarmTopErrorsWritesSnapshotToCache(t *testing.T) {
	jobs, mock, kvClient := newTestJobsWithCache(t)
	projectID := uuid.New()

	cols := []string{"id", "project_id", "fingerprint", "error_type", "sample_message", "sample_stack_trace",
		"occurrence_count", "first_seen", "last_seen", "resolved", "updated_at"}
	mock.ExpectQuery("FROM error_groups").WillReturnRows(
		sqlmock.NewRows(cols).AddRow(uuid.New(), projectID, "abc123", "ValueError", "bad value", "",
			5, time.Now(), time.Now(), false, time.Now()))

	require.NoError(t, jobs.warmTopErrors(context.Background(), projectID))

	raw, err := kvClient.Get(context.Background(), kv.MetricCacheKey("top_errors", projectID.String(), ""))
	require.NoError(t, err)
	var snap TopErrorsSnapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.Len(t, snap.Errors, 1)
	require.Equal(t, "ValueError", snap.Errors[0].ErrorType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWarmUsageStatsWritesSnapshotToCache(t *testing.T) {
	jobs, mock, kvClient := newTestJobsWithCache(t)
	projectID := uuid.New()

	projectCols := []string{"id", "account_id", "name", "environment", "rate_limit_per_minute",
		"rate_limit_per_hour", "daily_quota", "retention_days", "available_routes", "created_at", "updated_at"}
	mock.ExpectQuery("FROM projects WHERE id").WillReturnRows(
		sqlmock.NewRows(projectCols).AddRow(projectID, uuid.New(), "demo", "production", 60, 1000, 50000, 30,
			`[]`, time.Now(), time.Now()))
	mock.ExpectQuery("FROM daily_usage").WillReturnRows(
		sqlmock.NewRows([]string{"event_count"}).AddRow(int64(321)))

	require.NoError(t, jobs.warmUsageStats(context.Background(), projectID))

	raw, err := kvClient.Get(context.Background(), kv.MetricCacheKey("usage_stats", projectID.String(), ""))
	require.NoError(t, err)
	var snap UsageStatsSnapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.Equal(t, int64(321), snap.EventCount)
	require.Equal(t, int64(50000), snap.DailyQuota)
	require.NoError(t, mock.ExpectationsWereMet())
}

package worker

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/loganalytics/platform/internal/domain"
	"github.com/loganalytics/platform/internal/ingestion/partition"
	"github.com/loganalytics/platform/internal/notify"
	"github.com/loganalytics/platform/internal/platform/kv"
	"github.com/loganalytics/platform/internal/platform/logging"
	"github.com/loganalytics/platform/internal/platform/sqlstore"
)

func TestStorageWorkerRunOnceDrainsAndPersistsAQueuedBatch(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	queue := NewQueue(kv.NewFromClient(rdb), 0)

	storeDB, storeMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = storeDB.Close() })
	store := sqlstore.New(sqlx.NewDb(storeDB, "sqlmock"))

	partDB, partMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = partDB.Close() })

	busDB, busMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = busDB.Close() })

	logger := logging.New("ingestion-test", "error", "json")
	partitions := partition.New(partDB, logger)
	bus := notify.New(busDB, "postgres://unused-in-test", func(string, error) {})
	t.Cleanup(func() { _ = bus.Close() })
	publisher := notify.NewPublisher(bus, logger)

	projectID := uuid.New()
	event := domain.LogEvent{
		ID:        uuid.New(),
		ProjectID: projectID,
		Timestamp: time.Now().UTC(),
		Level:     domain.LevelError,
		LogType:   domain.LogTypeException,
		Message:   "boom",
		ErrorType: "ValueError",
	}
	require.NoError(t, queue.EnqueueBatch(context.Background(), projectID, []domain.LogEvent{event}))

	partMock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	storeMock.ExpectBegin()
	prep := storeMock.ExpectPrepare("INSERT INTO log_events")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	storeMock.ExpectCommit()
	storeMock.ExpectExec("INSERT INTO daily_usage").WillReturnResult(sqlmock.NewResult(0, 1))
	busMock.ExpectExec("SELECT pg_notify").WillReturnResult(sqlmock.NewResult(0, 0))

	sw := NewStorageWorker(StorageWorkerConfig{
		Queue:      queue,
		Store:      store,
		Partitions: partitions,
		Publisher:  publisher,
		Logger:     logger,
		BatchSize:  10,
	})

	require.NoError(t, sw.RunOnce(context.Background()))
	require.EqualValues(t, 1, sw.processed)

	depth, err := queue.Depth(context.Background(), projectID)
	require.NoError(t, err)
	require.Zero(t, depth)
}

package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/loganalytics/platform/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestInsertLogEventsBatchPreparesOneStatementForTheWholeBatch(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO log_events")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	events := []domain.LogEvent{
		{ID: uuid.New(), ProjectID: uuid.New(), Timestamp: time.Now(), Level: domain.LevelInfo, LogType: domain.LogTypeMessage, Message: "one"},
		{ID: uuid.New(), ProjectID: uuid.New(), Timestamp: time.Now(), Level: domain.LevelInfo, LogType: domain.LogTypeMessage, Message: "two"},
	}

	err := store.InsertLogEventsBatch(context.Background(), events)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLogEventsBatchEmptyIsNoop(t *testing.T) {
	store, mock := newMockStore(t)
	err := store.InsertLogEventsBatch(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertErrorGroupIncrementsOnConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO error_groups").WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpsertErrorGroup(context.Background(), uuid.New(), "deadbeef", "ValueError", "bad value", "trace", time.Now())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementDailyUsageUpserts(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO daily_usage").WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.IncrementDailyUsage(context.Background(), uuid.New(), time.Now(), 5)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

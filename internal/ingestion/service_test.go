package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loganalytics/platform/internal/domain"
	"github.com/loganalytics/platform/internal/ingestion/validate"
	"github.com/loganalytics/platform/internal/ingestion/worker"
	platformerrors "github.com/loganalytics/platform/internal/platform/errors"
	"github.com/loganalytics/platform/internal/platform/kv"
	"github.com/loganalytics/platform/internal/platform/logging"
)

func newTestService(t *testing.T, maxDepth int64) *Service {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	queue := worker.NewQueue(kv.NewFromClient(rdb), maxDepth)
	validator := validate.New(validate.Options{MaxMessageLength: 10000, FutureTimestampSkew: 5 * time.Minute})
	logger := logging.New("ingestion-test", "error", "json")
	return NewService(validator, queue, logger)
}

func TestIngestSingleEnqueuesAValidEvent(t *testing.T) {
	svc := newTestService(t, 0)
	projectID := uuid.New()

	event := domain.LogEvent{
		Timestamp: time.Now().UTC(),
		Level:     domain.LevelInfo,
		LogType:   domain.LogTypeMessage,
		Message:   "hello",
	}
	require.NoError(t, svc.IngestSingle(context.Background(), projectID, event))

	depth, err := svc.QueueDepth(context.Background(), projectID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)
}

func TestIngestSingleRejectsInvalidEvent(t *testing.T) {
	svc := newTestService(t, 0)
	event := domain.LogEvent{
		Timestamp: time.Now().UTC(),
		Level:     domain.LevelInfo,
		LogType:   domain.LogTypeException,
		Message:   "boom",
	}
	err := svc.IngestSingle(context.Background(), uuid.New(), event)
	require.Error(t, err)
	svcErr := platformerrors.GetServiceError(err)
	require.NotNil(t, svcErr)
	assert.Equal(t, platformerrors.CodeInvalidInput, svcErr.Code)
}

func TestIngestBatchAcceptsValidAndRejectsInvalid(t *testing.T) {
	svc := newTestService(t, 0)
	projectID := uuid.New()

	events := []domain.LogEvent{
		{Timestamp: time.Now().UTC(), Level: domain.LevelInfo, LogType: domain.LogTypeMessage, Message: "good"},
		{Timestamp: time.Now().UTC(), Level: "bogus", LogType: domain.LogTypeMessage, Message: "bad"},
	}
	result, err := svc.IngestBatch(context.Background(), projectID, events)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)

	depth, err := svc.QueueDepth(context.Background(), projectID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)
}

func TestIngestBatchRejectsOversizedBatch(t *testing.T) {
	svc := newTestService(t, 0)
	events := make([]domain.LogEvent, maxBatchSize+1)
	for i := range events {
		events[i] = domain.LogEvent{Timestamp: time.Now().UTC(), Level: domain.LevelInfo, LogType: domain.LogTypeMessage, Message: "x"}
	}
	_, err := svc.IngestBatch(context.Background(), uuid.New(), events)
	require.Error(t, err)
}

func TestIngestSingleSurfacesBackpressure(t *testing.T) {
	svc := newTestService(t, 1)
	projectID := uuid.New()

	event := domain.LogEvent{Timestamp: time.Now().UTC(), Level: domain.LevelInfo, LogType: domain.LogTypeMessage, Message: "first"}
	require.NoError(t, svc.IngestSingle(context.Background(), projectID, event))

	err := svc.IngestSingle(context.Background(), projectID, event)
	require.Error(t, err)
	svcErr := platformerrors.GetServiceError(err)
	require.NotNil(t, svcErr)
	assert.Equal(t, platformerrors.CodeBackpressure, svcErr.Code)
}

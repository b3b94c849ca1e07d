package worker

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
	platformerrors "github.com/loganalytics/platform/internal/platform/errors"
	"github.com/loganalytics/platform/internal/platform/kv"
)

func newTestQueue(t *testing.T, maxDepth int64) *Queue {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return NewQueue(kv.NewFromClient(rdb), maxDepth)
}

func TestEnqueueThenDequeuePreservesOrder(t *testing.T) {
	q := newTestQueue(t, 0)
	projectID := uuid.New()
	ctx := context.Background()

	events := []domain.LogEvent{
		{ID: uuid.New(), ProjectID: projectID, Timestamp: time.Now(), Message: "first"},
		{ID: uuid.New(), ProjectID: projectID, Timestamp: time.Now(), Message: "second"},
	}
	require.NoError(t, q.EnqueueBatch(ctx, projectID, events))

	depth, err := q.Depth(ctx, projectID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, depth)

	out, err := q.DequeueBatch(ctx, projectID, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Message)
	assert.Equal(t, "second", out[1].Message)
}

func TestEnqueueBatchRejectsWhenOverQueueMaxDepth(t *testing.T) {
	q := newTestQueue(t, 1)
	projectID := uuid.New()
	ctx := context.Background()

	events := []domain.LogEvent{
		{ID: uuid.New(), ProjectID: projectID, Message: "a"},
		{ID: uuid.New(), ProjectID: projectID, Message: "b"},
	}
	err := q.EnqueueBatch(ctx, projectID, events)
	require.Error(t, err)
	svcErr := platformerrors.GetServiceError(err)
	require.NotNil(t, svcErr)
	assert.Equal(t, platformerrors.CodeBackpressure, svcErr.Code)
}

func TestDequeueBatchOnEmptyQueueReturnsNoEvents(t *testing.T) {
	q := newTestQueue(t, 0)
	out, err := q.DequeueBatch(context.Background(), uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDiscoverProjectQueuesFindsOnlyNonEmptyQueues(t *testing.T) {
	q := newTestQueue(t, 0)
	ctx := context.Background()
	active := uuid.New()

	require.NoError(t, q.EnqueueBatch(ctx, active, []domain.LogEvent{{ID: uuid.New(), ProjectID: active, Message: "x"}}))

	ids, err := q.DiscoverProjectQueues(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, active, ids[0])
}

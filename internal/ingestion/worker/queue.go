// Package worker implements the ingestion queue and storage worker pool
// of spec.md §4.8-§4.9, grounded on
// original_source/services/ingestion/ingestion_service/worker.py's
// StorageWorker: a per-project FIFO queue in Redis, and a pool of
// workers that drain it in batches into Postgres.
package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/loganalytics/platform/internal/domain"
	platformerrors "github.com/loganalytics/platform/internal/platform/errors"
	"github.com/loganalytics/platform/internal/platform/kv"
)

// Record is the MessagePack-encoded unit pushed onto a project's queue
// (§4.8). It carries exactly the already-validated and enriched LogEvent
// that the storage worker persists.
type Record struct {
	Event domain.LogEvent `msgpack:"event"`
}

// Queue wraps the KV client with the project-scoped FIFO semantics
// §4.8 describes: MessagePack-encoded pushes, depth-checked
// backpressure, and ordered multi-record pops for the storage workers.
type Queue struct {
	kv       *kv.Client
	maxDepth int64
}

func NewQueue(client *kv.Client, maxDepth int64) *Queue {
	return &Queue{kv: client, maxDepth: maxDepth}
}

// Depth returns the current length of projectID's queue.
func (q *Queue) Depth(ctx context.Context, projectID uuid.UUID) (int64, error) {
	return q.kv.Raw().LLen(ctx, kv.QueueKey(projectID.String())).Result()
}

// EnqueueBatch pushes every event in events onto projectID's queue in a
// single RPUSH, preserving arrival order, after checking that the queue
// has room for the whole batch (§4.8's "raise QueueFull" backpressure).
func (q *Queue) EnqueueBatch(ctx context.Context, projectID uuid.UUID, events []domain.LogEvent) error {
	if len(events) == 0 {
		return nil
	}

	depth, err := q.Depth(ctx, projectID)
	if err != nil {
		return fmt.Errorf("check queue depth: %w", err)
	}
	if q.maxDepth > 0 && depth+int64(len(events)) > q.maxDepth {
		return platformerrors.Backpressure()
	}

	encoded := make([]interface{}, 0, len(events))
	for _, e := range events {
		data, err := msgpack.Marshal(Record{Event: e})
		if err != nil {
			return fmt.Errorf("encode queue record: %w", err)
		}
		encoded = append(encoded, data)
	}

	key := kv.QueueKey(projectID.String())
	if err := q.kv.Raw().RPush(ctx, key, encoded...).Err(); err != nil {
		return fmt.Errorf("enqueue batch: %w", err)
	}
	return nil
}

// DequeueBatch atomically pops up to batchSize records from the head of
// projectID's queue in FIFO order, using LPOP's Redis 6.2+ count form
// documented by go-redis's LPopCount.
func (q *Queue) DequeueBatch(ctx context.Context, projectID uuid.UUID, batchSize int) ([]domain.LogEvent, error) {
	if batchSize <= 0 {
		batchSize = 1
	}
	raw, err := q.kv.Raw().LPopCount(ctx, kv.QueueKey(projectID.String()), batchSize).Result()
	if err != nil {
		if err.Error() == "redis: nil" {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue batch: %w", err)
	}

	events := make([]domain.LogEvent, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := msgpack.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode queue record: %w", err)
		}
		events = append(events, rec.Event)
	}
	return events, nil
}

// DiscoverProjectQueues scans for every project queue currently holding
// data (§4.9 step 1).
func (q *Queue) DiscoverProjectQueues(ctx context.Context) ([]uuid.UUID, error) {
	keys, err := q.kv.ScanKeys(ctx, kv.QueuePattern())
	if err != nil {
		return nil, fmt.Errorf("scan project queues: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(keys))
	const prefix = "queue:logs:"
	for _, key := range keys {
		idStr := key[len(prefix):]
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

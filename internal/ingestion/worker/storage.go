package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/loganalytics/platform/internal/domain"
	"github.com/loganalytics/platform/internal/ingestion/partition"
	"github.com/loganalytics/platform/internal/notify"
	"github.com/loganalytics/platform/internal/platform/logging"
	"github.com/loganalytics/platform/internal/platform/sqlstore"
	"github.com/loganalytics/platform/internal/platform/workerpool"
)

// StorageWorker drains project queues in batches and persists them,
// grounded on original_source/services/ingestion/ingestion_service/worker.py's
// StorageWorker: discover active project queues, pop a batch per
// project, ensure partitions, bulk insert, upsert error groups, publish
// qualifying notifications.
type StorageWorker struct {
	id int

	queue      *Queue
	store      *sqlstore.Store
	partitions *partition.Manager
	publisher  *notify.Publisher
	logger     *logging.Logger

	batchSize int

	processed int64
	failed    int64
}

type StorageWorkerConfig struct {
	ID         int
	Queue      *Queue
	Store      *sqlstore.Store
	Partitions *partition.Manager
	Publisher  *notify.Publisher
	Logger     *logging.Logger
	BatchSize  int
}

func NewStorageWorker(cfg StorageWorkerConfig) *StorageWorker {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &StorageWorker{
		id:         cfg.ID,
		queue:      cfg.Queue,
		store:      cfg.Store,
		partitions: cfg.Partitions,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger,
		batchSize:  batchSize,
	}
}

// RunOnce discovers every project with queued logs and drains one batch
// from each. Called on the workerpool.Worker tick. A failing project does
// not stop the others; RunOnce returns the first error encountered, or nil.
func (w *StorageWorker) RunOnce(ctx context.Context) error {
	projectIDs, err := w.queue.DiscoverProjectQueues(ctx)
	if err != nil {
		return fmt.Errorf("discover project queues: %w", err)
	}

	var firstErr error
	for _, projectID := range projectIDs {
		events, err := w.queue.DequeueBatch(ctx, projectID, w.batchSize)
		if err != nil {
			w.logger.WithContext(ctx).WithError(err).Error("dequeue batch failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(events) == 0 {
			continue
		}

		start := time.Now()
		err = w.processBatch(ctx, events)
		w.logger.LogIngestionBatch(ctx, projectID.String(), len(events), time.Since(start), err)
		if err != nil {
			w.failed += int64(len(events))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		w.processed += int64(len(events))
	}
	return firstErr
}

func (w *StorageWorker) processBatch(ctx context.Context, events []domain.LogEvent) error {
	dates := make([]time.Time, len(events))
	for i, e := range events {
		dates[i] = e.Timestamp
	}
	if err := w.partitions.EnsurePartitionsForDates(ctx, dates); err != nil {
		return fmt.Errorf("ensure partitions: %w", err)
	}

	if err := w.store.InsertLogEventsBatch(ctx, events); err != nil {
		return fmt.Errorf("insert log events: %w", err)
	}

	var usageByProject = make(map[string]int64)
	for _, e := range events {
		usageByProject[e.ProjectID.String()] += 1

		if e.Fingerprint != "" {
			if err := w.store.UpsertErrorGroup(ctx, e.ProjectID, e.Fingerprint, e.ErrorType, e.ErrorMessage, e.Stack, e.Timestamp); err != nil {
				w.logger.WithContext(ctx).WithError(err).Error("upsert error group failed")
			}
		}

		w.publisher.PublishIfQualifying(ctx, e)
	}

	for projectIDStr, count := range usageByProject {
		projectID := events[0].ProjectID
		for _, e := range events {
			if e.ProjectID.String() == projectIDStr {
				projectID = e.ProjectID
				break
			}
		}
		if err := w.store.IncrementDailyUsage(ctx, projectID, time.Now().UTC(), count); err != nil {
			w.logger.WithContext(ctx).WithError(err).Error("increment daily usage failed")
		}
	}

	return nil
}

// Pool is a fixed-size group of StorageWorkers, one workerpool.Worker per
// instance, all ticking independently so a slow batch on one project
// doesn't stall another's.
type Pool struct {
	group *workerpool.Group
}

type PoolConfig struct {
	WorkerCount   int
	Queue         *Queue
	Store         *sqlstore.Store
	Partitions    *partition.Manager
	Publisher     *notify.Publisher
	Logger        *logging.Logger
	BatchSize     int
	PollInterval  time.Duration
}

// NewPool builds a Pool of cfg.WorkerCount storage workers, each polling
// the shared queue set on cfg.PollInterval (defaulting to 1s, matching
// the source worker's idle-sleep of 1 second between empty polls).
func NewPool(cfg PoolConfig) *Pool {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	group := workerpool.NewGroup()
	for i := 0; i < cfg.WorkerCount; i++ {
		sw := NewStorageWorker(StorageWorkerConfig{
			ID:         i,
			Queue:      cfg.Queue,
			Store:      cfg.Store,
			Partitions: cfg.Partitions,
			Publisher:  cfg.Publisher,
			Logger:     cfg.Logger,
			BatchSize:  cfg.BatchSize,
		})
		group.AddFunc(workerpool.Config{
			Name:     fmt.Sprintf("storage-worker-%d", i),
			Interval: interval,
			Fn:       sw.RunOnce,
			OnError: func(name string, err error) {
				cfg.Logger.WithError(err).WithField("worker", name).Error("storage worker tick failed")
			},
		})
	}
	return &Pool{group: group}
}

// Start launches every worker in the pool.
func (p *Pool) Start(ctx context.Context) error {
	return p.group.Start(ctx)
}

// Stop halts every worker in the pool and waits for them to drain.
func (p *Pool) Stop() {
	p.group.Stop()
}

// Package ingestion implements §4.7-§4.9: validate and enrich incoming
// log events, enqueue them onto the per-project KV queue with
// backpressure, and expose queue depth. Grounded on
// original_source/services/ingestion/ingestion_service's REST and RPC
// surfaces, both of which are thin wrappers over this same accept path.
package ingestion

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/loganalytics/platform/internal/domain"
	"github.com/loganalytics/platform/internal/ingestion/validate"
	"github.com/loganalytics/platform/internal/ingestion/worker"
	platformerrors "github.com/loganalytics/platform/internal/platform/errors"
	"github.com/loganalytics/platform/internal/platform/logging"
)

const maxBatchSize = 1000

// Service is the ingestion accept path shared by the REST handlers and
// the gRPC servicer: validate, enrich, and enqueue.
type Service struct {
	validator *validate.Validator
	queue     *worker.Queue
	logger    *logging.Logger
}

func NewService(validator *validate.Validator, queue *worker.Queue, logger *logging.Logger) *Service {
	return &Service{validator: validator, queue: queue, logger: logger}
}

// IngestSingle validates, enriches, and enqueues one event for projectID
// (§6.1's POST /ingest/single).
func (s *Service) IngestSingle(ctx context.Context, projectID uuid.UUID, event domain.LogEvent) error {
	event.ProjectID = projectID
	event.ID = uuid.New()

	if err := s.validator.Validate(&event); err != nil {
		return platformerrors.InvalidInput("log", err.Error())
	}
	s.validator.Enrich(&event)

	if err := s.queue.EnqueueBatch(ctx, projectID, []domain.LogEvent{event}); err != nil {
		return err
	}
	return nil
}

// BatchResult mirrors the REST/RPC response shape of §6.1's POST
// /ingest/batch: accepted count, rejected count, and one error string per
// rejected log.
type BatchResult struct {
	Queued int
	Failed int
	Errors []string
}

// IngestBatch validates and enriches up to maxBatchSize events,
// dropping invalid ones individually (§4.7's "reject the event, not the
// whole batch"), and enqueues everything that passed in one multi-push.
func (s *Service) IngestBatch(ctx context.Context, projectID uuid.UUID, events []domain.LogEvent) (BatchResult, error) {
	if len(events) > maxBatchSize {
		return BatchResult{}, platformerrors.InvalidInput("logs", fmt.Sprintf("batch exceeds the %d log limit", maxBatchSize))
	}

	for i := range events {
		events[i].ProjectID = projectID
		events[i].ID = uuid.New()
	}

	validated := s.validator.ValidateBatch(events)

	if len(validated.Accepted) > 0 {
		if err := s.queue.EnqueueBatch(ctx, projectID, validated.Accepted); err != nil {
			return BatchResult{}, err
		}
	}

	return BatchResult{
		Queued: len(validated.Accepted),
		Failed: validated.Rejected,
		Errors: validated.Errors,
	}, nil
}

// QueueDepth reports projectID's current backlog (§6.1's GET
// /queue/depth).
func (s *Service) QueueDepth(ctx context.Context, projectID uuid.UUID) (int64, error) {
	return s.queue.Depth(ctx, projectID)
}

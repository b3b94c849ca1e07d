package ingestion

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/google/uuid"

	"github.com/loganalytics/platform/internal/domain"
	platformerrors "github.com/loganalytics/platform/internal/platform/errors"
	"github.com/loganalytics/platform/internal/platform/httputil"
	"github.com/loganalytics/platform/internal/platform/logging"
)

// Handlers exposes the ingestion service's REST surface (§6.1): single
// and batch log accept, plus a queue depth probe.
type Handlers struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandlers(svc *Service, logger *logging.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

// Register wires the ingestion routes onto r. The gateway strips the
// /api/v1 prefix before proxying, so these paths match spec.md §6.1
// exactly.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/ingest/single", h.ingestSingle()).Methods("POST")
	r.HandleFunc("/ingest/batch", h.ingestBatch()).Methods("POST")
	r.HandleFunc("/queue/depth", h.queueDepth()).Methods("GET")
}

type ingestSingleRequest = domain.LogEvent

type ingestSingleResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handlers) ingestSingle() http.HandlerFunc {
	return httputil.HandleJSONWithProjectAuth(h.logger, func(ctx context.Context, projectID string, req *ingestSingleRequest) (ingestSingleResponse, error) {
		projUUID, err := uuid.Parse(projectID)
		if err != nil {
			return ingestSingleResponse{}, platformerrors.Unauthenticated("invalid project context")
		}
		if err := h.svc.IngestSingle(ctx, projUUID, *req); err != nil {
			return ingestSingleResponse{}, err
		}
		return ingestSingleResponse{Success: true, Message: "log accepted for processing"}, nil
	})
}

type ingestBatchRequest struct {
	Logs []domain.LogEvent `json:"logs"`
}

type ingestBatchResponse struct {
	Success bool     `json:"success"`
	Queued  int      `json:"accepted"`
	Failed  int      `json:"rejected"`
	Errors  []string `json:"errors,omitempty"`
}

func (h *Handlers) ingestBatch() http.HandlerFunc {
	return httputil.HandleJSONWithProjectAuth(h.logger, func(ctx context.Context, projectID string, req *ingestBatchRequest) (ingestBatchResponse, error) {
		projUUID, err := uuid.Parse(projectID)
		if err != nil {
			return ingestBatchResponse{}, platformerrors.Unauthenticated("invalid project context")
		}
		result, err := h.svc.IngestBatch(ctx, projUUID, req.Logs)
		if err != nil {
			return ingestBatchResponse{}, err
		}
		return ingestBatchResponse{Success: true, Queued: result.Queued, Failed: result.Failed, Errors: result.Errors}, nil
	})
}

type queueDepthResponse struct {
	ProjectID  string `json:"project_id"`
	QueueDepth int64  `json:"queue_depth"`
}

func (h *Handlers) queueDepth() http.HandlerFunc {
	return httputil.HandleNoBodyWithProjectAuth(h.logger, func(ctx context.Context, projectID string) (queueDepthResponse, error) {
		projUUID, err := uuid.Parse(projectID)
		if err != nil {
			return queueDepthResponse{}, platformerrors.Unauthenticated("invalid project context")
		}
		depth, err := h.svc.QueueDepth(ctx, projUUID)
		if err != nil {
			return queueDepthResponse{}, err
		}
		return queueDepthResponse{ProjectID: projectID, QueueDepth: depth}, nil
	})
}

// Package rpc implements proto.IngestionServiceServer (§6.5), the
// gRPC mirror of the ingestion REST surface that other internal
// services call directly instead of going through the gateway. Error
// mapping is grounded on
// original_source/services/ingestion/ingestion_service/grpc/servicers.py:
// QueueFull -> RESOURCE_EXHAUSTED, validation -> INVALID_ARGUMENT,
// anything else -> INTERNAL.
package rpc

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/loganalytics/platform/internal/ingestion"
	platformerrors "github.com/loganalytics/platform/internal/platform/errors"
	"github.com/loganalytics/platform/internal/proto"
)

// Server implements proto.IngestionServiceServer over an
// ingestion.Service.
type Server struct {
	svc *ingestion.Service
}

func NewServer(svc *ingestion.Service) *Server {
	return &Server{svc: svc}
}

func (s *Server) IngestLog(ctx context.Context, req *proto.IngestLogRequest) (*proto.IngestLogResponse, error) {
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid project_id")
	}

	if err := s.svc.IngestSingle(ctx, projectID, req.Log); err != nil {
		return nil, toStatusError(err)
	}
	return &proto.IngestLogResponse{Success: true, Message: "log accepted for processing"}, nil
}

func (s *Server) IngestLogBatch(ctx context.Context, req *proto.IngestLogBatchRequest) (*proto.IngestLogBatchResponse, error) {
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid project_id")
	}

	result, err := s.svc.IngestBatch(ctx, projectID, req.Logs)
	if err != nil {
		return nil, toStatusError(err)
	}

	errStr := joinErrors(result.Errors)
	return &proto.IngestLogBatchResponse{
		Success: true,
		Queued:  result.Queued,
		Failed:  result.Failed,
		Error:   errStr,
	}, nil
}

func (s *Server) GetQueueDepth(ctx context.Context, req *proto.QueueDepthRequest) (*proto.QueueDepthResponse, error) {
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid project_id")
	}

	depth, err := s.svc.QueueDepth(ctx, projectID)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &proto.QueueDepthResponse{Depth: depth}, nil
}

// toStatusError maps the service's ServiceError taxonomy onto gRPC status
// codes the way the source servicer maps its own exception types.
func toStatusError(err error) error {
	svcErr := platformerrors.GetServiceError(err)
	if svcErr == nil {
		return status.Error(codes.Internal, "internal error")
	}
	switch svcErr.Code {
	case platformerrors.CodeBackpressure:
		return status.Error(codes.ResourceExhausted, svcErr.Message)
	case platformerrors.CodeInvalidInput:
		return status.Error(codes.InvalidArgument, svcErr.Message)
	case platformerrors.CodeUnauthenticated:
		return status.Error(codes.Unauthenticated, svcErr.Message)
	case platformerrors.CodeForbidden:
		return status.Error(codes.PermissionDenied, svcErr.Message)
	case platformerrors.CodeNotFound:
		return status.Error(codes.NotFound, svcErr.Message)
	default:
		return status.Error(codes.Internal, svcErr.Message)
	}
}

// joinErrors mirrors the source servicer's "; ".join(error_messages).
func joinErrors(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	out := errs[0]
	for _, e := range errs[1:] {
		out += "; " + e
	}
	return out
}

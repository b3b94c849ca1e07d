// Package rpc implements proto.QueryServiceServer (§6.6), the gRPC mirror
// of the query REST surface's log and aggregated-metrics reads. No service
// in this module dials it; the gateway reaches the query service over HTTP.
package rpc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/loganalytics/platform/internal/domain"
	platformerrors "github.com/loganalytics/platform/internal/platform/errors"
	"github.com/loganalytics/platform/internal/platform/sqlstore"
	"github.com/loganalytics/platform/internal/proto"
	"github.com/loganalytics/platform/internal/query"
)

// Server implements proto.QueryServiceServer over a query.Service.
type Server struct {
	svc *query.Service
}

func NewServer(svc *query.Service) *Server {
	return &Server{svc: svc}
}

func (s *Server) QueryLogs(ctx context.Context, req *proto.QueryLogsRequest) (*proto.LogsResponse, error) {
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid project_id")
	}
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	filter := sqlstore.LogFilter{
		ProjectID:   projectID,
		From:        from,
		To:          to,
		Level:       domain.Level(req.Level),
		LogType:     domain.LogType(req.LogType),
		Fingerprint: req.Fingerprint,
	}
	logs, total, err := s.svc.QueryLogs(ctx, filter, limitOrDefault(req.Limit), req.Offset)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &proto.LogsResponse{Logs: logs, TotalCount: total}, nil
}

func (s *Server) SearchLogs(ctx context.Context, req *proto.SearchLogsRequest) (*proto.LogsResponse, error) {
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid project_id")
	}
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	logs, total, err := s.svc.SearchLogs(ctx, projectID, req.Query, from, to, limitOrDefault(req.Limit), req.Offset)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &proto.LogsResponse{Logs: logs, TotalCount: total}, nil
}

func (s *Server) GetLog(ctx context.Context, req *proto.GetLogRequest) (*proto.GetLogResponse, error) {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid id")
	}
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid project_id")
	}
	event, err := s.svc.GetLog(ctx, id, projectID)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &proto.GetLogResponse{Log: event}, nil
}

func (s *Server) GetErrorList(ctx context.Context, req *proto.GetErrorListRequest) (*proto.LogsResponse, error) {
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid project_id")
	}
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	logs, total, err := s.svc.GetErrorList(ctx, projectID, from, to, limitOrDefault(req.Limit), req.Offset)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &proto.LogsResponse{Logs: logs, TotalCount: total}, nil
}

func (s *Server) GetAggregatedMetrics(ctx context.Context, req *proto.GetAggregatedMetricsRequest) (*proto.GetAggregatedMetricsResponse, error) {
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid project_id")
	}
	var from, to time.Time
	if req.Period == "" {
		from, to, err = parseRange(req.PeriodFrom, req.PeriodTo)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}

	result, err := s.svc.GetAggregatedMetrics(ctx, projectID, domain.MetricKind(req.Kind), req.Period, from, to, req.EndpointPath)
	if err != nil {
		return nil, toStatusError(err)
	}

	points := make([]proto.AggregatedDataPoint, 0, len(result.Points))
	for _, p := range result.Points {
		points = append(points, proto.AggregatedDataPoint{
			BucketTime:    p.BucketTime.Format(time.RFC3339),
			Count:         p.Count,
			ErrorCount:    p.ErrorCount,
			AvgDurationMs: p.AvgDurationMs,
			MinDurationMs: p.MinDurationMs,
			MaxDurationMs: p.MaxDurationMs,
			P95DurationMs: p.P95DurationMs,
			P99DurationMs: p.P99DurationMs,
		})
	}
	return &proto.GetAggregatedMetricsResponse{
		Granularity: string(result.Granularity),
		From:        result.From.Format(time.RFC3339),
		To:          result.To.Format(time.RFC3339),
		Points:      points,
	}, nil
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

// toStatusError maps the service's ServiceError taxonomy onto gRPC status
// codes, the same mapping internal/ingestion/rpc uses.
func toStatusError(err error) error {
	svcErr := platformerrors.GetServiceError(err)
	if svcErr == nil {
		return status.Error(codes.Internal, "internal error")
	}
	switch svcErr.Code {
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

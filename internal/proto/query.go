package proto

import (
	"context"

	"google.golang.org/grpc"

	"github.com/loganalytics/platform/internal/domain"
)

// QueryLogsRequest is the query service's QueryLogs RPC request (§6.6),
// the internal-RPC mirror of GET /logs.
type QueryLogsRequest struct {
	ProjectID   string `json:"project_id"`
	From        string `json:"from"`
	To          string `json:"to"`
	Level       string `json:"level,omitempty"`
	LogType     string `json:"log_type,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
}

// LogsResponse is shared by QueryLogs, SearchLogs, and GetErrorList.
type LogsResponse struct {
	Logs       []domain.LogEvent `json:"logs"`
	TotalCount int64             `json:"total_count"`
}

// SearchLogsRequest is the query service's SearchLogs RPC request.
type SearchLogsRequest struct {
	ProjectID string `json:"project_id"`
	Query     string `json:"query"`
	From      string `json:"from"`
	To        string `json:"to"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}

// GetLogRequest is the query service's GetLog RPC request.
type GetLogRequest struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
}

// GetLogResponse carries the single matched log event.
type GetLogResponse struct {
	Log *domain.LogEvent `json:"log"`
}

// GetErrorListRequest is the query service's GetErrorList RPC request.
type GetErrorListRequest struct {
	ProjectID string `json:"project_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}

// GetAggregatedMetricsRequest is the query service's GetAggregatedMetrics
// RPC request, carrying either Period or the PeriodFrom/PeriodTo pair.
type GetAggregatedMetricsRequest struct {
	ProjectID    string `json:"project_id"`
	Kind         string `json:"kind"`
	Period       string `json:"period,omitempty"`
	PeriodFrom   string `json:"period_from,omitempty"`
	PeriodTo     string `json:"period_to,omitempty"`
	EndpointPath string `json:"endpoint_path,omitempty"`
}

// GetAggregatedMetricsResponse is the dense, zero-filled time series
// GetAggregatedMetrics returns.
type GetAggregatedMetricsResponse struct {
	Granularity string                `json:"granularity"`
	From        string                `json:"from"`
	To          string                `json:"to"`
	Points      []AggregatedDataPoint `json:"points"`
}

// AggregatedDataPoint is one bucket of a GetAggregatedMetricsResponse.
type AggregatedDataPoint struct {
	BucketTime    string  `json:"bucket_time"`
	Count         int64   `json:"count"`
	ErrorCount    int64   `json:"error_count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	MinDurationMs float64 `json:"min_duration_ms"`
	MaxDurationMs float64 `json:"max_duration_ms"`
	P95DurationMs float64 `json:"p95_duration_ms"`
	P99DurationMs float64 `json:"p99_duration_ms"`
}

// ProjectRequest carries a single project ID. No QueryService RPC takes it:
// the four cache-only reads (GetTopErrors, GetErrorRate, GetLogVolume,
// GetUsageStats) are served over REST only.
type ProjectRequest struct {
	ProjectID string `json:"project_id"`
}

// QueryServiceServer is implemented by the query service's RPC handler
// (§6.6).
type QueryServiceServer interface {
	QueryLogs(ctx context.Context, req *QueryLogsRequest) (*LogsResponse, error)
	SearchLogs(ctx context.Context, req *SearchLogsRequest) (*LogsResponse, error)
	GetLog(ctx context.Context, req *GetLogRequest) (*GetLogResponse, error)
	GetErrorList(ctx context.Context, req *GetErrorListRequest) (*LogsResponse, error)
	GetAggregatedMetrics(ctx context.Context, req *GetAggregatedMetricsRequest) (*GetAggregatedMetricsResponse, error)
}

// QueryServiceClient is implemented by internal/platform/rpcpool-backed
// clients of the query service.
type QueryServiceClient interface {
	QueryLogs(ctx context.Context, req *QueryLogsRequest, opts ...grpc.CallOption) (*LogsResponse, error)
	SearchLogs(ctx context.Context, req *SearchLogsRequest, opts ...grpc.CallOption) (*LogsResponse, error)
	GetLog(ctx context.Context, req *GetLogRequest, opts ...grpc.CallOption) (*GetLogResponse, error)
	GetErrorList(ctx context.Context, req *GetErrorListRequest, opts ...grpc.CallOption) (*LogsResponse, error)
	GetAggregatedMetrics(ctx context.Context, req *GetAggregatedMetricsRequest, opts ...grpc.CallOption) (*GetAggregatedMetricsResponse, error)
}

type queryServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewQueryServiceClient wraps a pooled gRPC channel as a
// QueryServiceClient.
func NewQueryServiceClient(cc grpc.ClientConnInterface) QueryServiceClient {
	return &queryServiceClient{cc: cc}
}

func (c *queryServiceClient) QueryLogs(ctx context.Context, req *QueryLogsRequest, opts ...grpc.CallOption) (*LogsResponse, error) {
	resp := new(LogsResponse)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.cc.Invoke(ctx, "/loganalytics.QueryService/QueryLogs", req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *queryServiceClient) SearchLogs(ctx context.Context, req *SearchLogsRequest, opts ...grpc.CallOption) (*LogsResponse, error) {
	resp := new(LogsResponse)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.cc.Invoke(ctx, "/loganalytics.QueryService/SearchLogs", req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *queryServiceClient) GetLog(ctx context.Context, req *GetLogRequest, opts ...grpc.CallOption) (*GetLogResponse, error) {
	resp := new(GetLogResponse)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.cc.Invoke(ctx, "/loganalytics.QueryService/GetLog", req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *queryServiceClient) GetErrorList(ctx context.Context, req *GetErrorListRequest, opts ...grpc.CallOption) (*LogsResponse, error) {
	resp := new(LogsResponse)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.cc.Invoke(ctx, "/loganalytics.QueryService/GetErrorList", req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *queryServiceClient) GetAggregatedMetrics(ctx context.Context, req *GetAggregatedMetricsRequest, opts ...grpc.CallOption) (*GetAggregatedMetricsResponse, error) {
	resp := new(GetAggregatedMetricsResponse)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.cc.Invoke(ctx, "/loganalytics.QueryService/GetAggregatedMetrics", req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

// RegisterQueryServiceServer registers srv on s under the QueryService
// gRPC service name.
func RegisterQueryServiceServer(s grpc.ServiceRegistrar, srv QueryServiceServer) {
	s.RegisterService(&queryServiceServiceDesc, srv)
}

func _QueryService_QueryLogs_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(QueryLogsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServiceServer).QueryLogs(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/loganalytics.QueryService/QueryLogs"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueryServiceServer).QueryLogs(ctx, req.(*QueryLogsRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func _QueryService_SearchLogs_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(SearchLogsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServiceServer).SearchLogs(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/loganalytics.QueryService/SearchLogs"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueryServiceServer).SearchLogs(ctx, req.(*SearchLogsRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func _QueryService_GetLog_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(GetLogRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServiceServer).GetLog(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/loganalytics.QueryService/GetLog"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueryServiceServer).GetLog(ctx, req.(*GetLogRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func _QueryService_GetErrorList_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(GetErrorListRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServiceServer).GetErrorList(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/loganalytics.QueryService/GetErrorList"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueryServiceServer).GetErrorList(ctx, req.(*GetErrorListRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func _QueryService_GetAggregatedMetrics_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(GetAggregatedMetricsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServiceServer).GetAggregatedMetrics(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/loganalytics.QueryService/GetAggregatedMetrics"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueryServiceServer).GetAggregatedMetrics(ctx, req.(*GetAggregatedMetricsRequest))
	}
	return interceptor(ctx, req, info, handler)
}

var queryServiceServiceDesc = grpc.ServiceDesc{
	ServiceName: "loganalytics.QueryService",
	HandlerType: (*QueryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "QueryLogs", Handler: _QueryService_QueryLogs_Handler},
		{MethodName: "SearchLogs", Handler: _QueryService_SearchLogs_Handler},
		{MethodName: "GetLog", Handler: _QueryService_GetLog_Handler},
		{MethodName: "GetErrorList", Handler: _QueryService_GetErrorList_Handler},
		{MethodName: "GetAggregatedMetrics", Handler: _QueryService_GetAggregatedMetrics_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/proto/query.proto",
}

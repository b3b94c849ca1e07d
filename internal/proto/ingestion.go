package proto

import (
	"context"

	"google.golang.org/grpc"

	"github.com/loganalytics/platform/internal/domain"
)

// IngestLogRequest is the ingestion service's IngestLog RPC request
// (§6.5), the internal-RPC mirror of POST /ingest/single.
type IngestLogRequest struct {
	ProjectID string          `json:"project_id"`
	Log       domain.LogEvent `json:"log"`
}

// IngestLogResponse reports whether the log was accepted into the queue.
type IngestLogResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// IngestLogBatchRequest is the ingestion service's IngestLogBatch RPC
// request, the internal-RPC mirror of POST /ingest/batch.
type IngestLogBatchRequest struct {
	ProjectID string            `json:"project_id"`
	Logs      []domain.LogEvent `json:"logs"`
}

// IngestLogBatchResponse reports the partial-acceptance outcome of a
// batch ingest (§4.7's "reject the event, not the whole batch").
type IngestLogBatchResponse struct {
	Success bool   `json:"success"`
	Queued  int    `json:"queued"`
	Failed  int    `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// QueueDepthRequest is the ingestion service's GetQueueDepth RPC request.
type QueueDepthRequest struct {
	ProjectID string `json:"project_id"`
}

// QueueDepthResponse carries a project's current backlog.
type QueueDepthResponse struct {
	Depth int64 `json:"depth"`
}

// IngestionServiceServer is implemented by the ingestion service's RPC
// handler (§6.5).
type IngestionServiceServer interface {
	IngestLog(ctx context.Context, req *IngestLogRequest) (*IngestLogResponse, error)
	IngestLogBatch(ctx context.Context, req *IngestLogBatchRequest) (*IngestLogBatchResponse, error)
	GetQueueDepth(ctx context.Context, req *QueueDepthRequest) (*QueueDepthResponse, error)
}

// IngestionServiceClient is implemented by internal/platform/rpcpool-backed
// clients of the ingestion service.
type IngestionServiceClient interface {
	IngestLog(ctx context.Context, req *IngestLogRequest, opts ...grpc.CallOption) (*IngestLogResponse, error)
	IngestLogBatch(ctx context.Context, req *IngestLogBatchRequest, opts ...grpc.CallOption) (*IngestLogBatchResponse, error)
	GetQueueDepth(ctx context.Context, req *QueueDepthRequest, opts ...grpc.CallOption) (*QueueDepthResponse, error)
}

type ingestionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewIngestionServiceClient wraps a pooled gRPC channel as an
// IngestionServiceClient.
func NewIngestionServiceClient(cc grpc.ClientConnInterface) IngestionServiceClient {
	return &ingestionServiceClient{cc: cc}
}

func (c *ingestionServiceClient) IngestLog(ctx context.Context, req *IngestLogRequest, opts ...grpc.CallOption) (*IngestLogResponse, error) {
	resp := new(IngestLogResponse)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.cc.Invoke(ctx, "/loganalytics.IngestionService/IngestLog", req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *ingestionServiceClient) IngestLogBatch(ctx context.Context, req *IngestLogBatchRequest, opts ...grpc.CallOption) (*IngestLogBatchResponse, error) {
	resp := new(IngestLogBatchResponse)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.cc.Invoke(ctx, "/loganalytics.IngestionService/IngestLogBatch", req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *ingestionServiceClient) GetQueueDepth(ctx context.Context, req *QueueDepthRequest, opts ...grpc.CallOption) (*QueueDepthResponse, error) {
	resp := new(QueueDepthResponse)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.cc.Invoke(ctx, "/loganalytics.IngestionService/GetQueueDepth", req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

// RegisterIngestionServiceServer registers srv on s under the
// IngestionService gRPC service name.
func RegisterIngestionServiceServer(s grpc.ServiceRegistrar, srv IngestionServiceServer) {
	s.RegisterService(&ingestionServiceServiceDesc, srv)
}

func _IngestionService_IngestLog_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(IngestLogRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestionServiceServer).IngestLog(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/loganalytics.IngestionService/IngestLog"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IngestionServiceServer).IngestLog(ctx, req.(*IngestLogRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func _IngestionService_IngestLogBatch_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(IngestLogBatchRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestionServiceServer).IngestLogBatch(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/loganalytics.IngestionService/IngestLogBatch"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IngestionServiceServer).IngestLogBatch(ctx, req.(*IngestLogBatchRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func _IngestionService_GetQueueDepth_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(QueueDepthRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestionServiceServer).GetQueueDepth(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/loganalytics.IngestionService/GetQueueDepth"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IngestionServiceServer).GetQueueDepth(ctx, req.(*QueueDepthRequest))
	}
	return interceptor(ctx, req, info, handler)
}

var ingestionServiceServiceDesc = grpc.ServiceDesc{
	ServiceName: "loganalytics.IngestionService",
	HandlerType: (*IngestionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IngestLog", Handler: _IngestionService_IngestLog_Handler},
		{MethodName: "IngestLogBatch", Handler: _IngestionService_IngestLogBatch_Handler},
		{MethodName: "GetQueueDepth", Handler: _IngestionService_GetQueueDepth_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/proto/ingestion.proto",
}

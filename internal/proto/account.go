package proto

import (
	"context"

	"google.golang.org/grpc"
)

// ValidateAPIKeyRequest is the account service's ValidateAPIKey RPC
// request (§6.5), called by the gateway's auth middleware on an API key
// cache miss.
type ValidateAPIKeyRequest struct {
	Secret string `json:"secret"`
}

// ValidateAPIKeyResponse carries everything the gateway needs to
// authorize and rate-limit the request without a second round trip.
type ValidateAPIKeyResponse struct {
	Valid            bool   `json:"valid"`
	AccountID        string `json:"account_id"`
	ProjectID        string `json:"project_id"`
	RateLimitPerMin  int    `json:"rate_limit_per_minute"`
	RateLimitPerHour int    `json:"rate_limit_per_hour"`
	DailyQuota       int64  `json:"daily_quota"`
}

// AccountServiceServer is implemented by the account service's RPC
// handler.
type AccountServiceServer interface {
	ValidateAPIKey(ctx context.Context, req *ValidateAPIKeyRequest) (*ValidateAPIKeyResponse, error)
}

// AccountServiceClient is implemented by internal/platform/rpcpool-backed
// clients used by the gateway.
type AccountServiceClient interface {
	ValidateAPIKey(ctx context.Context, req *ValidateAPIKeyRequest, opts ...grpc.CallOption) (*ValidateAPIKeyResponse, error)
}

type accountServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAccountServiceClient wraps a pooled gRPC channel (see
// internal/platform/rpcpool) as an AccountServiceClient.
func NewAccountServiceClient(cc grpc.ClientConnInterface) AccountServiceClient {
	return &accountServiceClient{cc: cc}
}

func (c *accountServiceClient) ValidateAPIKey(ctx context.Context, req *ValidateAPIKeyRequest, opts ...grpc.CallOption) (*ValidateAPIKeyResponse, error) {
	resp := new(ValidateAPIKeyResponse)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.cc.Invoke(ctx, "/loganalytics.AccountService/ValidateAPIKey", req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

// RegisterAccountServiceServer registers srv on s under the
// AccountService gRPC service name.
func RegisterAccountServiceServer(s grpc.ServiceRegistrar, srv AccountServiceServer) {
	s.RegisterService(&accountServiceServiceDesc, srv)
}

func _AccountService_ValidateAPIKey_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(ValidateAPIKeyRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AccountServiceServer).ValidateAPIKey(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/loganalytics.AccountService/ValidateAPIKey",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AccountServiceServer).ValidateAPIKey(ctx, req.(*ValidateAPIKeyRequest))
	}
	return interceptor(ctx, req, info, handler)
}

var accountServiceServiceDesc = grpc.ServiceDesc{
	ServiceName: "loganalytics.AccountService",
	HandlerType: (*AccountServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ValidateAPIKey",
			Handler:    _AccountService_ValidateAPIKey_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/proto/account.proto",
}

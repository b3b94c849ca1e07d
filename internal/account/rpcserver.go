package account

import (
	"context"
	"errors"

	"github.com/loganalytics/platform/internal/platform/sqlstore"
	"github.com/loganalytics/platform/internal/proto"
)

// RPCServer implements proto.AccountServiceServer, the RPC surface the
// gateway calls on an API key cache miss (§6.5).
type RPCServer struct {
	store *sqlstore.Store
}

func NewRPCServer(store *sqlstore.Store) *RPCServer {
	return &RPCServer{store: store}
}

func (s *RPCServer) ValidateAPIKey(ctx context.Context, req *proto.ValidateAPIKeyRequest) (*proto.ValidateAPIKeyResponse, error) {
	rec, err := s.store.GetAPIKeyByHash(ctx, hashSecret(req.Secret))
	if errors.Is(err, sqlstore.ErrNoRows) {
		return &proto.ValidateAPIKeyResponse{Valid: false}, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Revoked {
		return &proto.ValidateAPIKeyResponse{Valid: false}, nil
	}

	go func() {
		_ = s.store.TouchAPIKeyLastUsed(context.Background(), rec.ID)
	}()

	return &proto.ValidateAPIKeyResponse{
		Valid:            true,
		AccountID:        rec.ProjectAccountID.String(),
		ProjectID:        rec.ProjectID.String(),
		RateLimitPerMin:  rec.ProjectRateLimitPerMin,
		RateLimitPerHour: rec.ProjectRateLimitPerHour,
		DailyQuota:       rec.ProjectDailyQuota,
	}, nil
}

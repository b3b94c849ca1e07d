// Package accountclient adapts the account service's RPC client into the
// gateway's APIKeyValidator interface, wrapping every call with the
// platform's circuit breaker (§4.3).
package accountclient

import (
	"context"

	"github.com/loganalytics/platform/internal/gateway/middleware"
	"github.com/loganalytics/platform/internal/platform/circuitbreaker"
	"github.com/loganalytics/platform/internal/platform/rpcpool"
	"github.com/loganalytics/platform/internal/proto"
)

// Client calls the account service's ValidateAPIKey RPC through a pooled
// channel, tripping a circuit breaker on repeated failure so a degraded
// account service fails fast instead of stalling every gateway request.
type Client struct {
	pool    *rpcpool.Pool
	breaker *circuitbreaker.CircuitBreaker
}

func New(pool *rpcpool.Pool, breaker *circuitbreaker.CircuitBreaker) *Client {
	return &Client{pool: pool, breaker: breaker}
}

// ValidateAPIKey implements middleware.APIKeyValidator.
func (c *Client) ValidateAPIKey(ctx context.Context, key string) (*middleware.AuthResult, error) {
	conn, release := c.pool.Acquire()
	defer release()

	client := proto.NewAccountServiceClient(conn)

	var resp *proto.ValidateAPIKeyResponse
	err := c.breaker.Execute(ctx, func() error {
		r, err := client.ValidateAPIKey(ctx, &proto.ValidateAPIKeyRequest{Secret: key})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !resp.Valid {
		return nil, middleware.ErrInvalidCredential
	}

	return &middleware.AuthResult{
		AccountID:        resp.AccountID,
		ProjectID:        resp.ProjectID,
		RateLimitPerMin:  resp.RateLimitPerMin,
		RateLimitPerHour: resp.RateLimitPerHour,
		DailyQuota:       resp.DailyQuota,
	}, nil
}

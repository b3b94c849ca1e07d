// Package rpcpool implements §4.6: a fixed-size pool of pooled gRPC
// channels per downstream service, with round-robin selection and scoped
// acquisition. Grounded on original_source's grpc_pool.py
// (GRPCChannelPool/GRPCPoolManager), translated from Python's async
// context-manager pattern into Go's acquire/release closures (§9).
package rpcpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// Config configures a single service's channel pool.
type Config struct {
	ServiceName string
	Address     string
	PoolSize    int
	DialTimeout time.Duration
}

// Pool holds PoolSize gRPC channels to one downstream service and hands
// them out round-robin.
type Pool struct {
	serviceName string
	address     string
	conns       []*grpc.ClientConn
	next        uint64
}

// New dials PoolSize connections to address. Each connection carries
// keepalive parameters and a 10MB max message size, matching the original
// grpc_pool.py's channel options.
func New(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	kaParams := keepalive.ClientParameters{
		Time:                10 * time.Second,
		Timeout:             3 * time.Second,
		PermitWithoutStream: false,
	}

	conns := make([]*grpc.ClientConn, 0, cfg.PoolSize)
	for i := 0; i < cfg.PoolSize; i++ {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		conn, err := grpc.DialContext(dialCtx, cfg.Address,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithKeepaliveParams(kaParams),
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(10<<20),
				grpc.MaxCallSendMsgSize(10<<20),
			),
		)
		cancel()
		if err != nil {
			for _, c := range conns {
				c.Close()
			}
			return nil, fmt.Errorf("dial %s channel %d: %w", cfg.ServiceName, i, err)
		}
		conns = append(conns, conn)
	}

	return &Pool{serviceName: cfg.ServiceName, address: cfg.Address, conns: conns}, nil
}

// Acquire returns the next channel in round-robin order and a release
// function. Channels are shared (gRPC multiplexes streams over one HTTP/2
// connection), so release is a no-op today — it exists so call sites use
// the scoped-acquisition shape even though nothing needs to be returned to
// the pool, matching the original async context-manager usage pattern.
func (p *Pool) Acquire() (*grpc.ClientConn, func()) {
	idx := atomic.AddUint64(&p.next, 1) % uint64(len(p.conns))
	return p.conns[idx], func() {}
}

// Close closes every channel in the pool.
func (p *Pool) Close() error {
	var firstErr error
	for _, c := range p.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats describes a pool's current configuration.
type Stats struct {
	ServiceName string
	Address     string
	PoolSize    int
}

func (p *Pool) Stats() Stats {
	return Stats{ServiceName: p.serviceName, Address: p.address, PoolSize: len(p.conns)}
}

// Manager keeps one Pool per downstream service name.
type Manager struct {
	mu    sync.RWMutex
	pools map[string]*Pool
}

func NewManager() *Manager {
	return &Manager{pools: make(map[string]*Pool)}
}

// AddService dials and registers a pool for a service.
func (m *Manager) AddService(ctx context.Context, cfg Config) error {
	pool, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[cfg.ServiceName] = pool
	return nil
}

// Pool returns the pool registered for service, or nil if none was
// registered.
func (m *Manager) Pool(service string) *Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pools[service]
}

// CloseAll closes every registered pool.
func (m *Manager) CloseAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var firstErr error
	for _, p := range m.pools {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StatsAll returns every registered pool's Stats keyed by service name.
func (m *Manager) StatsAll() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Stats, len(m.pools))
	for name, p := range m.pools {
		out[name] = p.Stats()
	}
	return out
}

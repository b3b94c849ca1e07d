// Package circuitbreaker implements the per-downstream-service circuit
// breaker used by the gateway in front of the account service RPC pool
// (§4.3).
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config configures a CircuitBreaker.
type Config struct {
	MaxFailures   int // failures before opening
	Timeout       time.Duration
	HalfOpenMax   int // max concurrent probes while half-open
	OnStateChange func(from, to State)
}

// DefaultConfig returns the defaults named in §4.3: 5 failures, 30s
// recovery timeout, 3 concurrent half-open probes.
func DefaultConfig() Config {
	return Config{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		HalfOpenMax: 3,
	}
}

// Stats is a point-in-time snapshot of a breaker's counters (§4.3: "each
// breaker exposes total calls, failed calls, rejected calls, state, and
// last-failure time").
type Stats struct {
	State        State
	TotalCalls   int64
	FailedCalls  int64
	RejectedCalls int64
	LastFailure  time.Time
}

// CircuitBreaker implements the CLOSED/OPEN/HALF_OPEN state machine.
type CircuitBreaker struct {
	mu           sync.RWMutex
	config       Config
	state        State
	failures     int
	successes    int
	halfOpenReqs int
	lastFailure  time.Time

	totalCalls    int64
	failedCalls   int64
	rejectedCalls int64
}

// New creates a CircuitBreaker, filling in DefaultConfig's zero-value fields.
func New(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{config: cfg, state: StateClosed}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Stats returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return Stats{
		State:         cb.state,
		TotalCalls:    cb.totalCalls,
		FailedCalls:   cb.failedCalls,
		RejectedCalls: cb.rejectedCalls,
		LastFailure:   cb.lastFailure,
	}
}

// Execute runs fn with circuit breaker protection, rejecting it immediately
// when the breaker is open or the half-open probe budget is exhausted.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn()
	cb.afterRequest(err == nil)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) > cb.config.Timeout {
			cb.setState(StateHalfOpen)
			cb.halfOpenReqs = 1
			cb.totalCalls++
			return nil
		}
		cb.rejectedCalls++
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenReqs >= cb.config.HalfOpenMax {
			cb.rejectedCalls++
			return ErrTooManyRequests
		}
		cb.halfOpenReqs++
	}
	cb.totalCalls++
	return nil
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if success {
		cb.onSuccess()
	} else {
		cb.failedCalls++
		cb.onFailure()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.HalfOpenMax {
			cb.setState(StateClosed)
		}
	case StateClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.lastFailure = time.Now()

	switch cb.state {
	case StateHalfOpen:
		cb.setState(StateOpen)
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.setState(StateOpen)
		}
	}
}

func (cb *CircuitBreaker) setState(newState State) {
	if cb.state == newState {
		return
	}
	old := cb.state
	cb.state = newState
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenReqs = 0

	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(old, newState)
	}
}

// Registry keeps one named CircuitBreaker per downstream service (account,
// ingestion, query) and looks them up by name. cmd/gateway does not use it;
// it holds its one account breaker directly.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	config   Config
}

// NewRegistry creates a Registry whose breakers all share cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{breakers: make(map[string]*CircuitBreaker), config: cfg}
}

// Get returns the breaker for service, creating it on first use.
func (r *Registry) Get(service string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[service]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[service]; ok {
		return cb
	}
	cb = New(r.config)
	r.breakers[service] = cb
	return cb
}

// StatsAll returns a snapshot of every registered breaker, keyed by service
// name.
func (r *Registry) StatsAll() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Stats, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.Stats()
	}
	return out
}

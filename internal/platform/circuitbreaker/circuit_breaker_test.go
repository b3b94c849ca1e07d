package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpensAfterMaxFailures(t *testing.T) {
	cb := New(Config{MaxFailures: 3, Timeout: 20 * time.Millisecond, HalfOpenMax: 2})
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func() error { return boom })
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, StateOpen, cb.State())
	err := cb.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestHalfOpenRecoversToClosed(t *testing.T) {
	cb := New(Config{MaxFailures: 1, Timeout: 5 * time.Millisecond, HalfOpenMax: 2})

	require.Error(t, cb.Execute(context.Background(), func() error { return errors.New("x") }))
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(10 * time.Millisecond)

	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenRejectsOverBudget(t *testing.T) {
	cb := New(Config{MaxFailures: 1, Timeout: 1 * time.Millisecond, HalfOpenMax: 1})
	require.Error(t, cb.Execute(context.Background(), func() error { return errors.New("x") }))
	time.Sleep(5 * time.Millisecond)

	blockCh := make(chan struct{})
	go cb.Execute(context.Background(), func() error { <-blockCh; return nil })
	time.Sleep(5 * time.Millisecond)

	err := cb.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrTooManyRequests)
	close(blockCh)
}

func TestRegistryReturnsSameBreakerPerService(t *testing.T) {
	reg := NewRegistry(DefaultConfig())
	a := reg.Get("account")
	b := reg.Get("account")
	assert.Same(t, a, b)
	assert.NotSame(t, a, reg.Get("query"))
}

func TestStatsTracksCounters(t *testing.T) {
	cb := New(DefaultConfig())
	_ = cb.Execute(context.Background(), func() error { return nil })
	_ = cb.Execute(context.Background(), func() error { return errors.New("x") })

	stats := cb.Stats()
	assert.EqualValues(t, 2, stats.TotalCalls)
	assert.EqualValues(t, 1, stats.FailedCalls)
}

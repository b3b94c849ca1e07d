package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerRunsFnRepeatedlyUntilStopped(t *testing.T) {
	var calls int32
	w := New(Config{
		Name:     "test",
		Interval: 5 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	})

	require.NoError(t, w.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	w.Stop()

	assert.False(t, w.IsRunning())
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestWorkerStartTwiceErrors(t *testing.T) {
	w := New(Config{Name: "dup", Interval: time.Second, Fn: func(ctx context.Context) error { return nil }})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Error(t, w.Start(context.Background()))
}

func TestWorkerReportsErrorsWithoutStopping(t *testing.T) {
	var errCount int32
	w := New(Config{
		Name:     "failing",
		Interval: 5 * time.Millisecond,
		Fn:       func(ctx context.Context) error { return assert.AnError },
		OnError:  func(name string, err error) { atomic.AddInt32(&errCount, 1) },
	})

	require.NoError(t, w.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	w.Stop()

	assert.Greater(t, atomic.LoadInt32(&errCount), int32(0))
}

func TestGroupStartsAndStopsAllWorkers(t *testing.T) {
	var calls int32
	g := NewGroup()
	for i := 0; i < 3; i++ {
		g.AddFunc(Config{
			Name:     "w",
			Interval: 5 * time.Millisecond,
			Fn:       func(ctx context.Context) error { atomic.AddInt32(&calls, 1); return nil },
		})
	}

	require.NoError(t, g.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	g.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

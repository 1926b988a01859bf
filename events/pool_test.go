package events_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-auth-gateway/events"
	"github.com/stretchr/testify/require"
)

// TestPool_RunsAllJobs tests that Stop waits for queued jobs
func TestPool_RunsAllJobs(t *testing.T) {
	pool := events.NewPool(3, 2)
	require.NoError(t, pool.Start(context.Background()))

	var ran atomic.Int32
	for n := 0; n < 20; n++ {
		require.NoError(t, pool.Submit(context.Background(), func(context.Context) { ran.Add(1) }))
	}
	pool.Stop()
	require.Equal(t, int32(20), ran.Load())
}

// TestPool_RecoversPanics tests that a panicking job does not kill its worker
func TestPool_RecoversPanics(t *testing.T) {
	pool := events.NewPool(1, 1)
	require.NoError(t, pool.Start(context.Background()))

	var ran atomic.Int32
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) { panic("boom") }))
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) { ran.Add(1) }))
	pool.Stop()
	require.Equal(t, int32(1), ran.Load())
}

// TestPool_Lifecycle tests submit and start after stop
func TestPool_Lifecycle(t *testing.T) {
	pool := events.NewPool(1, 0)
	require.Error(t, pool.Submit(context.Background(), func(context.Context) {}))

	require.NoError(t, pool.Start(context.Background()))
	require.Error(t, pool.Start(context.Background()))
	pool.Stop()
	pool.Stop()

	require.Error(t, pool.Submit(context.Background(), func(context.Context) {}))
	require.Error(t, pool.Start(context.Background()))
}

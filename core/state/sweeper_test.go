package state_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/swingbot/core/metrics"
	"github.com/m3rciful/swingbot/core/state"
	"github.com/m3rciful/swingbot/core/state/memstore"
)

func TestSweepOnceHonoursGrace(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	durable := memstore.New()
	require.NoError(t, durable.Upsert(ctx, active(1, clk.Now().Add(-3*time.Hour))))
	require.NoError(t, durable.Upsert(ctx, active(2, clk.Now().Add(-30*time.Minute))))
	require.NoError(t, durable.Upsert(ctx, active(3, clk.Now().Add(time.Hour))))

	sw := state.NewSweeper(durable, state.SweeperOptions{
		Grace:   time.Hour,
		Now:     clk.Now,
		Metrics: metrics.NewRecorder(prometheus.NewRegistry()),
	})
	n, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 2, durable.Len())
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	durable := memstore.New()
	require.NoError(t, durable.Upsert(ctx, active(1, time.Now().Add(-time.Hour))))

	sw := state.NewSweeper(durable, state.SweeperOptions{Interval: 5 * time.Millisecond})
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return durable.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeperDisabled(t *testing.T) {
	sw := state.NewSweeper(memstore.New(), state.SweeperOptions{})
	done := make(chan struct{})
	go func() {
		sw.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled sweeper should return immediately")
	}
}

package state

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/swingbot/core/logger"
	"github.com/m3rciful/swingbot/core/metrics"
)

// Sweeper periodically deletes durable records that expired long ago. Reads
// already ignore expired records, so the sweep only reclaims storage.
type Sweeper struct {
	durable  Durable
	interval time.Duration
	grace    time.Duration
	timeout  time.Duration
	now      func() time.Time
	metrics  *metrics.Recorder
}

// SweeperOptions configures NewSweeper.
type SweeperOptions struct {
	Interval time.Duration
	// Grace is how long past expiry a record is kept.
	Grace   time.Duration
	Timeout time.Duration
	Now     func() time.Time
	Metrics *metrics.Recorder
}

// NewSweeper builds a sweeper over durable.
func NewSweeper(durable Durable, opts SweeperOptions) *Sweeper {
	s := &Sweeper{
		durable:  durable,
		interval: opts.Interval,
		grace:    opts.Grace,
		timeout:  opts.Timeout,
		now:      opts.Now,
		metrics:  opts.Metrics,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.timeout <= 0 {
		s.timeout = defaultDurableTimeout
	}
	if s.grace < 0 {
		s.grace = 0
	}
	return s
}

// SweepOnce deletes records that expired before now minus grace.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	before := s.now().Add(-s.grace)
	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.durable.DeleteExpired(dctx, before)
	if err != nil {
		s.metrics.DurableError("delete_expired")
		logger.Sweep.Warn("sweep failed",
			slog.String("event", "state.sweep"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return 0, err
	}
	s.metrics.Swept(n)
	level := slog.LevelDebug
	if n > 0 {
		level = slog.LevelInfo
	}
	logger.Sweep.LogAttrs(ctx, level, "sweep done",
		slog.String("event", "state.sweep"),
		slog.String("status", "ok"),
		slog.Int64("deleted", n),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return n, nil
}

// Run sweeps on every tick until ctx is done. A non-positive interval
// disables the loop.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		logger.Sweep.Info("sweeper disabled", slog.String("event", "state.sweep"), slog.String("status", "skip"))
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}

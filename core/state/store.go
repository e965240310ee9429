package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/m3rciful/swingbot/core/logger"
	"github.com/m3rciful/swingbot/core/metrics"
)

const (
	defaultDurableTimeout = 5 * time.Second
	defaultTTLCeiling     = time.Hour
)

// Store combines the durable tier and the optional cache tier. Reads are
// cache-aside and writes go to the durable tier first. Expiry is always
// checked on the record itself, whichever tier served it.
type Store struct {
	durable Durable
	cache   Cache

	now            func() time.Time
	ttlCeiling     time.Duration
	durableTimeout time.Duration
	metrics        *metrics.Recorder

	hits        atomic.Int64
	misses      atomic.Int64
	cacheErrors atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithCache enables the cache tier. A nil cache leaves it disabled.
func WithCache(c Cache) Option {
	return func(s *Store) { s.cache = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTTLCeiling caps cache entry lifetime.
func WithTTLCeiling(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttlCeiling = d
		}
	}
}

// WithDurableTimeout bounds every durable call.
func WithDurableTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.durableTimeout = d
		}
	}
}

// WithMetrics records cache and durable results.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Store) { s.metrics = r }
}

// NewStore builds a Store over durable.
func NewStore(durable Durable, opts ...Option) *Store {
	s := &Store{
		durable:        durable,
		now:            time.Now,
		ttlCeiling:     defaultTTLCeiling,
		durableTimeout: defaultDurableTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats is a snapshot of cache effectiveness.
type Stats struct {
	Hits        int64
	Misses      int64
	CacheErrors int64
	CacheOn     bool
}

// Stats returns counters accumulated since start.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		CacheErrors: s.cacheErrors.Load(),
		CacheOn:     s.cache != nil,
	}
}

// Get returns the active, unexpired state of userID or nil when there is none.
// Only durable failures are returned, wrapped in ErrStorageUnavailable.
func (s *Store) Get(ctx context.Context, userID int64) (*ConversationState, error) {
	now := s.now()

	if s.cache != nil {
		st, err := s.cache.Get(ctx, userID)
		switch {
		case err == nil && st.Active() && !st.ExpiredAt(now):
			s.hits.Add(1)
			s.metrics.Cache("get", metrics.CacheHit)
			return st, nil
		case err == nil, errors.Is(err, ErrCacheMiss):
			s.misses.Add(1)
			s.metrics.Cache("get", metrics.CacheMiss)
		default:
			s.cacheFailed(ctx, "cache.get", userID, err)
		}
	}

	dctx, cancel := context.WithTimeout(ctx, s.durableTimeout)
	defer cancel()
	st, err := s.durable.Load(dctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.durableFailed(ctx, "load", userID, err)
	}
	if !st.Active() || st.ExpiredAt(now) {
		return nil, nil
	}

	s.fill(ctx, st, now, "cache.fill")
	return st, nil
}

// Put writes st durably, then mirrors it into the cache.
func (s *Store) Put(ctx context.Context, st *ConversationState) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("state: put: %w", err)
	}
	now := s.now()
	rec := st.Clone()
	rec.UpdatedAt = now

	dctx, cancel := context.WithTimeout(ctx, s.durableTimeout)
	defer cancel()
	if err := s.durable.Upsert(dctx, rec); err != nil {
		return s.durableFailed(ctx, "upsert", rec.UserID, err)
	}
	st.UpdatedAt = now

	if !rec.Active() {
		s.evict(ctx, rec.UserID)
		return nil
	}
	s.fill(ctx, rec, now, "cache.set")
	return nil
}

// Clear deletes the state of userID from both tiers.
func (s *Store) Clear(ctx context.Context, userID int64) error {
	dctx, cancel := context.WithTimeout(ctx, s.durableTimeout)
	defer cancel()
	if err := s.durable.Delete(dctx, userID); err != nil && !errors.Is(err, ErrNotFound) {
		return s.durableFailed(ctx, "delete", userID, err)
	}
	s.evict(ctx, userID)
	return nil
}

// CacheTTL is the lifetime a cache entry for st may have at now.
func (s *Store) CacheTTL(st *ConversationState, now time.Time) time.Duration {
	ttl := st.ExpiresAt.Sub(now)
	if s.ttlCeiling > 0 && ttl > s.ttlCeiling {
		ttl = s.ttlCeiling
	}
	return ttl
}

func (s *Store) fill(ctx context.Context, st *ConversationState, now time.Time, event string) {
	if s.cache == nil {
		return
	}
	ttl := s.CacheTTL(st, now)
	if ttl <= 0 {
		s.metrics.Cache("set", metrics.CacheSkip)
		return
	}
	if err := s.cache.Set(ctx, st, ttl); err != nil {
		s.cacheFailed(ctx, event, st.UserID, err)
		return
	}
	s.metrics.Cache("set", metrics.CacheStored)
	if logger.ShouldSampleDebug() {
		logger.Cache.LogAttrs(ctx, slog.LevelDebug, "",
			slog.String("event", event),
			slog.String("cache", "refresh"),
			slog.Int64("user_id", st.UserID),
			slog.Int64("ttl_ms", ttl.Milliseconds()),
		)
	}
}

func (s *Store) evict(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.cacheFailed(ctx, "cache.delete", userID, err)
	}
}

func (s *Store) cacheFailed(ctx context.Context, event string, userID int64, err error) {
	s.cacheErrors.Add(1)
	s.metrics.Cache(strings.TrimPrefix(event, "cache."), metrics.CacheError)
	logger.Cache.LogAttrs(ctx, slog.LevelWarn, "cache unavailable",
		slog.String("event", event),
		slog.String("cache", "error"),
		slog.Int64("user_id", userID),
		slog.String("err", err.Error()),
	)
}

func (s *Store) durableFailed(ctx context.Context, op string, userID int64, err error) error {
	s.metrics.DurableError(op)
	logger.State.LogAttrs(ctx, slog.LevelError, "durable store failed",
		slog.String("event", "state."+op),
		slog.String("status", "fail"),
		slog.Int64("user_id", userID),
		slog.String("err", err.Error()),
	)
	return fmt.Errorf("%w: %s user %d: %w", ErrStorageUnavailable, op, userID, err)
}

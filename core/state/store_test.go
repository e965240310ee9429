package state_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/swingbot/core/scenario"
	"github.com/m3rciful/swingbot/core/state"
	"github.com/m3rciful/swingbot/core/state/memstore"
	"github.com/m3rciful/swingbot/core/state/rediscache"
)

var errBoom = errors.New("boom")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// flakyDurable fails selected operations.
type flakyDurable struct {
	*memstore.Store
	loadErr, upsertErr, deleteErr error
	block                         bool
}

func (f *flakyDurable) Load(ctx context.Context, id int64) (*state.ConversationState, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.Store.Load(ctx, id)
}

func (f *flakyDurable) Upsert(ctx context.Context, st *state.ConversationState) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.Store.Upsert(ctx, st)
}

func (f *flakyDurable) Delete(ctx context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Store.Delete(ctx, id)
}

// mapCache is a Cache that stores entries without expiring them.
type mapCache struct {
	mu                     sync.Mutex
	entries                map[int64]*state.ConversationState
	ttls                   map[int64]time.Duration
	getErr, setErr, delErr error
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[int64]*state.ConversationState{}, ttls: map[int64]time.Duration{}}
}

func (c *mapCache) Get(_ context.Context, id int64) (*state.ConversationState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	st, ok := c.entries[id]
	if !ok {
		return nil, state.ErrCacheMiss
	}
	return st.Clone(), nil
}

func (c *mapCache) Set(_ context.Context, st *state.ConversationState, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[st.UserID] = st.Clone()
	c.ttls[st.UserID] = ttl
	return nil
}

func (c *mapCache) Delete(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.delErr != nil {
		return c.delErr
	}
	delete(c.entries, id)
	return nil
}

func (c *mapCache) has(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

func active(userID int64, expires time.Time) *state.ConversationState {
	return &state.ConversationState{
		UserID:    userID,
		Scenario:  scenario.Onboarding,
		Step:      "name",
		Data:      scenario.Data{"language": "ru"},
		ExpiresAt: expires,
	}
}

func TestGetAbsent(t *testing.T) {
	s := state.NewStore(memstore.New(), state.WithCache(newMapCache()))
	st, err := s.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestPutThenGetServesFromCache(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	cache := newMapCache()
	s := state.NewStore(memstore.New(), state.WithCache(cache), state.WithClock(clk.Now))

	require.NoError(t, s.Put(ctx, active(1, clk.Now().Add(time.Hour))))
	assert.True(t, cache.has(1))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "name", got.Step)
	assert.True(t, got.UpdatedAt.Equal(clk.Now()))
	assert.Equal(t, int64(1), s.Stats().Hits)
}

func TestGetFillsCacheFromDurable(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	durable := memstore.New()
	require.NoError(t, durable.Upsert(ctx, active(1, clk.Now().Add(10*time.Minute))))

	cache := newMapCache()
	s := state.NewStore(durable, state.WithCache(cache), state.WithClock(clk.Now), state.WithTTLCeiling(time.Hour))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, cache.has(1))
	assert.Equal(t, 10*time.Minute, cache.ttls[1])
	assert.Equal(t, int64(1), s.Stats().Misses)
}

func TestCacheTTLIsCappedByCeiling(t *testing.T) {
	clk := newClock()
	s := state.NewStore(memstore.New(), state.WithTTLCeiling(5*time.Minute))
	assert.Equal(t, 5*time.Minute, s.CacheTTL(active(1, clk.Now().Add(time.Hour)), clk.Now()))
	assert.Equal(t, time.Minute, s.CacheTTL(active(1, clk.Now().Add(time.Minute)), clk.Now()))
	assert.LessOrEqual(t, s.CacheTTL(active(1, clk.Now().Add(-time.Minute)), clk.Now()), time.Duration(0))
}

func TestExpiredRecordIsAbsentButKept(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	durable := memstore.New()
	s := state.NewStore(durable, state.WithClock(clk.Now))

	require.NoError(t, s.Put(ctx, active(1, clk.Now().Add(time.Minute))))
	clk.Advance(time.Minute)

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, durable.Len())
}

func TestStaleCacheEntryIsCheckedForExpiry(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	cache := newMapCache()
	s := state.NewStore(memstore.New(), state.WithCache(cache), state.WithClock(clk.Now))

	require.NoError(t, s.Put(ctx, active(1, clk.Now().Add(time.Minute))))
	clk.Advance(2 * time.Minute)
	require.True(t, cache.has(1))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPutDurableFailureLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	durable := &flakyDurable{Store: memstore.New(), upsertErr: errBoom}
	cache := newMapCache()
	s := state.NewStore(durable, state.WithCache(cache), state.WithClock(clk.Now))

	err := s.Put(ctx, active(1, clk.Now().Add(time.Hour)))
	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrStorageUnavailable)
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, cache.has(1))
}

func TestPutRejectsPartialState(t *testing.T) {
	s := state.NewStore(memstore.New())
	err := s.Put(context.Background(), &state.ConversationState{UserID: 1, Scenario: scenario.Onboarding})
	assert.ErrorIs(t, err, state.ErrInvalidState)

	err = s.Put(context.Background(), &state.ConversationState{UserID: 1, Scenario: scenario.Onboarding, Step: "name"})
	assert.ErrorIs(t, err, state.ErrInvalidState)
}

func TestCacheFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	cache := newMapCache()
	cache.setErr = errBoom
	cache.getErr = errBoom
	cache.delErr = errBoom
	s := state.NewStore(memstore.New(), state.WithCache(cache), state.WithClock(clk.Now))

	require.NoError(t, s.Put(ctx, active(1, clk.Now().Add(time.Hour))))
	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NoError(t, s.Clear(ctx, 1))

	got, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.GreaterOrEqual(t, s.Stats().CacheErrors, int64(4))
}

func TestDurableLoadFailureIsRetryable(t *testing.T) {
	durable := &flakyDurable{Store: memstore.New(), loadErr: errBoom}
	s := state.NewStore(durable)
	_, err := s.Get(context.Background(), 1)
	assert.ErrorIs(t, err, state.ErrStorageUnavailable)
}

func TestDurableTimeout(t *testing.T) {
	durable := &flakyDurable{Store: memstore.New(), block: true}
	s := state.NewStore(durable, state.WithDurableTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := s.Get(context.Background(), 1)
	assert.ErrorIs(t, err, state.ErrStorageUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClearDurableFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	durable := &flakyDurable{Store: memstore.New()}
	cache := newMapCache()
	s := state.NewStore(durable, state.WithCache(cache), state.WithClock(clk.Now))
	require.NoError(t, s.Put(ctx, active(1, clk.Now().Add(time.Hour))))

	durable.deleteErr = errBoom
	err := s.Clear(ctx, 1)
	assert.ErrorIs(t, err, state.ErrStorageUnavailable)
	assert.True(t, cache.has(1))
}

func TestStoreWithRedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := rediscache.New(client, rediscache.WithPrefix("t:"))
	s := state.NewStore(memstore.New(), state.WithCache(cache), state.WithTTLCeiling(30*time.Minute))

	require.NoError(t, s.Put(ctx, active(9, time.Now().Add(2*time.Hour))))
	assert.Equal(t, 30*time.Minute, mr.TTL("t:context:9"))

	got, err := s.Get(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), s.Stats().Hits)

	require.NoError(t, s.Clear(ctx, 9))
	assert.False(t, mr.Exists("t:context:9"))

	mr.Close()
	require.NoError(t, s.Put(ctx, active(9, time.Now().Add(time.Hour))))
	got, err = s.Get(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "name", got.Step)
}

func TestConversationStateHelpers(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	st := active(1, now)
	assert.True(t, st.Active())
	assert.True(t, st.ExpiredAt(now))
	assert.False(t, st.ExpiredAt(now.Add(-time.Nanosecond)))

	c := st.Clone()
	c.Data["language"] = "en"
	assert.Equal(t, "ru", st.Data.String("language"))

	var nilState *state.ConversationState
	assert.False(t, nilState.Active())
	assert.Nil(t, nilState.Clone())
	assert.Error(t, nilState.Validate())
	assert.NoError(t, (&state.ConversationState{UserID: 3}).Validate())
}

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imperium-ai/imperium/internal/domain/gate"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/pkg/circuitbreaker"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeClient struct {
	data    map[string]string
	ttls    map[string]time.Duration
	failGet bool
	failSet bool
	// delFailures makes the next n Del calls fail.
	delFailures int
	dels        int
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	if f.failGet {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	if f.failSet {
		return redis.NewStatusResult("", errors.New("i/o timeout"))
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.dels++
	if f.delFailures > 0 {
		f.delFailures--
		return redis.NewIntResult(0, errors.New("i/o timeout"))
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeClient) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

type countingProgression struct {
	users map[string]progression.UserProgression
	gets  int
}

func (c *countingProgression) Create(_ context.Context, u progression.UserProgression) error {
	c.users[u.ID] = u
	return nil
}

func (c *countingProgression) Get(_ context.Context, id string) (progression.UserProgression, error) {
	c.gets++
	u, ok := c.users[id]
	if !ok {
		return u, shared.ErrNotFound
	}
	return u, nil
}

func (c *countingProgression) Save(_ context.Context, u progression.UserProgression) error {
	c.users[u.ID] = u
	return nil
}

func (c *countingProgression) Delete(_ context.Context, id string) error {
	delete(c.users, id)
	return nil
}

type memGates struct {
	states map[string]gate.State
	gets   int
	saves  int
}

func (m *memGates) Get(_ context.Context, userID string, action gate.Action) (gate.State, error) {
	m.gets++
	return m.states[userID+string(action)], nil
}

func (m *memGates) Save(_ context.Context, userID string, action gate.Action, s gate.State) error {
	m.saves++
	m.states[userID+string(action)] = s
	return nil
}

var t0 = time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestCache_PrefixAndMiss(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	c := NewCache(client, "imperium:")

	var out map[string]int
	assert.ErrorIs(t, c.Get(ctx, "k", &out), ErrCacheMiss)
	assert.ErrorIs(t, c.Get(ctx, "", &out), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)

	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))
	assert.Contains(t, client.data, "imperium:k")

	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, 1, out["a"])

	require.NoError(t, c.Delete(ctx, "k"))
	assert.Empty(t, client.data)
}

func TestProgressionRepository_ReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	engine := progression.NewEngine(nil)
	backing := &countingProgression{users: map[string]progression.UserProgression{}}
	repo := NewProgressionRepository(backing, NewCache(newFakeClient(), ""), engine, time.Minute, nil)

	u := engine.NewUser("u-1", "aurelius", t0)
	require.NoError(t, repo.Create(ctx, u))

	_, err := repo.Get(ctx, "u-1")
	require.NoError(t, err)
	_, err = repo.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, backing.gets, "second read is served from cache")

	u, err = engine.AddXP(u, 700)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, u))

	got, err := repo.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, backing.gets)
	assert.Equal(t, progression.XP(700), got.InfluenceXP())
	assert.Equal(t, progression.RankStrategist, got.CurrentRank())

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestProgressionRepository_CacheFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	engine := progression.NewEngine(nil)
	backing := &countingProgression{users: map[string]progression.UserProgression{
		"u-1": engine.NewUser("u-1", "napoleon", t0),
	}}
	client := newFakeClient()
	client.failGet = true
	repo := NewProgressionRepository(backing, NewCache(client, ""), engine, time.Minute, nil)

	u, err := repo.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "napoleon", u.Mentor)
}

func TestGateRepository_TTLUntilMidnight(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	clock := timeutil.NewFixedClock(t0, time.UTC)
	backing := &memGates{states: map[string]gate.State{}}
	repo := NewGateRepository(backing, NewCache(client, ""), clock, nil)

	at := t0
	require.NoError(t, repo.Save(ctx, "u-1", gate.ActionCouncilSummon, gate.State{LastTriggeredAt: &at}))
	assert.NotContains(t, client.data, GateKey("u-1", "council_summon"), "writes only evict")

	for i := 0; i < 2; i++ {
		st, err := repo.Get(ctx, "u-1", gate.ActionCouncilSummon)
		require.NoError(t, err)
		require.NotNil(t, st.LastTriggeredAt)
		assert.True(t, st.LastTriggeredAt.Equal(t0))
	}
	assert.Equal(t, 1, backing.gets)
	assert.Equal(t, 6*time.Hour, client.ttls[GateKey("u-1", "council_summon")])
}

func TestCache_BreakerSkipsRedisWhileDown(t *testing.T) {
	client := newFakeClient()
	client.failGet = true
	cb := circuitbreaker.New("redis", circuitbreaker.WithFailureThreshold(2), circuitbreaker.WithIsFailure(IsFailure))
	cache := NewCache(client, "imp:").WithBreaker(cb)

	var v string
	for i := 0; i < 2; i++ {
		err := cache.Get(context.Background(), "k", &v)
		require.Error(t, err)
		assert.False(t, Skipped(err))
	}
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())

	err := cache.Get(context.Background(), "k", &v)
	assert.True(t, Skipped(err))
}

func TestCache_MissIsNotAFailure(t *testing.T) {
	cb := circuitbreaker.New("redis", circuitbreaker.WithFailureThreshold(1), circuitbreaker.WithIsFailure(IsFailure))
	cache := NewCache(newFakeClient(), "imp:").WithBreaker(cb)

	var v string
	assert.ErrorIs(t, cache.Get(context.Background(), "absent", &v), ErrCacheMiss)
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
}

func TestGateRepository_SaveDropsCachedOpenGate(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	clock := timeutil.NewFixedClock(t0, time.UTC)
	backing := &memGates{states: map[string]gate.State{}}
	repo := NewGateRepository(backing, NewCache(client, ""), clock, nil)
	g := gate.NewDailyGate(gate.ActionCouncilSummon, time.UTC)

	st, err := repo.Get(ctx, "u-1", gate.ActionCouncilSummon)
	require.NoError(t, err)
	require.Contains(t, client.data, GateKey("u-1", "council_summon"), "empty state is cached")

	next, err := g.RecordTrigger(st, clock.Now())
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, "u-1", gate.ActionCouncilSummon, next))

	// Refilling the cache fails too, the read still sees the closed gate.
	client.failSet = true
	st, err = repo.Get(ctx, "u-1", gate.ActionCouncilSummon)
	require.NoError(t, err)
	assert.False(t, g.CanTrigger(st, clock.Now().Add(time.Hour)))
}

func TestGateRepository_InvalidationFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	backing := &memGates{states: map[string]gate.State{}}
	repo := NewGateRepository(backing, NewCache(client, ""), timeutil.NewFixedClock(t0, time.UTC), nil)

	client.delFailures = 1
	at := t0
	err := repo.Save(ctx, "u-1", gate.ActionCouncilSummon, gate.State{LastTriggeredAt: &at})
	require.Error(t, err)
	assert.Zero(t, backing.saves)
}

func TestGateRepository_EvictionRetries(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	clock := timeutil.NewFixedClock(t0, time.UTC)
	backing := &memGates{states: map[string]gate.State{}}
	repo := NewGateRepository(backing, NewCache(client, ""), clock, nil)

	_, err := repo.Get(ctx, "u-1", gate.ActionCouncilSummon)
	require.NoError(t, err)

	// The pre-write delete succeeds, the first eviction attempt fails.
	client.dels = 0
	repo.cache = NewCache(&failSecondDel{fakeClient: client}, "")
	at := t0
	require.NoError(t, repo.Save(ctx, "u-1", gate.ActionCouncilSummon, gate.State{LastTriggeredAt: &at}))

	assert.NotContains(t, client.data, GateKey("u-1", "council_summon"))
	assert.Equal(t, 3, client.dels)
}

// failSecondDel fails only the second Del call.
type failSecondDel struct {
	*fakeClient
}

func (f *failSecondDel) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.dels == 1 {
		f.delFailures = 1
	}
	return f.fakeClient.Del(ctx, keys...)
}

func TestProgressionRepository_SaveNeverLeavesOlderSnapshot(t *testing.T) {
	ctx := context.Background()
	engine := progression.NewEngine(nil)
	backing := &countingProgression{users: map[string]progression.UserProgression{}}
	client := newFakeClient()
	repo := NewProgressionRepository(backing, NewCache(client, ""), engine, time.Minute, nil)

	u := engine.NewUser("u-1", "aurelius", t0)
	require.NoError(t, repo.Create(ctx, u))
	_, err := repo.Get(ctx, "u-1")
	require.NoError(t, err)

	u, err = engine.AddXP(u, 100)
	require.NoError(t, err)

	client.delFailures = 1
	require.Error(t, repo.Save(ctx, u), "cannot drop the cached copy")
	assert.Equal(t, progression.XP(0), backing.users["u-1"].InfluenceXP(), "nothing written")

	require.NoError(t, repo.Save(ctx, u))
	got, err := repo.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, progression.XP(100), got.InfluenceXP())

	u, err = engine.AddXP(got, 50)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, u))
	got, err = repo.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, progression.XP(150), got.InfluenceXP())
}

func TestGateRepository_EvictsAgainAfterCommit(t *testing.T) {
	client := newFakeClient()
	clock := timeutil.NewFixedClock(t0, time.UTC)
	backing := &memGates{states: map[string]gate.State{}}
	repo := NewGateRepository(backing, NewCache(client, ""), clock, nil)
	key := GateKey("u-1", "council_summon")

	ctx, hooks := shared.WithCommitHooks(context.Background())
	at := t0
	require.NoError(t, repo.Save(ctx, "u-1", gate.ActionCouncilSummon, gate.State{LastTriggeredAt: &at}))

	// A concurrent reader caches the pre-commit state.
	require.NoError(t, repo.cache.Set(context.Background(), key, gate.State{}, time.Hour))

	hooks.Run(context.Background())
	assert.NotContains(t, client.data, key)

	st, err := repo.Get(context.Background(), "u-1", gate.ActionCouncilSummon)
	require.NoError(t, err)
	assert.NotNil(t, st.LastTriggeredAt)
}

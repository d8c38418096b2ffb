package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imperium-ai/imperium/internal/domain/gate"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/pkg/logger"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressionRepository caches progression reads. Writes go to the wrapped
// repository first and then drop the cached copy.
type ProgressionRepository struct {
	next   progression.Repository
	cache  *Cache
	engine *progression.Engine
	ttl    time.Duration
	log    *logger.Logger
}

var _ progression.Repository = (*ProgressionRepository)(nil)

// NewProgressionRepository wraps next with a read-through cache.
func NewProgressionRepository(next progression.Repository, cache *Cache, engine *progression.Engine, ttl time.Duration, log *logger.Logger) *ProgressionRepository {
	if engine == nil {
		engine = progression.NewEngine(nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ProgressionRepository{
		next:   next,
		cache:  cache,
		engine: engine,
		ttl:    ttl,
		log:    log.With(logger.Component("progression_cache")),
	}
}

// Create stores the record. Nothing is cached until the first read.
func (r *ProgressionRepository) Create(ctx context.Context, u progression.UserProgression) error {
	return r.next.Create(ctx, u)
}

// Get serves the snapshot from cache when present.
func (r *ProgressionRepository) Get(ctx context.Context, id string) (progression.UserProgression, error) {
	var snap progression.Snapshot
	err := r.cache.Get(ctx, ProgressionKey(id), &snap)
	if err == nil {
		u, restoreErr := r.engine.Restore(snap)
		if restoreErr == nil {
			return u, nil
		}
		err = restoreErr
	}
	if reportable(err) {
		r.log.Warn("cache read failed", logger.UserID(id), logger.Err(err))
	}

	u, err := r.next.Get(ctx, id)
	if err != nil {
		return u, err
	}

	if err := r.cache.Set(ctx, ProgressionKey(id), u.Snapshot(), r.ttl); reportable(err) {
		r.log.Warn("cache write failed", logger.UserID(id), logger.Err(err))
	}
	return u, nil
}

// Save drops the cached copy, then writes through. If the drop fails nothing
// is written, so the cache never holds a snapshot older than the database.
func (r *ProgressionRepository) Save(ctx context.Context, u progression.UserProgression) error {
	key := ProgressionKey(u.ID)
	if err := r.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("progression cache: invalidate %s: %w", u.ID, err)
	}
	if err := r.next.Save(ctx, u); err != nil {
		return err
	}
	evictOnCommit(ctx, r.cache, r.log, u.ID, key)
	return nil
}

// Delete removes the record and its cached copy.
func (r *ProgressionRepository) Delete(ctx context.Context, id string) error {
	key := ProgressionKey(id)
	if err := r.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("progression cache: invalidate %s: %w", id, err)
	}
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	evictOnCommit(ctx, r.cache, r.log, id, key)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GATES
// ══════════════════════════════════════════════════════════════════════════════

// GateRepository caches gate states until the next midnight of the reference
// timezone; after that the cached state would only say "used yesterday".
type GateRepository struct {
	next  gate.Repository
	cache *Cache
	clock timeutil.Clock
	log   *logger.Logger
}

var _ gate.Repository = (*GateRepository)(nil)

// NewGateRepository wraps next with a cache.
func NewGateRepository(next gate.Repository, cache *Cache, clock timeutil.Clock, log *logger.Logger) *GateRepository {
	if log == nil {
		log = logger.Nop()
	}
	return &GateRepository{
		next:  next,
		cache: cache,
		clock: clock,
		log:   log.With(logger.Component("gate_cache")),
	}
}

// Get serves the state from cache when present.
func (r *GateRepository) Get(ctx context.Context, userID string, action gate.Action) (gate.State, error) {
	key := GateKey(userID, string(action))

	var st gate.State
	err := r.cache.Get(ctx, key, &st)
	if err == nil {
		return st, nil
	}
	if reportable(err) {
		r.log.Warn("cache read failed", logger.UserID(userID), logger.Err(err))
	}

	st, err = r.next.Get(ctx, userID, action)
	if err != nil {
		return st, err
	}
	if err := r.store(ctx, key, st); reportable(err) {
		r.log.Warn("cache write failed", logger.UserID(userID), logger.Err(err))
	}
	return st, nil
}

// Save drops the cached state and writes through. A state that cannot be
// dropped is not written: a stale "never triggered" entry would reopen the
// gate for the rest of the day. The next Get caches the committed state.
func (r *GateRepository) Save(ctx context.Context, userID string, action gate.Action, st gate.State) error {
	key := GateKey(userID, string(action))
	if err := r.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("gate cache: invalidate %s: %w", key, err)
	}
	if err := r.next.Save(ctx, userID, action, st); err != nil {
		return err
	}
	evictOnCommit(ctx, r.cache, r.log, userID, key)
	return nil
}

func (r *GateRepository) store(ctx context.Context, key string, st gate.State) error {
	now := r.clock.Now()
	ttl := timeutil.NextMidnight(now, r.clock.Location()).Sub(now)
	if ttl <= 0 {
		return nil
	}
	return r.cache.Set(ctx, key, st, ttl)
}

// evictAttempts bounds the post-write deletes.
const evictAttempts = 3

// evictOnCommit drops key again once the write commits, since a read between
// the two deletes may have cached the old value.
func evictOnCommit(ctx context.Context, cache *Cache, log *logger.Logger, userID, key string) {
	shared.OnCommit(ctx, func(ctx context.Context) {
		evict(ctx, cache, log, userID, key)
	})
}

// evict deletes key, retrying a few times.
func evict(ctx context.Context, cache *Cache, log *logger.Logger, userID, key string) {
	var err error
	for i := 0; i < evictAttempts; i++ {
		if err = cache.Delete(ctx, key); err == nil {
			return
		}
	}
	log.Error("cache eviction failed, entry may be stale until it expires",
		logger.UserID(userID),
		logger.String("key", key),
		logger.Err(err),
	)
}

// reportable filters out misses and calls the breaker skipped.
func reportable(err error) bool {
	return err != nil && !errors.Is(err, ErrCacheMiss) && !Skipped(err)
}

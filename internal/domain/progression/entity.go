// Package progression holds the XP, rank and streak rules applied to a single
// user record. Everything here is pure: callers load a UserProgression, run it
// through the Engine and persist the returned copy.
package progression

import (
	"math"
	"time"

	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// UserProgression is the progression record of one user.
//
// XP and rank are unexported: rank is always derived from XP by the Engine
// and there is no way to set either independently.
type UserProgression struct {
	ID     string
	Mentor string

	StreakDays int
	// LastActivityDate is zero until the first qualifying activity.
	LastActivityDate timeutil.Date

	CreatedAt time.Time

	xp   XP
	rank Rank
}

// InfluenceXP returns the accumulated XP.
func (u UserProgression) InfluenceXP() XP {
	return u.xp
}

// CurrentRank returns the rank implied by the accumulated XP.
func (u UserProgression) CurrentRank() Rank {
	return u.rank
}

// Snapshot is the flat persistence form of a UserProgression. Rank is written
// for convenience of queries but is ignored on restore.
type Snapshot struct {
	ID               string        `json:"id"`
	Mentor           string        `json:"mentor"`
	InfluenceXP      int           `json:"influence_xp"`
	Rank             string        `json:"current_rank"`
	StreakDays       int           `json:"streak_days"`
	LastActivityDate timeutil.Date `json:"last_activity_date"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Snapshot flattens the record for storage.
func (u UserProgression) Snapshot() Snapshot {
	return Snapshot{
		ID:               u.ID,
		Mentor:           u.Mentor,
		InfluenceXP:      int(u.xp),
		Rank:             string(u.rank),
		StreakDays:       u.StreakDays,
		LastActivityDate: u.LastActivityDate,
		CreatedAt:        u.CreatedAt,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Engine applies the rank table to progression records. It holds no state
// besides the table and is safe for concurrent use.
type Engine struct {
	table *RankTable
}

// NewEngine creates an engine over table. A nil table means the default one.
func NewEngine(table *RankTable) *Engine {
	if table == nil {
		table = DefaultRankTable()
	}
	return &Engine{table: table}
}

// Table returns the rank table in use.
func (e *Engine) Table() *RankTable {
	return e.table
}

// RankFor returns the tier containing xp.
func (e *Engine) RankFor(xp XP) RankTier {
	return e.table.RankFor(xp)
}

// ProgressToNext computes progress towards the next tier.
func (e *Engine) ProgressToNext(xp XP) Progress {
	return e.table.ProgressToNext(xp)
}

// NewUser creates a fresh record: no XP, lowest rank, no streak.
func (e *Engine) NewUser(id, mentor string, createdAt time.Time) UserProgression {
	return UserProgression{
		ID:        id,
		Mentor:    mentor,
		CreatedAt: createdAt,
		xp:        0,
		rank:      e.table.RankFor(0).Name,
	}
}

// Restore rebuilds a record from storage, recomputing rank from XP.
func (e *Engine) Restore(s Snapshot) (UserProgression, error) {
	if s.InfluenceXP < 0 {
		return UserProgression{}, shared.Errorf("progression", "Restore", shared.ErrInvalidState,
			"user %s has negative xp %d", s.ID, s.InfluenceXP)
	}
	if s.StreakDays < 0 {
		return UserProgression{}, shared.Errorf("progression", "Restore", shared.ErrInvalidState,
			"user %s has negative streak %d", s.ID, s.StreakDays)
	}

	xp := XP(s.InfluenceXP)
	return UserProgression{
		ID:               s.ID,
		Mentor:           s.Mentor,
		StreakDays:       s.StreakDays,
		LastActivityDate: s.LastActivityDate,
		CreatedAt:        s.CreatedAt,
		xp:               xp,
		rank:             e.table.RankFor(xp).Name,
	}, nil
}

// AddXP returns a copy of u with delta added and rank recomputed.
// delta must be positive.
func (e *Engine) AddXP(u UserProgression, delta XP) (UserProgression, error) {
	if delta <= 0 {
		return u, shared.Errorf("progression", "AddXP", shared.ErrInvalidArgument,
			"xp delta must be positive, got %d", delta)
	}
	if u.xp > XP(math.MaxInt)-delta {
		return u, shared.NewDomainError("progression", "AddXP", shared.ErrInvalidArgument, "xp overflow")
	}

	next := u
	next.xp = u.xp + delta
	next.rank = e.table.RankFor(next.xp).Name
	return next, nil
}

// RankChanged reports whether the rank differs between two versions of a record.
func RankChanged(before, after UserProgression) bool {
	return before.rank != after.rank
}

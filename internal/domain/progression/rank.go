package progression

import (
	"fmt"

	"github.com/imperium-ai/imperium/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// XP is the cumulative influence counter that drives rank.
type XP int

// IsValid checks that XP is non-negative.
func (x XP) IsValid() bool {
	return x >= 0
}

// Rank is the name of a progression tier.
type Rank string

// Default tiers, lowest first.
const (
	RankInitiate   Rank = "Initiate"
	RankStrategist Rank = "Strategist"
	RankDominator  Rank = "Dominator"
	RankEmperor    Rank = "Emperor"
)

// String returns the tier name.
func (r Rank) String() string {
	return string(r)
}

// RankTier is one contiguous XP band of the rank table.
type RankTier struct {
	Name  Rank
	MinXP XP
	// MaxXP is the inclusive upper bound. Ignored when Unbounded is set.
	MaxXP       XP
	Unbounded   bool
	Icon        string
	Description string
}

// Contains reports whether xp falls inside the tier.
func (t RankTier) Contains(xp XP) bool {
	return xp >= t.MinXP && (t.Unbounded || xp <= t.MaxXP)
}

// ══════════════════════════════════════════════════════════════════════════════
// RANK TABLE
// ══════════════════════════════════════════════════════════════════════════════

// RankTable is an ordered, contiguous list of tiers covering [0, ∞).
type RankTable struct {
	tiers []RankTier
}

// DefaultRankTable returns the four-tier table used by the app.
func DefaultRankTable() *RankTable {
	return &RankTable{tiers: []RankTier{
		{Name: RankInitiate, MinXP: 0, MaxXP: 499, Icon: "🌱", Description: "Beginning your journey to power"},
		{Name: RankStrategist, MinXP: 500, MaxXP: 1999, Icon: "⚔️", Description: "Developing strategic thinking"},
		{Name: RankDominator, MinXP: 2000, MaxXP: 4999, Icon: "👑", Description: "Mastering the art of influence"},
		{Name: RankEmperor, MinXP: 5000, Unbounded: true, Icon: "⚡", Description: "Achieved supreme mastery"},
	}}
}

// NewRankTable validates tiers and builds a table from them. Tiers must start
// at 0, be contiguous and ascending, and only the last may be unbounded (and
// it must be).
func NewRankTable(tiers []RankTier) (*RankTable, error) {
	if len(tiers) == 0 {
		return nil, shared.NewDomainError("progression", "NewRankTable", shared.ErrInvalidArgument, "rank table is empty")
	}
	if tiers[0].MinXP != 0 {
		return nil, shared.NewDomainError("progression", "NewRankTable", shared.ErrInvalidArgument, "first tier must start at 0 XP")
	}

	seen := make(map[Rank]bool, len(tiers))
	for i, t := range tiers {
		if t.Name == "" || seen[t.Name] {
			return nil, shared.Errorf("progression", "NewRankTable", shared.ErrInvalidArgument, "tier %d has an empty or duplicate name", i)
		}
		seen[t.Name] = true

		last := i == len(tiers)-1
		if last != t.Unbounded {
			return nil, shared.Errorf("progression", "NewRankTable", shared.ErrInvalidArgument, "only the last tier may be unbounded (tier %q)", t.Name)
		}
		if !last {
			if t.MaxXP < t.MinXP {
				return nil, shared.Errorf("progression", "NewRankTable", shared.ErrInvalidArgument, "tier %q has max below min", t.Name)
			}
			if tiers[i+1].MinXP != t.MaxXP+1 {
				return nil, shared.Errorf("progression", "NewRankTable", shared.ErrInvalidArgument, "tiers %q and %q are not contiguous", t.Name, tiers[i+1].Name)
			}
		}
	}

	cp := make([]RankTier, len(tiers))
	copy(cp, tiers)
	return &RankTable{tiers: cp}, nil
}

// Tiers returns a copy of the tiers, lowest first.
func (t *RankTable) Tiers() []RankTier {
	cp := make([]RankTier, len(t.tiers))
	copy(cp, t.tiers)
	return cp
}

// RankFor returns the tier containing xp. Negative XP maps to the lowest tier.
func (t *RankTable) RankFor(xp XP) RankTier {
	return t.tiers[t.indexFor(xp)]
}

// Order returns the zero-based position of rank in the table, or -1.
func (t *RankTable) Order(rank Rank) int {
	for i, tier := range t.tiers {
		if tier.Name == rank {
			return i
		}
	}
	return -1
}

func (t *RankTable) indexFor(xp XP) int {
	for i := len(t.tiers) - 1; i > 0; i-- {
		if xp >= t.tiers[i].MinXP {
			return i
		}
	}
	return 0
}

// Progress describes how far xp is through its tier.
type Progress struct {
	Tier              RankTier
	PercentWithinTier int
	// XPRemaining and NextTier are nil in the last tier.
	XPRemaining *XP
	NextTier    *RankTier
}

// ProgressToNext computes progress towards the next tier.
func (t *RankTable) ProgressToNext(xp XP) Progress {
	if xp < 0 {
		xp = 0
	}
	i := t.indexFor(xp)
	tier := t.tiers[i]
	if i == len(t.tiers)-1 {
		return Progress{Tier: tier, PercentWithinTier: 100}
	}

	next := t.tiers[i+1]
	remaining := next.MinXP - xp
	return Progress{
		Tier:              tier,
		PercentWithinTier: roundPercent(int(xp-tier.MinXP), int(next.MinXP-tier.MinXP)),
		XPRemaining:       &remaining,
		NextTier:          &next,
	}
}

// roundPercent computes round(100*num/den) for non-negative operands,
// rounding halves up.
func roundPercent(num, den int) int {
	if den <= 0 {
		return 0
	}
	return (200*num + den) / (2 * den)
}

// String renders the tier for logs.
func (t RankTier) String() string {
	if t.Unbounded {
		return fmt.Sprintf("%s[%d,∞)", t.Name, t.MinXP)
	}
	return fmt.Sprintf("%s[%d,%d]", t.Name, t.MinXP, t.MaxXP)
}

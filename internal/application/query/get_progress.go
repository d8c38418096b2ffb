// Package query contains the read operations. Queries never change state;
// derived values such as the effective streak are computed against the
// clock at read time.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imperium-ai/imperium/internal/domain/gate"
	"github.com/imperium-ai/imperium/internal/domain/mentor"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/internal/domain/task"
	"github.com/imperium-ai/imperium/internal/domain/trial"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// The dashboard view: rank, progress to the next tier, streak, council
// availability and completion counts.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery identifies the user.
type GetProgressQuery struct {
	UserID string
}

// Validate checks the query.
func (q GetProgressQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}

// ProgressDTO is the progress overview.
type ProgressDTO struct {
	// ─────────────────────────────────────────────────────────────────────────
	// Identity
	// ─────────────────────────────────────────────────────────────────────────

	UserID     string `json:"user_id"`
	Mentor     string `json:"mentor"`
	MentorName string `json:"mentor_name"`

	// ─────────────────────────────────────────────────────────────────────────
	// Rank
	// ─────────────────────────────────────────────────────────────────────────

	InfluenceXP       int    `json:"influence_xp"`
	Rank              string `json:"rank"`
	PercentWithinTier int    `json:"percent_within_tier"`
	// NextRank and XPToNext are empty in the top tier.
	NextRank string `json:"next_rank,omitempty"`
	XPToNext *int   `json:"xp_to_next,omitempty"`

	// ─────────────────────────────────────────────────────────────────────────
	// Streak
	// ─────────────────────────────────────────────────────────────────────────

	StreakDays  int    `json:"streak_days"`
	StreakLabel string `json:"streak_label"`

	// ─────────────────────────────────────────────────────────────────────────
	// Council
	// ─────────────────────────────────────────────────────────────────────────

	CanSummonCouncil   bool      `json:"can_summon_council"`
	CouncilAvailableAt time.Time `json:"council_available_at"`

	// ─────────────────────────────────────────────────────────────────────────
	// Activity
	// ─────────────────────────────────────────────────────────────────────────

	TrialsCompleted int `json:"trials_completed"`
	TrialsTotal     int `json:"trials_total"`
	TasksTodo       int `json:"tasks_todo"`
	TasksDone       int `json:"tasks_done"`
	TasksSkipped    int `json:"tasks_skipped"`
	TasksOverdue    int `json:"tasks_overdue"`
}

// GetProgressHandler handles GetProgressQuery.
type GetProgressHandler struct {
	engine     *progression.Engine
	curriculum *trial.Curriculum
	users      progression.Repository
	gates      gate.Repository
	records    trial.ProgressRepository
	tasks      task.Repository
	gate       *gate.DailyGate
	clock      timeutil.Clock
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(
	engine *progression.Engine,
	curriculum *trial.Curriculum,
	users progression.Repository,
	gates gate.Repository,
	records trial.ProgressRepository,
	tasks task.Repository,
	clock timeutil.Clock,
) *GetProgressHandler {
	return &GetProgressHandler{
		engine:     engine,
		curriculum: curriculum,
		users:      users,
		gates:      gates,
		records:    records,
		tasks:      tasks,
		gate:       gate.NewDailyGate(gate.ActionCouncilSummon, clock.Location()),
		clock:      clock,
	}
}

// Handle executes the query.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*ProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetProgress", shared.ErrInvalidArgument, err.Error(), err)
	}

	u, err := h.users.Get(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}

	now := h.clock.Now()
	today := h.clock.Today()
	p := h.engine.ProgressToNext(u.InfluenceXP())
	streak := progression.EffectiveStreak(u, today)

	dto := &ProgressDTO{
		UserID:            u.ID,
		Mentor:            u.Mentor,
		MentorName:        mentor.Resolve(mentor.ID(u.Mentor)).Name,
		InfluenceXP:       int(u.InfluenceXP()),
		Rank:              string(u.CurrentRank()),
		PercentWithinTier: p.PercentWithinTier,
		StreakDays:        streak,
		StreakLabel:       progression.StreakLabel(streak),
	}
	if p.NextTier != nil {
		dto.NextRank = string(p.NextTier.Name)
		remaining := int(*p.XPRemaining)
		dto.XPToNext = &remaining
	}

	st, err := h.gates.Get(ctx, u.ID, h.gate.Action())
	if err != nil {
		return nil, fmt.Errorf("get progress: load gate: %w", err)
	}
	dto.CanSummonCouncil = h.gate.CanTrigger(st, now)
	dto.CouncilAvailableAt = h.gate.NextAvailable(st, now)

	if h.curriculum != nil {
		records, err := h.records.List(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("get progress: list trials: %w", err)
		}
		dto.TrialsCompleted = trial.CompletedCount(records)
		dto.TrialsTotal = len(h.curriculum.Trials())
	}

	tasks, err := h.tasks.ListByUser(ctx, u.ID, task.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("get progress: list tasks: %w", err)
	}
	counts := task.CountByStatus(tasks)
	dto.TasksTodo = counts.Todo
	dto.TasksDone = counts.Done
	dto.TasksSkipped = counts.Skipped
	for _, t := range tasks {
		if t.IsOverdue(today) {
			dto.TasksOverdue++
		}
	}

	return dto, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/imperium-ai/imperium/internal/domain/gate"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressionRepository implements progression.Repository for PostgreSQL.
type ProgressionRepository struct {
	q       Querier
	engine  *progression.Engine
	timeout time.Duration
}

// NewProgressionRepository creates a new ProgressionRepository.
func NewProgressionRepository(q Querier, engine *progression.Engine) *ProgressionRepository {
	if engine == nil {
		engine = progression.NewEngine(nil)
	}
	return &ProgressionRepository{q: q, engine: engine}
}

// Create inserts a new record.
func (r *ProgressionRepository) Create(ctx context.Context, u progression.UserProgression) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	s := u.Snapshot()
	query := `
		INSERT INTO user_progression (
			id, mentor, influence_xp, current_rank, streak_days,
			last_activity_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`

	_, err := querier(ctx, r.q).Exec(ctx, query,
		s.ID,
		s.Mentor,
		int64(s.InfluenceXP),
		s.Rank,
		s.StreakDays,
		toPgDate(s.LastActivityDate),
		s.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.Errorf("postgres", "Progression.Create", shared.ErrAlreadyExists, "user %s already registered", s.ID)
		}
		return fmt.Errorf("failed to create progression: %w", err)
	}

	return nil
}

// Get loads a record by user ID.
func (r *ProgressionRepository) Get(ctx context.Context, id string) (progression.UserProgression, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, mentor, influence_xp, current_rank, streak_days, last_activity_date, created_at
		FROM user_progression
		WHERE id = $1
	`

	var (
		s    progression.Snapshot
		xp   int64
		last pgtype.Date
	)
	err := querier(ctx, r.q).QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.Mentor,
		&xp,
		&s.Rank,
		&s.StreakDays,
		&last,
		&s.CreatedAt,
	)
	if IsNoRows(err) {
		return progression.UserProgression{}, shared.Errorf("postgres", "Progression.Get", shared.ErrNotFound, "user %s", id)
	}
	if err != nil {
		return progression.UserProgression{}, fmt.Errorf("failed to scan progression: %w", err)
	}

	s.InfluenceXP = int(xp)
	s.LastActivityDate = fromPgDate(last)
	return r.engine.Restore(s)
}

// Save overwrites an existing record.
func (r *ProgressionRepository) Save(ctx context.Context, u progression.UserProgression) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	s := u.Snapshot()
	query := `
		UPDATE user_progression SET
			mentor = $1,
			influence_xp = $2,
			current_rank = $3,
			streak_days = $4,
			last_activity_date = $5,
			updated_at = $6
		WHERE id = $7
	`

	result, err := querier(ctx, r.q).Exec(ctx, query,
		s.Mentor,
		int64(s.InfluenceXP),
		s.Rank,
		s.StreakDays,
		toPgDate(s.LastActivityDate),
		time.Now().UTC(),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update progression: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.Errorf("postgres", "Progression.Save", shared.ErrNotFound, "user %s", s.ID)
	}

	return nil
}

// Delete removes the record; owned rows go with it through ON DELETE CASCADE.
func (r *ProgressionRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	result, err := querier(ctx, r.q).Exec(ctx, "DELETE FROM user_progression WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete progression: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.Errorf("postgres", "Progression.Delete", shared.ErrNotFound, "user %s", id)
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GATE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// GateRepository implements gate.Repository for PostgreSQL.
type GateRepository struct {
	q       Querier
	timeout time.Duration
}

// NewGateRepository creates a new GateRepository.
func NewGateRepository(q Querier) *GateRepository {
	return &GateRepository{q: q}
}

// Get returns the stored gate state, or the zero State.
func (r *GateRepository) Get(ctx context.Context, userID string, action gate.Action) (gate.State, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var last *time.Time
	err := querier(ctx, r.q).QueryRow(ctx,
		"SELECT last_triggered_at FROM gate_states WHERE user_id = $1 AND action = $2",
		userID, string(action),
	).Scan(&last)
	if IsNoRows(err) {
		return gate.State{}, nil
	}
	if err != nil {
		return gate.State{}, fmt.Errorf("failed to scan gate state: %w", err)
	}

	return gate.State{LastTriggeredAt: last}, nil
}

// Save upserts the gate state.
func (r *GateRepository) Save(ctx context.Context, userID string, action gate.Action, s gate.State) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO gate_states (user_id, action, last_triggered_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, action) DO UPDATE SET last_triggered_at = EXCLUDED.last_triggered_at
	`

	if _, err := querier(ctx, r.q).Exec(ctx, query, userID, string(action), s.LastTriggeredAt); err != nil {
		return fmt.Errorf("failed to save gate state: %w", err)
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func toPgDate(d timeutil.Date) pgtype.Date {
	if d.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.In(time.UTC), Valid: true}
}

func fromPgDate(d pgtype.Date) timeutil.Date {
	if !d.Valid {
		return timeutil.Date{}
	}
	return timeutil.DateOf(d.Time, time.UTC)
}

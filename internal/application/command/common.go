// Package command contains the write operations. Every handler follows the
// same order: validate, load, run the domain rules, persist, and only then
// publish events.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/pkg/logger"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateCommand runs struct tag validation and maps failures to
// InvalidArgument.
func validateCommand(op string, cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError("command", op, shared.ErrInvalidArgument, "validation failed", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldError(fe))
	}
	return shared.NewDomainError("command", op, shared.ErrInvalidArgument, strings.Join(msgs, "; "))
}

func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// IDS
// ══════════════════════════════════════════════════════════════════════════════

// IDGenerator produces entity ids.
type IDGenerator func() string

// NewUUID is the default IDGenerator.
func NewUUID() string {
	return uuid.NewString()
}

// ══════════════════════════════════════════════════════════════════════════════
// FEATURES
// ══════════════════════════════════════════════════════════════════════════════

// Features reports runtime feature switches. *config.FeatureFlags implements it.
type Features interface {
	IsEnabled(name string) bool
}

func enabled(f Features, name string) bool {
	return f == nil || f.IsEnabled(name)
}

func requireFeature(f Features, name, op string) error {
	if enabled(f, name) {
		return nil
	}
	return shared.Errorf("command", op, shared.ErrFeatureDisabled, "%s are disabled", name)
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

// Transactor runs fn so that every repository write made with the context
// it receives commits together or not at all.
type Transactor interface {
	Atomically(ctx context.Context, fn func(ctx context.Context) error) error
}

// noTx runs fn directly. Used when no store supports transactions.
type noTx struct{}

func (noTx) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARDS
// ══════════════════════════════════════════════════════════════════════════════

// Reward describes the progression side effects of an activity.
type Reward struct {
	// XP to add; zero adds nothing.
	XP int
	// Reason labels the XP in events and metrics.
	Reason string
	// TouchStreak counts the activity for the daily streak.
	TouchStreak bool
}

// RewardOutcome is the persisted result of applying a Reward.
type RewardOutcome struct {
	Before progression.UserProgression
	After  progression.UserProgression
	Streak progression.StreakChange
	Events []shared.Event
}

// RankChanged reports whether the reward moved the user to another tier.
func (o RewardOutcome) RankChanged() bool {
	return progression.RankChanged(o.Before, o.After)
}

// XPAwarded returns the XP actually added.
func (o RewardOutcome) XPAwarded() int {
	return int(o.After.InfluenceXP() - o.Before.InfluenceXP())
}

// Rewarder applies rewards to progression records. It is shared by every
// handler that grants XP or counts towards the streak.
type Rewarder struct {
	engine *progression.Engine
	users  progression.Repository
	clock  timeutil.Clock
}

// NewRewarder creates a Rewarder.
func NewRewarder(engine *progression.Engine, users progression.Repository, clock timeutil.Clock) *Rewarder {
	return &Rewarder{engine: engine, users: users, clock: clock}
}

// Apply runs the reward against a loaded record and saves the result. Events
// are returned, not published, so callers can publish after all their own
// writes succeed.
func (r *Rewarder) Apply(ctx context.Context, u progression.UserProgression, rw Reward) (RewardOutcome, error) {
	out := RewardOutcome{Before: u, After: u}
	now := r.clock.Now()

	next := u
	if rw.XP > 0 {
		var err error
		next, err = r.engine.AddXP(next, progression.XP(rw.XP))
		if err != nil {
			return out, err
		}
	}
	if rw.TouchStreak {
		next, out.Streak = r.engine.RecordActivity(next, r.clock.Today())
	}

	if rw.XP <= 0 && out.Streak == progression.StreakUnchanged {
		return out, nil
	}

	if err := r.users.Save(ctx, next); err != nil {
		return out, fmt.Errorf("save progression: %w", err)
	}
	out.After = next

	if rw.XP > 0 {
		out.Events = append(out.Events, shared.XPGainedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventXPGained, u.ID, now),
			OldXP:     int(u.InfluenceXP()),
			NewXP:     int(next.InfluenceXP()),
			Delta:     rw.XP,
			Reason:    rw.Reason,
		})
	}
	if progression.RankChanged(u, next) {
		out.Events = append(out.Events, shared.RankChangedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventRankChanged, u.ID, now),
			OldRank:   string(u.CurrentRank()),
			NewRank:   string(next.CurrentRank()),
		})
	}
	switch {
	case out.Streak == progression.StreakExtended,
		out.Streak == progression.StreakStarted && u.StreakDays == 0:
		out.Events = append(out.Events, shared.StreakEvent{
			BaseEvent:    shared.NewBaseEvent(shared.EventStreakExtended, u.ID, now),
			PreviousDays: u.StreakDays,
			CurrentDays:  next.StreakDays,
		})
	case out.Streak == progression.StreakStarted:
		out.Events = append(out.Events, shared.StreakEvent{
			BaseEvent:    shared.NewBaseEvent(shared.EventStreakReset, u.ID, now),
			PreviousDays: u.StreakDays,
			CurrentDays:  next.StreakDays,
		})
	}

	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PUBLISHING
// ══════════════════════════════════════════════════════════════════════════════

// publishAll publishes events after the state change is stored. A publish
// failure is logged and never undoes the change.
func publishAll(pub shared.EventPublisher, log *logger.Logger, events []shared.Event) {
	if pub == nil {
		return
	}
	for _, e := range events {
		if err := pub.Publish(e); err != nil {
			log.Warn("failed to publish event",
				logger.String("event_type", string(e.EventType())),
				logger.UserID(e.AggregateID()),
				logger.Err(err),
			)
		}
	}
}

// loadUser wraps the repository lookup with a friendlier not-found message.
func loadUser(ctx context.Context, users progression.Repository, op, id string) (progression.UserProgression, error) {
	u, err := users.Get(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return u, shared.WrapError("command", op, shared.ErrNotFound, "user is not registered", err)
		}
		return u, fmt.Errorf("%s: load user: %w", op, err)
	}
	return u, nil
}

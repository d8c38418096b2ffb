package command

import (
	"context"
	"fmt"

	"github.com/imperium-ai/imperium/config"
	"github.com/imperium-ai/imperium/internal/domain/journal"
	"github.com/imperium-ai/imperium/internal/domain/mentor"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/internal/domain/trial"
	"github.com/imperium-ai/imperium/pkg/logger"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT TRIAL COMMAND
// Grades a quiz. A pass counts for the streak; only the first pass pays XP
// and writes mentor feedback to the journal.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitTrialCommand contains a quiz submission.
type SubmitTrialCommand struct {
	UserID  string `validate:"required"`
	TrialID int    `validate:"gt=0"`
	Answers trial.Answers
}

// SubmitTrialResult reports the grade and its side effects.
type SubmitTrialResult struct {
	Trial     trial.Trial
	Result    trial.Result
	Record    trial.Record
	FirstPass bool
	Feedback  string
	Outcome   RewardOutcome
}

// SubmitTrialHandler handles SubmitTrialCommand.
type SubmitTrialHandler struct {
	curriculum   *trial.Curriculum
	users        progression.Repository
	records      trial.ProgressRepository
	journal      journal.Repository
	rewarder     *Rewarder
	tx           Transactor
	clock        timeutil.Clock
	newID        IDGenerator
	features     Features
	passingScore int
	publisher    shared.EventPublisher
	logger       *logger.Logger
}

// SubmitTrialConfig holds grading rules.
type SubmitTrialConfig struct {
	// PassingScore applies to trials that do not set their own threshold.
	PassingScore int
}

// NewSubmitTrialHandler creates a new SubmitTrialHandler.
func NewSubmitTrialHandler(
	curriculum *trial.Curriculum,
	users progression.Repository,
	records trial.ProgressRepository,
	entries journal.Repository,
	rewarder *Rewarder,
	tx Transactor,
	clock timeutil.Clock,
	newID IDGenerator,
	features Features,
	cfg SubmitTrialConfig,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *SubmitTrialHandler {
	if newID == nil {
		newID = NewUUID
	}
	if tx == nil {
		tx = noTx{}
	}
	if cfg.PassingScore <= 0 {
		cfg.PassingScore = trial.DefaultPassingScore
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SubmitTrialHandler{
		curriculum:   curriculum,
		users:        users,
		records:      records,
		journal:      entries,
		rewarder:     rewarder,
		tx:           tx,
		clock:        clock,
		newID:        newID,
		features:     features,
		passingScore: cfg.PassingScore,
		publisher:    publisher,
		logger:       log.With(logger.Component("submit_trial")),
	}
}

// Handle executes the command. Grading errors leave all state untouched.
func (h *SubmitTrialHandler) Handle(ctx context.Context, cmd SubmitTrialCommand) (*SubmitTrialResult, error) {
	if err := validateCommand("SubmitTrial", cmd); err != nil {
		return nil, err
	}

	u, err := loadUser(ctx, h.users, "SubmitTrial", cmd.UserID)
	if err != nil {
		return nil, err
	}

	t, err := h.curriculum.Trial(cmd.TrialID)
	if err != nil {
		return nil, err
	}

	records, err := h.records.List(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("submit trial: list records: %w", err)
	}
	if err := trial.EnsureUnlocked(h.curriculum, t.ID, records); err != nil {
		return nil, err
	}

	threshold := h.passingScore
	if t.PassingScore > 0 {
		threshold = t.PassingScore
	}
	res, err := trial.Grade(t.Questions, cmd.Answers, threshold)
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	prev, ok := records[t.ID]
	if !ok {
		prev = trial.Record{UserID: u.ID, TrialID: t.ID}
	}
	rec, firstPass := prev.Apply(res, now)

	out := &SubmitTrialResult{Trial: t, Result: res, Record: rec, FirstPass: firstPass}
	out.Outcome = RewardOutcome{Before: u, After: u}

	var feedback *journal.Entry
	if firstPass && enabled(h.features, config.FeatureJournal) {
		name := mentor.Resolve(mentor.ID(u.Mentor)).Name
		out.Feedback = trial.MentorFeedback(name, t.Title, res)
		e, err := journal.NewEntry(h.newID(), u.ID, journal.TypeMentorFeedback, trial.FeedbackTitle(t.Title), out.Feedback, now)
		if err != nil {
			return nil, err
		}
		feedback = e
	}

	err = h.tx.Atomically(ctx, func(ctx context.Context) error {
		if err := h.records.Save(ctx, rec); err != nil {
			return fmt.Errorf("save record: %w", err)
		}
		if res.Passed {
			rw := Reward{Reason: "trial", TouchStreak: true}
			if firstPass {
				rw.XP = t.Reward()
			}
			var err error
			if out.Outcome, err = h.rewarder.Apply(ctx, u, rw); err != nil {
				return err
			}
		}
		if feedback != nil {
			if err := h.journal.Add(ctx, feedback); err != nil {
				return fmt.Errorf("save feedback: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("submit trial: %w", err)
	}

	eventType := shared.EventTrialFailed
	if res.Passed {
		eventType = shared.EventTrialPassed
	}
	events := append([]shared.Event{shared.TrialAttemptedEvent{
		BaseEvent: shared.NewBaseEvent(eventType, u.ID, now),
		TrialID:   t.ID,
		Score:     res.Score,
	}}, out.Outcome.Events...)
	publishAll(h.publisher, h.logger, events)

	h.logger.Info("trial graded",
		logger.UserID(u.ID),
		logger.Int("trial_id", t.ID),
		logger.Int("score", res.Score),
		logger.Bool("passed", res.Passed),
		logger.Bool("first_pass", firstPass),
	)
	return out, nil
}

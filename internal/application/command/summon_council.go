package command

import (
	"context"
	"fmt"
	"time"

	"github.com/imperium-ai/imperium/config"
	"github.com/imperium-ai/imperium/internal/domain/council"
	"github.com/imperium-ai/imperium/internal/domain/gate"
	"github.com/imperium-ai/imperium/internal/domain/journal"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/internal/domain/task"
	"github.com/imperium-ai/imperium/pkg/logger"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUMMON COUNCIL COMMAND
// Once per calendar day: all mentors answer a dilemma, then the verdict.
// ══════════════════════════════════════════════════════════════════════════════

// SummonCouncilCommand contains the dilemma and follow-up options.
type SummonCouncilCommand struct {
	UserID  string `validate:"required"`
	Dilemma string

	// CreateTasks adds the verdict tasks to the user's task list.
	CreateTasks bool

	// SaveToJournal stores the full case as a council_verdict entry.
	SaveToJournal bool
}

// SummonCouncilResult reports the stored case and its side effects.
type SummonCouncilResult struct {
	Case          council.Case
	Tasks         []*task.Task
	JournalEntry  *journal.Entry
	NextAvailable time.Time
	Outcome       RewardOutcome
}

// SummonCouncilConfig holds council rules.
type SummonCouncilConfig struct {
	XPPerCouncil int
	Limits       council.Limits
}

// DefaultXPPerCouncil is the XP granted for a summon.
const DefaultXPPerCouncil = 50

// SummonCouncilHandler handles SummonCouncilCommand.
type SummonCouncilHandler struct {
	users     progression.Repository
	cases     council.Repository
	gates     gate.Repository
	tasks     task.Repository
	journal   journal.Repository
	gate      *gate.DailyGate
	rewarder  *Rewarder
	tx        Transactor
	clock     timeutil.Clock
	newID     IDGenerator
	features  Features
	cfg       SummonCouncilConfig
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// NewSummonCouncilHandler creates a new SummonCouncilHandler. The daily
// gate uses the clock's reference timezone.
func NewSummonCouncilHandler(
	users progression.Repository,
	cases council.Repository,
	gates gate.Repository,
	tasks task.Repository,
	entries journal.Repository,
	rewarder *Rewarder,
	tx Transactor,
	clock timeutil.Clock,
	newID IDGenerator,
	features Features,
	cfg SummonCouncilConfig,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *SummonCouncilHandler {
	if newID == nil {
		newID = NewUUID
	}
	if tx == nil {
		tx = noTx{}
	}
	if cfg.XPPerCouncil <= 0 {
		cfg.XPPerCouncil = DefaultXPPerCouncil
	}
	if cfg.Limits.Min <= 0 {
		cfg.Limits = council.DefaultLimits()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SummonCouncilHandler{
		users:     users,
		cases:     cases,
		gates:     gates,
		tasks:     tasks,
		journal:   entries,
		gate:      gate.NewDailyGate(gate.ActionCouncilSummon, clock.Location()),
		rewarder:  rewarder,
		tx:        tx,
		clock:     clock,
		newID:     newID,
		features:  features,
		cfg:       cfg,
		publisher: publisher,
		logger:    log.With(logger.Component("council")),
	}
}

// Handle executes the command.
func (h *SummonCouncilHandler) Handle(ctx context.Context, cmd SummonCouncilCommand) (*SummonCouncilResult, error) {
	if err := requireFeature(h.features, config.FeatureCouncil, "SummonCouncil"); err != nil {
		return nil, err
	}
	if err := validateCommand("SummonCouncil", cmd); err != nil {
		return nil, err
	}
	if err := h.cfg.Limits.ValidateDilemma(cmd.Dilemma); err != nil {
		return nil, err
	}

	u, err := loadUser(ctx, h.users, "SummonCouncil", cmd.UserID)
	if err != nil {
		return nil, err
	}

	state, err := h.gates.Get(ctx, u.ID, h.gate.Action())
	if err != nil {
		return nil, fmt.Errorf("summon council: load gate: %w", err)
	}

	now := h.clock.Now()
	if !h.gate.CanTrigger(state, now) {
		next := h.gate.NextAvailable(state, now)
		publishAll(h.publisher, h.logger, []shared.Event{shared.CouncilDeniedEvent{
			BaseEvent:     shared.NewBaseEvent(shared.EventCouncilDenied, u.ID, now),
			NextAvailable: next,
		}})
		return nil, shared.Errorf("command", "SummonCouncil", shared.ErrGateExceeded,
			"the council has already convened today, next session at %s", next.Format(time.RFC3339))
	}

	c := council.NewCase(h.newID(), u.ID, cmd.Dilemma, now)
	nextState, err := h.gate.RecordTrigger(state, now)
	if err != nil {
		return nil, err
	}

	out := &SummonCouncilResult{
		Case:          c,
		NextAvailable: h.gate.NextAvailable(nextState, now),
	}

	if cmd.CreateTasks && enabled(h.features, config.FeatureTasks) {
		for _, title := range c.VerdictTasks {
			t, err := task.NewTask(h.newID(), u.ID, title, "", task.SourceCouncil, council.TaskSourceName, timeutil.Date{}, now)
			if err != nil {
				return nil, err
			}
			out.Tasks = append(out.Tasks, t)
		}
	}

	var entry *journal.Entry
	if cmd.SaveToJournal && enabled(h.features, config.FeatureJournal) {
		e, err := journal.NewEntry(h.newID(), u.ID, journal.TypeCouncilVerdict,
			c.JournalTitle(h.clock.Location()), c.JournalContent(), now)
		if err != nil {
			return nil, err
		}
		entry = e
	}

	err = h.tx.Atomically(ctx, func(ctx context.Context) error {
		if err := h.cases.Save(ctx, c); err != nil {
			return fmt.Errorf("save case: %w", err)
		}
		if err := h.gates.Save(ctx, u.ID, h.gate.Action(), nextState); err != nil {
			return fmt.Errorf("save gate: %w", err)
		}
		var err error
		if out.Outcome, err = h.rewarder.Apply(ctx, u, Reward{XP: h.cfg.XPPerCouncil, Reason: "council"}); err != nil {
			return err
		}
		for _, t := range out.Tasks {
			if err := h.tasks.Save(ctx, t); err != nil {
				return fmt.Errorf("save task: %w", err)
			}
		}
		if entry != nil {
			if err := h.journal.Add(ctx, entry); err != nil {
				return fmt.Errorf("save journal: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("summon council: %w", err)
	}
	out.JournalEntry = entry

	events := append([]shared.Event{shared.CouncilSummonedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventCouncilSummoned, u.ID, now),
		CaseID:    c.ID,
	}}, out.Outcome.Events...)
	publishAll(h.publisher, h.logger, events)

	h.logger.Info("council summoned",
		logger.UserID(u.ID),
		logger.String("case_id", c.ID),
		logger.Int("tasks", len(out.Tasks)),
	)
	return out, nil
}

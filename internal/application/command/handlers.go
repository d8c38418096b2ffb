package command

import (
	"github.com/imperium-ai/imperium/internal/domain/council"
	"github.com/imperium-ai/imperium/internal/domain/gate"
	"github.com/imperium-ai/imperium/internal/domain/journal"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/internal/domain/task"
	"github.com/imperium-ai/imperium/internal/domain/trial"
	"github.com/imperium-ai/imperium/pkg/logger"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// Rules are the tunable progression rules.
type Rules struct {
	XPPerTask    int
	XPPerCouncil int
	PassingScore int
	Dilemma      council.Limits
}

// DefaultRules returns the standard rules.
func DefaultRules() Rules {
	return Rules{
		XPPerTask:    DefaultXPPerTask,
		XPPerCouncil: DefaultXPPerCouncil,
		PassingScore: trial.DefaultPassingScore,
		Dilemma:      council.DefaultLimits(),
	}
}

// Deps are the collaborators shared by all command handlers.
type Deps struct {
	Engine     *progression.Engine
	Curriculum *trial.Curriculum

	Users   progression.Repository
	Gates   gate.Repository
	Trials  trial.ProgressRepository
	Tasks   task.Repository
	Journal journal.Repository
	Council council.Repository

	// Tx groups the writes of one command. Nil runs them one by one.
	Tx Transactor

	Clock     timeutil.Clock
	NewID     IDGenerator
	Features  Features
	Rules     Rules
	Publisher shared.EventPublisher
	Logger    *logger.Logger
}

// Handlers bundles every command handler.
type Handlers struct {
	RegisterUser  *RegisterUserHandler
	ChangeMentor  *ChangeMentorHandler
	Tasks         *TaskHandler
	SubmitTrial   *SubmitTrialHandler
	SummonCouncil *SummonCouncilHandler
	Journal       *JournalHandler
}

// NewHandlers wires all command handlers from d.
func NewHandlers(d Deps) *Handlers {
	if d.Publisher == nil {
		d.Publisher = shared.NopPublisher{}
	}
	rewarder := NewRewarder(d.Engine, d.Users, d.Clock)

	return &Handlers{
		RegisterUser: NewRegisterUserHandler(d.Engine, d.Users, d.Clock, d.NewID, d.Publisher, d.Logger),
		ChangeMentor: NewChangeMentorHandler(d.Users, d.Logger),
		Tasks: NewTaskHandler(d.Users, d.Tasks, rewarder, d.Tx, d.Clock, d.NewID, d.Features,
			TaskHandlerConfig{XPPerTask: d.Rules.XPPerTask}, d.Publisher, d.Logger),
		SubmitTrial: NewSubmitTrialHandler(d.Curriculum, d.Users, d.Trials, d.Journal, rewarder, d.Tx, d.Clock, d.NewID, d.Features,
			SubmitTrialConfig{PassingScore: d.Rules.PassingScore}, d.Publisher, d.Logger),
		SummonCouncil: NewSummonCouncilHandler(d.Users, d.Council, d.Gates, d.Tasks, d.Journal, rewarder, d.Tx, d.Clock, d.NewID, d.Features,
			SummonCouncilConfig{XPPerCouncil: d.Rules.XPPerCouncil, Limits: d.Rules.Dilemma}, d.Publisher, d.Logger),
		Journal: NewJournalHandler(d.Users, d.Journal, d.Clock, d.NewID, d.Features, d.Logger),
	}
}

package command

import (
	"context"
	"fmt"

	"github.com/imperium-ai/imperium/internal/domain/mentor"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/pkg/logger"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER USER COMMAND
// Creates a fresh progression record: no XP, lowest rank, no streak.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterUserCommand contains the data to create a user.
type RegisterUserCommand struct {
	// UserID is optional; a UUID is generated when empty.
	UserID string `validate:"omitempty,max=64"`

	// Mentor is the primary mentor; empty means the default.
	Mentor string `validate:"omitempty,oneof=machiavelli napoleon aurelius"`
}

// RegisterUserResult contains the created record.
type RegisterUserResult struct {
	User progression.UserProgression
}

// RegisterUserHandler handles RegisterUserCommand.
type RegisterUserHandler struct {
	engine    *progression.Engine
	users     progression.Repository
	clock     timeutil.Clock
	newID     IDGenerator
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// NewRegisterUserHandler creates a new RegisterUserHandler.
func NewRegisterUserHandler(
	engine *progression.Engine,
	users progression.Repository,
	clock timeutil.Clock,
	newID IDGenerator,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *RegisterUserHandler {
	if newID == nil {
		newID = NewUUID
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RegisterUserHandler{
		engine:    engine,
		users:     users,
		clock:     clock,
		newID:     newID,
		publisher: publisher,
		logger:    log.With(logger.Component("register_user")),
	}
}

// Handle executes the command.
func (h *RegisterUserHandler) Handle(ctx context.Context, cmd RegisterUserCommand) (*RegisterUserResult, error) {
	if err := validateCommand("RegisterUser", cmd); err != nil {
		return nil, err
	}

	id := cmd.UserID
	if id == "" {
		id = h.newID()
	}
	m := mentor.Default
	if cmd.Mentor != "" {
		m = mentor.ID(cmd.Mentor)
	}

	now := h.clock.Now()
	u := h.engine.NewUser(id, string(m), now)
	if err := h.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}

	h.logger.Info("user registered", logger.UserID(id), logger.String("mentor", string(m)))
	publishAll(h.publisher, h.logger, []shared.Event{shared.UserRegisteredEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventUserRegistered, id, now),
		Mentor:    string(m),
	}})

	return &RegisterUserResult{User: u}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CHANGE MENTOR COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ChangeMentorCommand switches the user's primary mentor.
type ChangeMentorCommand struct {
	UserID string `validate:"required"`
	Mentor string `validate:"required,oneof=machiavelli napoleon aurelius"`
}

// ChangeMentorHandler handles ChangeMentorCommand.
type ChangeMentorHandler struct {
	users  progression.Repository
	logger *logger.Logger
}

// NewChangeMentorHandler creates a new ChangeMentorHandler.
func NewChangeMentorHandler(users progression.Repository, log *logger.Logger) *ChangeMentorHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ChangeMentorHandler{users: users, logger: log.With(logger.Component("change_mentor"))}
}

// Handle executes the command.
func (h *ChangeMentorHandler) Handle(ctx context.Context, cmd ChangeMentorCommand) (progression.UserProgression, error) {
	if err := validateCommand("ChangeMentor", cmd); err != nil {
		return progression.UserProgression{}, err
	}

	u, err := loadUser(ctx, h.users, "ChangeMentor", cmd.UserID)
	if err != nil {
		return u, err
	}
	if u.Mentor == cmd.Mentor {
		return u, nil
	}

	u.Mentor = cmd.Mentor
	if err := h.users.Save(ctx, u); err != nil {
		return u, fmt.Errorf("change mentor: %w", err)
	}

	h.logger.Info("mentor changed", logger.UserID(u.ID), logger.String("mentor", cmd.Mentor))
	return u, nil
}

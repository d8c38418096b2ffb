package command

import (
	"context"
	"fmt"

	"github.com/imperium-ai/imperium/config"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/internal/domain/task"
	"github.com/imperium-ai/imperium/pkg/logger"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASK COMMANDS
// Daily to-dos. Completing one grants XP and counts for the streak.
// ══════════════════════════════════════════════════════════════════════════════

// CreateTaskCommand adds a manual task.
type CreateTaskCommand struct {
	UserID      string `validate:"required"`
	Title       string `validate:"max=255"`
	Description string `validate:"max=2000"`
	// DueDate is optional, YYYY-MM-DD.
	DueDate string `validate:"omitempty,datetime=2006-01-02"`
}

// TaskCommand addresses one task of a user.
type TaskCommand struct {
	UserID string `validate:"required"`
	TaskID string `validate:"required"`
}

// CompleteTaskResult reports the task and the progression outcome.
type CompleteTaskResult struct {
	Task    *task.Task
	Outcome RewardOutcome
}

// TaskHandler handles all task commands.
type TaskHandler struct {
	users     progression.Repository
	tasks     task.Repository
	rewarder  *Rewarder
	tx        Transactor
	clock     timeutil.Clock
	newID     IDGenerator
	features  Features
	xpPerTask int
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// TaskHandlerConfig holds task rules.
type TaskHandlerConfig struct {
	XPPerTask int
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(
	users progression.Repository,
	tasks task.Repository,
	rewarder *Rewarder,
	tx Transactor,
	clock timeutil.Clock,
	newID IDGenerator,
	features Features,
	cfg TaskHandlerConfig,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *TaskHandler {
	if newID == nil {
		newID = NewUUID
	}
	if tx == nil {
		tx = noTx{}
	}
	if cfg.XPPerTask <= 0 {
		cfg.XPPerTask = DefaultXPPerTask
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TaskHandler{
		users:     users,
		tasks:     tasks,
		rewarder:  rewarder,
		tx:        tx,
		clock:     clock,
		newID:     newID,
		features:  features,
		xpPerTask: cfg.XPPerTask,
		publisher: publisher,
		logger:    log.With(logger.Component("tasks")),
	}
}

// DefaultXPPerTask is the XP granted for completing a task.
const DefaultXPPerTask = 20

// Create adds a manual task.
func (h *TaskHandler) Create(ctx context.Context, cmd CreateTaskCommand) (*task.Task, error) {
	if err := requireFeature(h.features, config.FeatureTasks, "CreateTask"); err != nil {
		return nil, err
	}
	if err := validateCommand("CreateTask", cmd); err != nil {
		return nil, err
	}
	if _, err := loadUser(ctx, h.users, "CreateTask", cmd.UserID); err != nil {
		return nil, err
	}

	var due timeutil.Date
	if cmd.DueDate != "" {
		d, err := timeutil.ParseDate(cmd.DueDate)
		if err != nil {
			return nil, shared.WrapError("command", "CreateTask", shared.ErrInvalidArgument, "invalid due date", err)
		}
		due = d
	}

	t, err := task.NewTask(h.newID(), cmd.UserID, cmd.Title, cmd.Description, task.SourceManual, "", due, h.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := h.tasks.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	h.logger.Debug("task created", logger.UserID(cmd.UserID), logger.String("task_id", t.ID))
	return t, nil
}

// Complete marks a todo task done, grants XP and touches the streak.
func (h *TaskHandler) Complete(ctx context.Context, cmd TaskCommand) (*CompleteTaskResult, error) {
	if err := requireFeature(h.features, config.FeatureTasks, "CompleteTask"); err != nil {
		return nil, err
	}
	if err := validateCommand("CompleteTask", cmd); err != nil {
		return nil, err
	}

	u, err := loadUser(ctx, h.users, "CompleteTask", cmd.UserID)
	if err != nil {
		return nil, err
	}
	t, err := h.ownedTask(ctx, "CompleteTask", cmd)
	if err != nil {
		return nil, err
	}

	if err := t.Complete(h.clock.Now()); err != nil {
		return nil, err
	}

	var outcome RewardOutcome
	err = h.tx.Atomically(ctx, func(ctx context.Context) error {
		if err := h.tasks.Save(ctx, t); err != nil {
			return err
		}
		outcome, err = h.rewarder.Apply(ctx, u, Reward{XP: h.xpPerTask, Reason: "task", TouchStreak: true})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}

	events := append([]shared.Event{shared.TaskCompletedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventTaskCompleted, u.ID, h.clock.Now()),
		TaskID:    t.ID,
		Source:    string(t.Source),
	}}, outcome.Events...)
	publishAll(h.publisher, h.logger, events)

	h.logger.Info("task completed",
		logger.UserID(u.ID),
		logger.String("task_id", t.ID),
		logger.XPAmount(outcome.XPAwarded()),
	)
	return &CompleteTaskResult{Task: t, Outcome: outcome}, nil
}

// Skip marks a todo task skipped. Skipping grants nothing.
func (h *TaskHandler) Skip(ctx context.Context, cmd TaskCommand) (*task.Task, error) {
	if err := requireFeature(h.features, config.FeatureTasks, "SkipTask"); err != nil {
		return nil, err
	}
	if err := validateCommand("SkipTask", cmd); err != nil {
		return nil, err
	}

	t, err := h.ownedTask(ctx, "SkipTask", cmd)
	if err != nil {
		return nil, err
	}
	if err := t.Skip(h.clock.Now()); err != nil {
		return nil, err
	}
	if err := h.tasks.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("skip task: %w", err)
	}
	return t, nil
}

// Delete removes a task.
func (h *TaskHandler) Delete(ctx context.Context, cmd TaskCommand) error {
	if err := requireFeature(h.features, config.FeatureTasks, "DeleteTask"); err != nil {
		return err
	}
	if err := validateCommand("DeleteTask", cmd); err != nil {
		return err
	}

	if _, err := h.ownedTask(ctx, "DeleteTask", cmd); err != nil {
		return err
	}
	if err := h.tasks.Delete(ctx, cmd.TaskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// ownedTask loads a task and hides other users' tasks as not found.
func (h *TaskHandler) ownedTask(ctx context.Context, op string, cmd TaskCommand) (*task.Task, error) {
	t, err := h.tasks.Get(ctx, cmd.TaskID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.WrapError("command", op, shared.ErrNotFound, "task not found", err)
		}
		return nil, fmt.Errorf("%s: load task: %w", op, err)
	}
	if t.UserID != cmd.UserID {
		return nil, shared.NewDomainError("command", op, shared.ErrNotFound, "task not found")
	}
	return t, nil
}

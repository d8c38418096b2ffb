package command

import (
	"context"
	"fmt"

	"github.com/imperium-ai/imperium/config"
	"github.com/imperium-ai/imperium/internal/domain/journal"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/pkg/logger"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOURNAL COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// SaveInsightCommand stores a free-form journal entry.
type SaveInsightCommand struct {
	UserID  string `validate:"required"`
	Title   string `validate:"required,max=255"`
	Content string `validate:"required,max=20000"`
}

// DeleteJournalEntryCommand removes one entry.
type DeleteJournalEntryCommand struct {
	UserID  string `validate:"required"`
	EntryID string `validate:"required"`
}

// JournalHandler handles journal commands.
type JournalHandler struct {
	users    progression.Repository
	journal  journal.Repository
	clock    timeutil.Clock
	newID    IDGenerator
	features Features
	logger   *logger.Logger
}

// NewJournalHandler creates a new JournalHandler.
func NewJournalHandler(
	users progression.Repository,
	entries journal.Repository,
	clock timeutil.Clock,
	newID IDGenerator,
	features Features,
	log *logger.Logger,
) *JournalHandler {
	if newID == nil {
		newID = NewUUID
	}
	if log == nil {
		log = logger.Nop()
	}
	return &JournalHandler{
		users:    users,
		journal:  entries,
		clock:    clock,
		newID:    newID,
		features: features,
		logger:   log.With(logger.Component("journal")),
	}
}

// SaveInsight stores a saved_insight entry.
func (h *JournalHandler) SaveInsight(ctx context.Context, cmd SaveInsightCommand) (*journal.Entry, error) {
	if err := requireFeature(h.features, config.FeatureJournal, "SaveInsight"); err != nil {
		return nil, err
	}
	if err := validateCommand("SaveInsight", cmd); err != nil {
		return nil, err
	}
	if _, err := loadUser(ctx, h.users, "SaveInsight", cmd.UserID); err != nil {
		return nil, err
	}

	e, err := journal.NewEntry(h.newID(), cmd.UserID, journal.TypeSavedInsight, cmd.Title, cmd.Content, h.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := h.journal.Add(ctx, e); err != nil {
		return nil, fmt.Errorf("save insight: %w", err)
	}
	return e, nil
}

// Delete removes an entry owned by the user.
func (h *JournalHandler) Delete(ctx context.Context, cmd DeleteJournalEntryCommand) error {
	if err := requireFeature(h.features, config.FeatureJournal, "DeleteJournalEntry"); err != nil {
		return err
	}
	if err := validateCommand("DeleteJournalEntry", cmd); err != nil {
		return err
	}
	if err := h.journal.Delete(ctx, cmd.UserID, cmd.EntryID); err != nil {
		return fmt.Errorf("delete journal entry: %w", err)
	}
	return nil
}

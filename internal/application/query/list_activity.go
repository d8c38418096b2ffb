package query

import (
	"context"
	"fmt"
	"time"

	"github.com/imperium-ai/imperium/internal/domain/council"
	"github.com/imperium-ai/imperium/internal/domain/journal"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/internal/domain/task"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST QUERIES
// Journal, tasks and council history.
// ══════════════════════════════════════════════════════════════════════════════

// MaxListLimit caps every list query.
const MaxListLimit = 200

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// ListJournalQuery selects journal entries.
type ListJournalQuery struct {
	UserID string
	// Type filters by entry type; empty means all.
	Type  journal.EntryType
	Limit int
}

// JournalEntryDTO is one journal entry.
type JournalEntryDTO struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ListJournalHandler handles ListJournalQuery.
type ListJournalHandler struct {
	journal journal.Repository
}

// NewListJournalHandler creates a new ListJournalHandler.
func NewListJournalHandler(entries journal.Repository) *ListJournalHandler {
	return &ListJournalHandler{journal: entries}
}

// Handle returns entries newest first.
func (h *ListJournalHandler) Handle(ctx context.Context, q ListJournalQuery) ([]JournalEntryDTO, error) {
	if q.UserID == "" {
		return nil, shared.NewDomainError("query", "ListJournal", shared.ErrInvalidArgument, "user_id is required")
	}
	if q.Type != "" && !q.Type.IsValid() {
		return nil, shared.Errorf("query", "ListJournal", shared.ErrInvalidArgument, "unknown entry type %q", q.Type)
	}

	entries, err := h.journal.ListByUser(ctx, q.UserID, journal.Filter{Type: q.Type, Limit: clampLimit(q.Limit)})
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}

	out := make([]JournalEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, JournalEntryDTO{
			ID:        e.ID,
			Type:      string(e.Type),
			Title:     e.Title,
			Content:   e.Content,
			CreatedAt: e.CreatedAt,
		})
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Tasks
// ─────────────────────────────────────────────────────────────────────────────

// ListTasksQuery selects tasks.
type ListTasksQuery struct {
	UserID string
	// Status filters by status; empty means all.
	Status task.Status
	Limit  int
}

// TaskDTO is one task.
type TaskDTO struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Source      string     `json:"source"`
	SourceName  string     `json:"source_name,omitempty"`
	Status      string     `json:"status"`
	DueDate     string     `json:"due_date,omitempty"`
	Overdue     bool       `json:"overdue"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ListTasksHandler handles ListTasksQuery.
type ListTasksHandler struct {
	tasks task.Repository
	clock timeutil.Clock
}

// NewListTasksHandler creates a new ListTasksHandler.
func NewListTasksHandler(tasks task.Repository, clock timeutil.Clock) *ListTasksHandler {
	return &ListTasksHandler{tasks: tasks, clock: clock}
}

// Handle returns tasks in creation order.
func (h *ListTasksHandler) Handle(ctx context.Context, q ListTasksQuery) ([]TaskDTO, error) {
	if q.UserID == "" {
		return nil, shared.NewDomainError("query", "ListTasks", shared.ErrInvalidArgument, "user_id is required")
	}
	if q.Status != "" && !q.Status.IsValid() {
		return nil, shared.Errorf("query", "ListTasks", shared.ErrInvalidArgument, "unknown task status %q", q.Status)
	}

	tasks, err := h.tasks.ListByUser(ctx, q.UserID, task.ListFilter{Status: q.Status, Limit: clampLimit(q.Limit)})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	today := h.clock.Today()
	out := make([]TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		dto := TaskDTO{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Source:      string(t.Source),
			SourceName:  t.SourceName,
			Status:      string(t.Status),
			Overdue:     t.IsOverdue(today),
			CompletedAt: t.CompletedAt,
			CreatedAt:   t.CreatedAt,
		}
		if !t.DueDate.IsZero() {
			dto.DueDate = t.DueDate.String()
		}
		out = append(out, dto)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Council history
// ─────────────────────────────────────────────────────────────────────────────

// ListCouncilCasesHandler returns past council cases.
type ListCouncilCasesHandler struct {
	cases council.Repository
}

// NewListCouncilCasesHandler creates a new ListCouncilCasesHandler.
func NewListCouncilCasesHandler(cases council.Repository) *ListCouncilCasesHandler {
	return &ListCouncilCasesHandler{cases: cases}
}

// Handle returns the user's cases newest first.
func (h *ListCouncilCasesHandler) Handle(ctx context.Context, userID string, limit int) ([]council.Case, error) {
	if userID == "" {
		return nil, shared.NewDomainError("query", "ListCouncilCases", shared.ErrInvalidArgument, "user_id is required")
	}
	cases, err := h.cases.ListByUser(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list council cases: %w", err)
	}
	return cases, nil
}

// Package journal holds the user's journal: mentor feedback, saved council
// verdicts and free-form insights.
package journal

import (
	"context"
	"strings"
	"time"

	"github.com/imperium-ai/imperium/internal/domain/shared"
)

// EntryType classifies a journal entry.
type EntryType string

const (
	TypeMentorFeedback EntryType = "mentor_feedback"
	TypeCouncilVerdict EntryType = "council_verdict"
	TypeSavedInsight   EntryType = "saved_insight"
)

// IsValid checks the entry type.
func (t EntryType) IsValid() bool {
	switch t {
	case TypeMentorFeedback, TypeCouncilVerdict, TypeSavedInsight:
		return true
	}
	return false
}

// Entry is one journal entry.
type Entry struct {
	ID        string
	UserID    string
	Type      EntryType
	Title     string
	Content   string
	CreatedAt time.Time
}

// NewEntry validates and builds an entry.
func NewEntry(id, userID string, typ EntryType, title, content string, at time.Time) (*Entry, error) {
	if id == "" || userID == "" {
		return nil, shared.NewDomainError("journal", "NewEntry", shared.ErrInvalidArgument, "entry and user ids are required")
	}
	if !typ.IsValid() {
		return nil, shared.Errorf("journal", "NewEntry", shared.ErrInvalidArgument, "unknown entry type %q", typ)
	}
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return nil, shared.NewDomainError("journal", "NewEntry", shared.ErrInvalidArgument, "title and content are required")
	}
	return &Entry{
		ID:        id,
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Content:   content,
		CreatedAt: at,
	}, nil
}

// Filter narrows a listing. Zero values mean no filter.
type Filter struct {
	Type  EntryType
	Limit int
}

// Repository stores journal entries.
type Repository interface {
	// Add stores a new entry.
	Add(ctx context.Context, e *Entry) error

	// ListByUser returns entries newest first.
	ListByUser(ctx context.Context, userID string, f Filter) ([]*Entry, error)

	// Delete removes an entry, or returns shared.ErrNotFound.
	Delete(ctx context.Context, userID, id string) error
}

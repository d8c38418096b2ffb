// Package council models a council case: a user's dilemma answered by every
// mentor plus a unified verdict.
package council

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/imperium-ai/imperium/internal/domain/mentor"
	"github.com/imperium-ai/imperium/internal/domain/shared"
)

// Dilemma length bounds, in characters.
const (
	DefaultMinDilemmaLength = 10
	DefaultMaxDilemmaLength = 2000
)

// Verdict is the unified counsel appended to every case.
const Verdict = `The council has deliberated on your dilemma. While each master offers a unique perspective, they converge on these key principles:

**Immediate Actions:**
1. Document all relevant facts and stakeholder positions
2. Identify your sources of leverage and constraints
3. Prepare multiple scenarios based on different outcomes

**Strategic Principles:**
- Build your foundation carefully (Aurelius)
- Position yourself advantageously (Machiavelli)
- Execute decisively when ready (Napoleon)

The path forward requires both wisdom and action. Reflect on these perspectives, then choose with conviction.`

// VerdictTasks are the follow-up tasks suggested by the verdict.
var VerdictTasks = []string{
	"Document all relevant facts",
	"Identify key stakeholders",
	"Develop three action plans",
}

// TaskSourceName labels tasks created from a verdict.
const TaskSourceName = "Council Verdict"

// View is one mentor's answer.
type View struct {
	Mentor mentor.ID `json:"mentor"`
	Text   string    `json:"text"`
}

// Case is a stored council session.
type Case struct {
	ID           string
	UserID       string
	Dilemma      string
	Views        []View
	Verdict      string
	VerdictTasks []string
	CreatedAt    time.Time
}

// Limits bounds the dilemma length.
type Limits struct {
	Min int
	Max int
}

// DefaultLimits returns the standard dilemma bounds.
func DefaultLimits() Limits {
	return Limits{Min: DefaultMinDilemmaLength, Max: DefaultMaxDilemmaLength}
}

// ValidateDilemma checks the trimmed dilemma against l.
func (l Limits) ValidateDilemma(text string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	switch {
	case n == 0:
		return shared.NewDomainError("council", "ValidateDilemma", shared.ErrInvalidArgument, "please describe your dilemma")
	case n < l.Min:
		return shared.Errorf("council", "ValidateDilemma", shared.ErrInvalidArgument,
			"dilemma is too short: %d characters, need at least %d", n, l.Min)
	case l.Max > 0 && n > l.Max:
		return shared.Errorf("council", "ValidateDilemma", shared.ErrInvalidArgument,
			"dilemma is too long: %d characters, limit is %d", n, l.Max)
	}
	return nil
}

// NewCase convenes the council on dilemma. Validation is the caller's job.
func NewCase(id, userID, dilemma string, at time.Time) Case {
	all := mentor.All()
	views := make([]View, 0, len(all))
	for _, m := range all {
		views = append(views, View{Mentor: m.ID, Text: mentor.CouncilView(m.ID, dilemma)})
	}

	tasks := make([]string, len(VerdictTasks))
	copy(tasks, VerdictTasks)

	return Case{
		ID:           id,
		UserID:       userID,
		Dilemma:      strings.TrimSpace(dilemma),
		Views:        views,
		Verdict:      Verdict,
		VerdictTasks: tasks,
		CreatedAt:    at,
	}
}

// JournalTitle is the title used when the verdict is saved to the journal.
func (c Case) JournalTitle(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return "Council Verdict: " + c.CreatedAt.In(loc).Format("2006-01-02")
}

// JournalContent renders the case for the journal.
func (c Case) JournalContent() string {
	var b strings.Builder
	b.WriteString("**Your Dilemma:**\n")
	b.WriteString(c.Dilemma)
	b.WriteString("\n\n**Council's Verdict:**\n")
	b.WriteString(c.Verdict)
	for _, v := range c.Views {
		b.WriteString("\n\n**")
		b.WriteString(mentor.Resolve(v.Mentor).ShortName)
		b.WriteString("'s Perspective:**\n")
		b.WriteString(v.Text)
	}
	return b.String()
}

// Repository stores council cases.
type Repository interface {
	// Save stores a new case.
	Save(ctx context.Context, c Case) error

	// Get returns a case by id, or shared.ErrNotFound.
	Get(ctx context.Context, id string) (Case, error)

	// ListByUser returns the user's cases newest first. limit <= 0 means all.
	ListByUser(ctx context.Context, userID string, limit int) ([]Case, error)
}

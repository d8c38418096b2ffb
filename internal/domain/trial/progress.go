package trial

import (
	"context"
	"time"

	"github.com/imperium-ai/imperium/internal/domain/shared"
)

// Status is the derived state of a trial for one user.
type Status string

const (
	StatusLocked    Status = "locked"
	StatusCurrent   Status = "current"
	StatusCompleted Status = "completed"
)

// Record is the stored outcome of a user's attempts at one trial.
type Record struct {
	UserID      string
	TrialID     int
	Completed   bool
	BestScore   int
	Attempts    int
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// Apply folds a graded attempt into the record. It reports whether this
// attempt is the first pass, which is the only one that earns XP.
func (r Record) Apply(res Result, at time.Time) (Record, bool) {
	next := r
	next.Attempts++
	next.UpdatedAt = at
	if res.Score > next.BestScore {
		next.BestScore = res.Score
	}

	firstPass := res.Passed && !r.Completed
	if firstPass {
		next.Completed = true
		completedAt := at
		next.CompletedAt = &completedAt
	}
	return next, firstPass
}

// PathEntry is one trial with its status for a user.
type PathEntry struct {
	Trial     Trial
	ModuleID  string
	UnitID    string
	Status    Status
	BestScore int
	Attempts  int
}

// Path derives the status of every trial. A trial is unlocked when it is the
// first one or its predecessor is completed; unlocked and not completed is
// current.
func Path(c *Curriculum, records map[int]Record) []PathEntry {
	var (
		out          []PathEntry
		prevComplete = true
	)
	for _, m := range c.Modules {
		for _, u := range m.Units {
			for _, t := range u.Trials {
				rec := records[t.ID]
				status := StatusLocked
				switch {
				case rec.Completed:
					status = StatusCompleted
				case prevComplete:
					status = StatusCurrent
				}
				out = append(out, PathEntry{
					Trial:     t,
					ModuleID:  m.ID,
					UnitID:    u.ID,
					Status:    status,
					BestScore: rec.BestScore,
					Attempts:  rec.Attempts,
				})
				prevComplete = rec.Completed
			}
		}
	}
	return out
}

// EnsureUnlocked fails with ErrLocked unless id is the first trial or its
// predecessor is completed.
func EnsureUnlocked(c *Curriculum, id int, records map[int]Record) error {
	if _, err := c.Trial(id); err != nil {
		return err
	}
	prev, ok := c.Predecessor(id)
	if !ok || records[prev.ID].Completed {
		return nil
	}
	return shared.Errorf("trial", "EnsureUnlocked", shared.ErrLocked,
		"complete trial %d (%s) first", prev.ID, prev.Title)
}

// CompletedCount returns how many records are completed.
func CompletedCount(records map[int]Record) int {
	n := 0
	for _, r := range records {
		if r.Completed {
			n++
		}
	}
	return n
}

// ProgressRepository stores trial records per user.
type ProgressRepository interface {
	// List returns the user's records keyed by trial id.
	List(ctx context.Context, userID string) (map[int]Record, error)

	// Save upserts one record.
	Save(ctx context.Context, r Record) error
}

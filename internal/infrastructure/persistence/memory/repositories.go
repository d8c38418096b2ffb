package memory

import (
	"context"
	"sort"

	"github.com/imperium-ai/imperium/internal/domain/council"
	"github.com/imperium-ai/imperium/internal/domain/gate"
	"github.com/imperium-ai/imperium/internal/domain/journal"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/internal/domain/task"
	"github.com/imperium-ai/imperium/internal/domain/trial"
)

var (
	_ progression.Repository   = (*ProgressionRepository)(nil)
	_ gate.Repository          = (*GateRepository)(nil)
	_ trial.ProgressRepository = (*TrialProgressRepository)(nil)
	_ task.Repository          = (*TaskRepository)(nil)
	_ journal.Repository       = (*JournalRepository)(nil)
	_ council.Repository       = (*CouncilRepository)(nil)
)

// ─────────────────────────────────────────────────────────────────────────────
// Progression
// ─────────────────────────────────────────────────────────────────────────────

// ProgressionRepository implements progression.Repository.
type ProgressionRepository struct{ s *Store }

// Create stores a new record.
func (r *ProgressionRepository) Create(ctx context.Context, u progression.UserProgression) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.users[u.ID]; ok {
			return shared.Errorf("memory", "Progression.Create", shared.ErrAlreadyExists, "user %s already registered", u.ID)
		}
		r.s.users[u.ID] = u
		return nil
	})
}

// Get loads a record.
func (r *ProgressionRepository) Get(ctx context.Context, id string) (progression.UserProgression, error) {
	var u progression.UserProgression
	err := r.s.read(ctx, func() error {
		found, ok := r.s.users[id]
		if !ok {
			return shared.Errorf("memory", "Progression.Get", shared.ErrNotFound, "user %s", id)
		}
		u = found
		return nil
	})
	return u, err
}

// Save overwrites an existing record.
func (r *ProgressionRepository) Save(ctx context.Context, u progression.UserProgression) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.users[u.ID]; !ok {
			return shared.Errorf("memory", "Progression.Save", shared.ErrNotFound, "user %s", u.ID)
		}
		r.s.users[u.ID] = u
		return nil
	})
}

// Delete removes the record and everything owned by the user.
func (r *ProgressionRepository) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.users[id]; !ok {
			return shared.Errorf("memory", "Progression.Delete", shared.ErrNotFound, "user %s", id)
		}
		delete(r.s.users, id)
		delete(r.s.records, id)
		for k := range r.s.gates {
			if k.UserID == id {
				delete(r.s.gates, k)
			}
		}
		for tid, t := range r.s.tasks {
			if t.UserID == id {
				delete(r.s.tasks, tid)
				delete(r.s.order, tid)
			}
		}
		for eid, e := range r.s.entries {
			if e.UserID == id {
				delete(r.s.entries, eid)
				delete(r.s.order, eid)
			}
		}
		for cid, c := range r.s.cases {
			if c.UserID == id {
				delete(r.s.cases, cid)
				delete(r.s.order, cid)
			}
		}
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Gates
// ─────────────────────────────────────────────────────────────────────────────

// GateRepository implements gate.Repository.
type GateRepository struct{ s *Store }

// Get returns the stored state or the zero State.
func (r *GateRepository) Get(ctx context.Context, userID string, action gate.Action) (gate.State, error) {
	var st gate.State
	err := r.s.read(ctx, func() error {
		st = r.s.gates[gateKey{UserID: userID, Action: action}]
		return nil
	})
	return st, err
}

// Save stores the state.
func (r *GateRepository) Save(ctx context.Context, userID string, action gate.Action, st gate.State) error {
	return r.s.write(ctx, func() error {
		r.s.gates[gateKey{UserID: userID, Action: action}] = st
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Trial progress
// ─────────────────────────────────────────────────────────────────────────────

// TrialProgressRepository implements trial.ProgressRepository.
type TrialProgressRepository struct{ s *Store }

// List returns a copy of the user's records.
func (r *TrialProgressRepository) List(ctx context.Context, userID string) (map[int]trial.Record, error) {
	out := make(map[int]trial.Record)
	err := r.s.read(ctx, func() error {
		for id, rec := range r.s.records[userID] {
			out[id] = rec
		}
		return nil
	})
	return out, err
}

// Save upserts one record.
func (r *TrialProgressRepository) Save(ctx context.Context, rec trial.Record) error {
	return r.s.write(ctx, func() error {
		if r.s.records[rec.UserID] == nil {
			r.s.records[rec.UserID] = make(map[int]trial.Record)
		}
		r.s.records[rec.UserID][rec.TrialID] = rec
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Tasks
// ─────────────────────────────────────────────────────────────────────────────

// TaskRepository implements task.Repository.
type TaskRepository struct{ s *Store }

// Save creates or updates a task.
func (r *TaskRepository) Save(ctx context.Context, t *task.Task) error {
	return r.s.write(ctx, func() error {
		r.s.tasks[t.ID] = cloneTask(t)
		r.s.nextSeq(t.ID)
		return nil
	})
}

// Get returns a copy of the task.
func (r *TaskRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	var out *task.Task
	err := r.s.read(ctx, func() error {
		t, ok := r.s.tasks[id]
		if !ok {
			return shared.Errorf("memory", "Task.Get", shared.ErrNotFound, "task %s", id)
		}
		out = cloneTask(t)
		return nil
	})
	return out, err
}

// ListByUser returns the user's tasks, oldest first.
func (r *TaskRepository) ListByUser(ctx context.Context, userID string, f task.ListFilter) ([]*task.Task, error) {
	var out []*task.Task
	err := r.s.read(ctx, func() error {
		for _, t := range r.s.tasks {
			if t.UserID != userID || (f.Status != "" && t.Status != f.Status) {
				continue
			}
			out = append(out, cloneTask(t))
		}
		sort.Slice(out, func(i, j int) bool { return r.s.order[out[i].ID] < r.s.order[out[j].ID] })
		if f.Limit > 0 && len(out) > f.Limit {
			out = out[:f.Limit]
		}
		return nil
	})
	return out, err
}

// Delete removes a task.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.tasks[id]; !ok {
			return shared.Errorf("memory", "Task.Delete", shared.ErrNotFound, "task %s", id)
		}
		delete(r.s.tasks, id)
		delete(r.s.order, id)
		return nil
	})
}

func cloneTask(t *task.Task) *task.Task {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// ─────────────────────────────────────────────────────────────────────────────
// Journal
// ─────────────────────────────────────────────────────────────────────────────

// JournalRepository implements journal.Repository.
type JournalRepository struct{ s *Store }

// Add stores a new entry.
func (r *JournalRepository) Add(ctx context.Context, e *journal.Entry) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.entries[e.ID]; ok {
			return shared.Errorf("memory", "Journal.Add", shared.ErrAlreadyExists, "entry %s", e.ID)
		}
		c := *e
		r.s.entries[e.ID] = &c
		r.s.nextSeq(e.ID)
		return nil
	})
}

// ListByUser returns entries newest first.
func (r *JournalRepository) ListByUser(ctx context.Context, userID string, f journal.Filter) ([]*journal.Entry, error) {
	var out []*journal.Entry
	err := r.s.read(ctx, func() error {
		for _, e := range r.s.entries {
			if e.UserID != userID || (f.Type != "" && e.Type != f.Type) {
				continue
			}
			c := *e
			out = append(out, &c)
		}
		sort.Slice(out, func(i, j int) bool { return r.s.order[out[i].ID] > r.s.order[out[j].ID] })
		if f.Limit > 0 && len(out) > f.Limit {
			out = out[:f.Limit]
		}
		return nil
	})
	return out, err
}

// Delete removes one of the user's entries.
func (r *JournalRepository) Delete(ctx context.Context, userID, id string) error {
	return r.s.write(ctx, func() error {
		e, ok := r.s.entries[id]
		if !ok || e.UserID != userID {
			return shared.Errorf("memory", "Journal.Delete", shared.ErrNotFound, "entry %s", id)
		}
		delete(r.s.entries, id)
		delete(r.s.order, id)
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Council
// ─────────────────────────────────────────────────────────────────────────────

// CouncilRepository implements council.Repository.
type CouncilRepository struct{ s *Store }

// Save stores a new case.
func (r *CouncilRepository) Save(ctx context.Context, c council.Case) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.cases[c.ID]; ok {
			return shared.Errorf("memory", "Council.Save", shared.ErrAlreadyExists, "case %s", c.ID)
		}
		r.s.cases[c.ID] = c
		r.s.nextSeq(c.ID)
		return nil
	})
}

// Get returns a case by id.
func (r *CouncilRepository) Get(ctx context.Context, id string) (council.Case, error) {
	var out council.Case
	err := r.s.read(ctx, func() error {
		c, ok := r.s.cases[id]
		if !ok {
			return shared.Errorf("memory", "Council.Get", shared.ErrNotFound, "case %s", id)
		}
		out = c
		return nil
	})
	return out, err
}

// ListByUser returns the user's cases newest first.
func (r *CouncilRepository) ListByUser(ctx context.Context, userID string, limit int) ([]council.Case, error) {
	var out []council.Case
	err := r.s.read(ctx, func() error {
		for _, c := range r.s.cases {
			if c.UserID == userID {
				out = append(out, c)
			}
		}
		sort.Slice(out, func(i, j int) bool { return r.s.order[out[i].ID] > r.s.order[out[j].ID] })
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

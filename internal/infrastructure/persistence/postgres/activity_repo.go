package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/imperium-ai/imperium/internal/domain/council"
	"github.com/imperium-ai/imperium/internal/domain/journal"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/internal/domain/task"
	"github.com/imperium-ai/imperium/internal/domain/trial"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRIAL PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// TrialProgressRepository implements trial.ProgressRepository for PostgreSQL.
type TrialProgressRepository struct {
	q       Querier
	timeout time.Duration
}

// NewTrialProgressRepository creates a new TrialProgressRepository.
func NewTrialProgressRepository(q Querier) *TrialProgressRepository {
	return &TrialProgressRepository{q: q}
}

// List returns the user's records keyed by trial id.
func (r *TrialProgressRepository) List(ctx context.Context, userID string) (map[int]trial.Record, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT user_id, trial_id, completed, best_score, attempts, completed_at, updated_at
		FROM trial_progress
		WHERE user_id = $1
	`

	rows, err := querier(ctx, r.q).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trial progress: %w", err)
	}
	defer rows.Close()

	out := make(map[int]trial.Record)
	for rows.Next() {
		var rec trial.Record
		if err := rows.Scan(
			&rec.UserID,
			&rec.TrialID,
			&rec.Completed,
			&rec.BestScore,
			&rec.Attempts,
			&rec.CompletedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trial progress: %w", err)
		}
		out[rec.TrialID] = rec
	}

	return out, rows.Err()
}

// Save upserts one record.
func (r *TrialProgressRepository) Save(ctx context.Context, rec trial.Record) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO trial_progress (user_id, trial_id, completed, best_score, attempts, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, trial_id) DO UPDATE SET
			completed = EXCLUDED.completed,
			best_score = EXCLUDED.best_score,
			attempts = EXCLUDED.attempts,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := querier(ctx, r.q).Exec(ctx, query,
		rec.UserID,
		rec.TrialID,
		rec.Completed,
		rec.BestScore,
		rec.Attempts,
		rec.CompletedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save trial progress: %w", err)
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TASK REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

const taskColumns = `id, user_id, title, description, source, source_name, status, due_date, completed_at, created_at, updated_at`

// TaskRepository implements task.Repository for PostgreSQL.
type TaskRepository struct {
	q       Querier
	timeout time.Duration
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(q Querier) *TaskRepository {
	return &TaskRepository{q: q}
}

// Save inserts or updates a task.
func (r *TaskRepository) Save(ctx context.Context, t *task.Task) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			due_date = EXCLUDED.due_date,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := querier(ctx, r.q).Exec(ctx, query,
		t.ID,
		t.UserID,
		t.Title,
		t.Description,
		string(t.Source),
		t.SourceName,
		string(t.Status),
		toPgDate(t.DueDate),
		t.CompletedAt,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.Errorf("postgres", "Task.Save", shared.ErrNotFound, "user %s", t.UserID)
		}
		return fmt.Errorf("failed to save task: %w", err)
	}

	return nil
}

// Get returns a task by id.
func (r *TaskRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	row := querier(ctx, r.q).QueryRow(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = $1", id)
	t, err := scanTask(row)
	if IsNoRows(err) {
		return nil, shared.Errorf("postgres", "Task.Get", shared.ErrNotFound, "task %s", id)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListByUser returns the user's tasks, oldest first.
func (r *TaskRepository) ListByUser(ctx context.Context, userID string, f task.ListFilter) ([]*task.Task, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var (
		where = []string{"user_id = $1"}
		args  = []any{userID}
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "SELECT " + taskColumns + " FROM tasks WHERE " + strings.Join(where, " AND ") + " ORDER BY seq ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := querier(ctx, r.q).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var out []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}

	return out, rows.Err()
}

// Delete removes a task.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	result, err := querier(ctx, r.q).Exec(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.Errorf("postgres", "Task.Delete", shared.ErrNotFound, "task %s", id)
	}
	return nil
}

func scanTask(row pgx.Row) (*task.Task, error) {
	var (
		t              task.Task
		source, status string
		due            pgtype.Date
	)

	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&source,
		&t.SourceName,
		&status,
		&due,
		&t.CompletedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	t.Source = task.Source(source)
	t.Status = task.Status(status)
	t.DueDate = fromPgDate(due)
	return &t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// JOURNAL REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// JournalRepository implements journal.Repository for PostgreSQL.
type JournalRepository struct {
	q       Querier
	timeout time.Duration
}

// NewJournalRepository creates a new JournalRepository.
func NewJournalRepository(q Querier) *JournalRepository {
	return &JournalRepository{q: q}
}

// Add inserts a new entry.
func (r *JournalRepository) Add(ctx context.Context, e *journal.Entry) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO journal_entries (id, user_id, entry_type, title, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := querier(ctx, r.q).Exec(ctx, query, e.ID, e.UserID, string(e.Type), e.Title, e.Content, e.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.Errorf("postgres", "Journal.Add", shared.ErrAlreadyExists, "entry %s", e.ID)
		}
		return fmt.Errorf("failed to add journal entry: %w", err)
	}

	return nil
}

// ListByUser returns entries newest first.
func (r *JournalRepository) ListByUser(ctx context.Context, userID string, f journal.Filter) ([]*journal.Entry, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var (
		where = []string{"user_id = $1"}
		args  = []any{userID}
	)
	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, fmt.Sprintf("entry_type = $%d", len(args)))
	}

	query := "SELECT id, user_id, entry_type, title, content, created_at FROM journal_entries WHERE " +
		strings.Join(where, " AND ") + " ORDER BY seq DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := querier(ctx, r.q).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var out []*journal.Entry
	for rows.Next() {
		var (
			e   journal.Entry
			typ string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &typ, &e.Title, &e.Content, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Type = journal.EntryType(typ)
		out = append(out, &e)
	}

	return out, rows.Err()
}

// Delete removes one of the user's entries.
func (r *JournalRepository) Delete(ctx context.Context, userID, id string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	result, err := querier(ctx, r.q).Exec(ctx, "DELETE FROM journal_entries WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete journal entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.Errorf("postgres", "Journal.Delete", shared.ErrNotFound, "entry %s", id)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COUNCIL REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

const caseColumns = `id, user_id, dilemma, views, verdict, verdict_tasks, created_at`

// CouncilRepository implements council.Repository for PostgreSQL.
type CouncilRepository struct {
	q       Querier
	timeout time.Duration
}

// NewCouncilRepository creates a new CouncilRepository.
func NewCouncilRepository(q Querier) *CouncilRepository {
	return &CouncilRepository{q: q}
}

// Save inserts a new case.
func (r *CouncilRepository) Save(ctx context.Context, c council.Case) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	viewsJSON, err := json.Marshal(c.Views)
	if err != nil {
		return fmt.Errorf("failed to marshal council views: %w", err)
	}
	tasksJSON, err := json.Marshal(c.VerdictTasks)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict tasks: %w", err)
	}

	_, err = querier(ctx, r.q).Exec(ctx,
		"INSERT INTO council_cases ("+caseColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		c.ID, c.UserID, c.Dilemma, viewsJSON, c.Verdict, tasksJSON, c.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.Errorf("postgres", "Council.Save", shared.ErrAlreadyExists, "case %s", c.ID)
		}
		return fmt.Errorf("failed to save council case: %w", err)
	}

	return nil
}

// Get returns a case by id.
func (r *CouncilRepository) Get(ctx context.Context, id string) (council.Case, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	c, err := scanCase(querier(ctx, r.q).QueryRow(ctx, "SELECT "+caseColumns+" FROM council_cases WHERE id = $1", id))
	if IsNoRows(err) {
		return council.Case{}, shared.Errorf("postgres", "Council.Get", shared.ErrNotFound, "case %s", id)
	}
	return c, err
}

// ListByUser returns the user's cases newest first.
func (r *CouncilRepository) ListByUser(ctx context.Context, userID string, limit int) ([]council.Case, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := "SELECT " + caseColumns + " FROM council_cases WHERE user_id = $1 ORDER BY seq DESC"
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := querier(ctx, r.q).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query council cases: %w", err)
	}
	defer rows.Close()

	var out []council.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, rows.Err()
}

func scanCase(row pgx.Row) (council.Case, error) {
	var (
		c                    council.Case
		viewsJSON, tasksJSON []byte
	)

	err := row.Scan(&c.ID, &c.UserID, &c.Dilemma, &viewsJSON, &c.Verdict, &tasksJSON, &c.CreatedAt)
	if IsNoRows(err) {
		return council.Case{}, err
	}
	if err != nil {
		return council.Case{}, fmt.Errorf("failed to scan council case: %w", err)
	}

	if err := json.Unmarshal(viewsJSON, &c.Views); err != nil {
		return council.Case{}, fmt.Errorf("failed to decode council views: %w", err)
	}
	if err := json.Unmarshal(tasksJSON, &c.VerdictTasks); err != nil {
		return council.Case{}, fmt.Errorf("failed to decode verdict tasks: %w", err)
	}
	return c, nil
}

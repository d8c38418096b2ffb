package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imperium-ai/imperium/internal/domain/council"
	"github.com/imperium-ai/imperium/internal/domain/gate"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/internal/domain/task"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type execCall struct {
	sql  string
	args []any
}

type fakeQuerier struct {
	execs    []execCall
	execErr  error
	affected int64

	rows     [][]any
	rowErr   error
	lastSQL  string
	lastArgs []any
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("UPDATE " + strconv.FormatInt(f.affected, 10)), nil
}

func (f *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.lastSQL, f.lastArgs = sql, args
	return &fakeRows{rows: f.rows, idx: -1}, nil
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL, f.lastArgs = sql, args
	if f.rowErr != nil {
		return fakeRow{err: f.rowErr}
	}
	if len(f.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{values: f.rows[0]}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool                                   { r.idx++; return r.idx < len(r.rows) }
func (r *fakeRows) Scan(dest ...any) error                       { return assign(r.rows[r.idx], dest) }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.idx], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return errors.New("column count mismatch")
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(v))
	}
	return nil
}

var t0 = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

// ─────────────────────────────────────────────────────────────────────────────
// Progression
// ─────────────────────────────────────────────────────────────────────────────

func TestProgressionRepository_GetRestoresRank(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{{
		"u-1", "napoleon", int64(2500), "Initiate", 4,
		pgtype.Date{Time: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), Valid: true},
		t0,
	}}}
	repo := NewProgressionRepository(q, nil)

	u, err := repo.Get(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, progression.XP(2500), u.InfluenceXP())
	assert.Equal(t, progression.RankDominator, u.CurrentRank(), "stored rank is ignored")
	assert.Equal(t, timeutil.NewDate(2024, 3, 9), u.LastActivityDate)
	assert.Equal(t, []any{"u-1"}, q.lastArgs)
}

func TestProgressionRepository_Errors(t *testing.T) {
	ctx := context.Background()
	u := progression.NewEngine(nil).NewUser("u-1", "machiavelli", t0)

	_, err := NewProgressionRepository(&fakeQuerier{}, nil).Get(ctx, "u-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	dup := &fakeQuerier{execErr: &pgconn.PgError{Code: "23505"}}
	assert.ErrorIs(t, NewProgressionRepository(dup, nil).Create(ctx, u), shared.ErrAlreadyExists)

	none := &fakeQuerier{affected: 0}
	assert.ErrorIs(t, NewProgressionRepository(none, nil).Save(ctx, u), shared.ErrNotFound)

	one := &fakeQuerier{affected: 1}
	require.NoError(t, NewProgressionRepository(one, nil).Save(ctx, u))
	require.Len(t, one.execs, 1)
	assert.Equal(t, pgtype.Date{}, one.execs[0].args[4], "no activity is stored as NULL")
}

func TestGateRepository(t *testing.T) {
	ctx := context.Background()

	st, err := NewGateRepository(&fakeQuerier{}).Get(ctx, "u-1", gate.ActionCouncilSummon)
	require.NoError(t, err)
	assert.Nil(t, st.LastTriggeredAt)

	at := t0
	q := &fakeQuerier{rows: [][]any{{&at}}}
	st, err = NewGateRepository(q).Get(ctx, "u-1", gate.ActionCouncilSummon)
	require.NoError(t, err)
	require.NotNil(t, st.LastTriggeredAt)
	assert.Equal(t, []any{"u-1", "council_summon"}, q.lastArgs)

	q = &fakeQuerier{affected: 1}
	require.NoError(t, NewGateRepository(q).Save(ctx, "u-1", gate.ActionCouncilSummon, gate.State{LastTriggeredAt: &at}))
	assert.Contains(t, q.execs[0].sql, "ON CONFLICT")
}

// ─────────────────────────────────────────────────────────────────────────────
// Tasks, journal, council
// ─────────────────────────────────────────────────────────────────────────────

func TestTaskRepository_ListBuildsFilter(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{
		{"t-1", "u-1", "Document all relevant facts", "", "council", council.TaskSourceName, "todo", pgtype.Date{}, nil, t0, t0},
	}}
	repo := NewTaskRepository(q)

	tasks, err := repo.ListByUser(context.Background(), "u-1", task.ListFilter{Status: task.StatusTodo, Limit: 5})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.SourceCouncil, tasks[0].Source)
	assert.True(t, tasks[0].DueDate.IsZero())
	assert.Nil(t, tasks[0].CompletedAt)

	assert.Contains(t, q.lastSQL, "status = $2")
	assert.Contains(t, q.lastSQL, "LIMIT $3")
	assert.Equal(t, []any{"u-1", "todo", 5}, q.lastArgs)
}

func TestTaskRepository_GetAndDelete(t *testing.T) {
	ctx := context.Background()

	_, err := NewTaskRepository(&fakeQuerier{}).Get(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	assert.ErrorIs(t, NewTaskRepository(&fakeQuerier{}).Delete(ctx, "missing"), shared.ErrNotFound)
	require.NoError(t, NewTaskRepository(&fakeQuerier{affected: 1}).Delete(ctx, "t-1"))
}

func TestCouncilRepository_RoundTripsJSON(t *testing.T) {
	ctx := context.Background()
	c := council.NewCase("c-1", "u-1", "Should I confront my rival?", t0)

	w := &fakeQuerier{affected: 1}
	require.NoError(t, NewCouncilRepository(w).Save(ctx, c))
	args := w.execs[0].args

	var views []council.View
	require.NoError(t, json.Unmarshal(args[3].([]byte), &views))
	assert.Len(t, views, 3)

	r := &fakeQuerier{rows: [][]any{{c.ID, c.UserID, c.Dilemma, args[3], c.Verdict, args[5], t0}}}
	got, err := NewCouncilRepository(r).Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, c.Views, got.Views)
	assert.Equal(t, c.VerdictTasks, got.VerdictTasks)
}

func TestJournalRepository_DeleteScopedToUser(t *testing.T) {
	q := &fakeQuerier{affected: 0}
	err := NewJournalRepository(q).Delete(context.Background(), "u-2", "e-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, []any{"e-1", "u-2"}, q.execs[0].args)
}

func TestMigrationsAreOrdered(t *testing.T) {
	migs := GetMigrations()
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
}

type fakeTxRunner struct {
	*fakeQuerier
	txs int
}

func (f *fakeTxRunner) WithTx(_ context.Context, fn func(Querier) error) error {
	f.txs++
	return fn(f.fakeQuerier)
}

func TestMigrator_AppliesOnlyPending(t *testing.T) {
	db := &fakeTxRunner{fakeQuerier: &fakeQuerier{rows: [][]any{{1}}}}
	m := newMigrator(db, GetMigrations())

	n, err := m.Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, db.txs)

	// table bootstrap, migration 002 up, bookkeeping insert
	require.Len(t, db.execs, 3)
	assert.Equal(t, migration002Up, db.execs[1].sql)
	assert.Equal(t, []any{2, "create_activities"}, db.execs[2].args)
}

func TestMigrator_RollbackNewest(t *testing.T) {
	db := &fakeTxRunner{fakeQuerier: &fakeQuerier{rows: [][]any{{1}, {2}}}}

	v, err := newMigrator(db, GetMigrations()).Rollback(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, migration002Down, db.execs[1].sql)

	empty := &fakeTxRunner{fakeQuerier: &fakeQuerier{}}
	v, err = newMigrator(empty, GetMigrations()).Rollback(context.Background())
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestMigrator_WrapsFailures(t *testing.T) {
	db := &fakeTxRunner{fakeQuerier: &fakeQuerier{execErr: errors.New("permission denied")}}
	_, err := newMigrator(db, GetMigrations()).Migrate(context.Background())
	assert.ErrorIs(t, err, ErrMigrationFailed)
}

// ─────────────────────────────────────────────────────────────────────────────
// Unit of work
// ─────────────────────────────────────────────────────────────────────────────

func TestAtomically_RepositoriesJoinTransaction(t *testing.T) {
	pool := &fakeQuerier{affected: 1}
	db := &fakeTxRunner{fakeQuerier: &fakeQuerier{affected: 1}}
	at := t0

	gates := NewGateRepository(pool)
	users := NewProgressionRepository(pool, nil)
	u := progression.NewEngine(nil).NewUser("u-1", "machiavelli", t0)

	err := atomically(context.Background(), db, func(ctx context.Context) error {
		if err := gates.Save(ctx, u.ID, gate.ActionCouncilSummon, gate.State{LastTriggeredAt: &at}); err != nil {
			return err
		}
		// Nested units join the outer transaction.
		return atomically(ctx, db, func(ctx context.Context) error {
			return users.Save(ctx, u)
		})
	})
	require.NoError(t, err)

	assert.Equal(t, 1, db.txs)
	assert.Len(t, db.execs, 2)
	assert.Empty(t, pool.execs, "no statement bypasses the transaction")

	require.NoError(t, gates.Save(context.Background(), u.ID, gate.ActionCouncilSummon, gate.State{LastTriggeredAt: &at}))
	assert.Len(t, pool.execs, 1)
}

func TestAtomically_PropagatesFailure(t *testing.T) {
	db := &fakeTxRunner{fakeQuerier: &fakeQuerier{execErr: errors.New("deadlock detected")}}
	users := NewProgressionRepository(&fakeQuerier{affected: 1}, nil)

	err := atomically(context.Background(), db, func(ctx context.Context) error {
		return users.Save(ctx, progression.NewEngine(nil).NewUser("u-1", "", t0))
	})
	assert.ErrorContains(t, err, "deadlock detected")
}

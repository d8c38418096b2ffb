package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imperium-ai/imperium/internal/domain/council"
	"github.com/imperium-ai/imperium/internal/domain/gate"
	"github.com/imperium-ai/imperium/internal/domain/journal"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/internal/domain/task"
	"github.com/imperium-ai/imperium/internal/domain/trial"
	"github.com/imperium-ai/imperium/internal/infrastructure/curriculum"
	"github.com/imperium-ai/imperium/internal/infrastructure/persistence/memory"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

type fixture struct {
	engine *progression.Engine
	cur    *trial.Curriculum
	store  *memory.Store
	clock  *timeutil.FixedClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cur, err := curriculum.Default()
	require.NoError(t, err)
	engine := progression.NewEngine(nil)
	return &fixture{
		engine: engine,
		cur:    cur,
		store:  memory.New(engine),
		clock:  timeutil.NewFixedClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), time.UTC),
	}
}

func (f *fixture) progressHandler() *GetProgressHandler {
	return NewGetProgressHandler(f.engine, f.cur, f.store.Progression(), f.store.Gates(),
		f.store.Trials(), f.store.Tasks(), f.clock)
}

func TestGetProgress(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	u := f.engine.NewUser("u1", "aurelius", f.clock.Now())
	u, err := f.engine.AddXP(u, 1250)
	require.NoError(t, err)
	u, _ = f.engine.RecordActivity(u, timeutil.MustParseDate("2024-03-08"))
	u, _ = f.engine.RecordActivity(u, timeutil.MustParseDate("2024-03-09"))
	require.NoError(t, f.store.Progression().Create(ctx, u))

	require.NoError(t, f.store.Trials().Save(ctx, trial.Record{UserID: "u1", TrialID: 1, Completed: true, BestScore: 80, Attempts: 1}))

	todo, err := task.NewTask("t1", "u1", "overdue", "", task.SourceManual, "", timeutil.MustParseDate("2024-03-09"), f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.store.Tasks().Save(ctx, todo))
	done, err := task.NewTask("t2", "u1", "done", "", task.SourceManual, "", timeutil.Date{}, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, done.Complete(f.clock.Now()))
	require.NoError(t, f.store.Tasks().Save(ctx, done))

	dto, err := f.progressHandler().Handle(ctx, GetProgressQuery{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, "Marcus Aurelius", dto.MentorName)
	assert.Equal(t, 1250, dto.InfluenceXP)
	assert.Equal(t, "Strategist", dto.Rank)
	assert.Equal(t, "Dominator", dto.NextRank)
	require.NotNil(t, dto.XPToNext)
	assert.Equal(t, 750, *dto.XPToNext)
	assert.Equal(t, 50, dto.PercentWithinTier)

	assert.Equal(t, 2, dto.StreakDays, "yesterday's activity keeps the streak alive")
	assert.Equal(t, "2 day streak", dto.StreakLabel)

	assert.True(t, dto.CanSummonCouncil)
	assert.Equal(t, f.clock.Now(), dto.CouncilAvailableAt)

	assert.Equal(t, 1, dto.TrialsCompleted)
	assert.Equal(t, 5, dto.TrialsTotal)
	assert.Equal(t, 1, dto.TasksTodo)
	assert.Equal(t, 1, dto.TasksDone)
	assert.Equal(t, 1, dto.TasksOverdue)
}

func TestGetProgress_LapsedStreakAndGate(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	u := f.engine.NewUser("u1", "", f.clock.Now())
	u, _ = f.engine.RecordActivity(u, timeutil.MustParseDate("2024-03-07"))
	require.NoError(t, f.store.Progression().Create(ctx, u))

	morning := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.Gates().Save(ctx, "u1", gate.ActionCouncilSummon, gate.State{LastTriggeredAt: &morning}))

	dto, err := f.progressHandler().Handle(ctx, GetProgressQuery{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, 0, dto.StreakDays)
	assert.Equal(t, "Start your streak!", dto.StreakLabel)
	assert.False(t, dto.CanSummonCouncil)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), dto.CouncilAvailableAt)
	assert.Equal(t, "Niccolò Machiavelli", dto.MentorName)
}

func TestGetProgress_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.progressHandler().Handle(t.Context(), GetProgressQuery{})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = f.progressHandler().Handle(t.Context(), GetProgressQuery{UserID: "ghost"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetTrialPath(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	require.NoError(t, f.store.Trials().Save(ctx, trial.Record{UserID: "u1", TrialID: 1, Completed: true, BestScore: 100, Attempts: 2}))
	require.NoError(t, f.store.Trials().Save(ctx, trial.Record{UserID: "u1", TrialID: 2, BestScore: 33, Attempts: 1}))

	h := NewGetTrialPathHandler(f.cur, f.store.Trials())
	dto, err := h.Handle(ctx, GetTrialPathQuery{UserID: "u1"})
	require.NoError(t, err)

	require.Len(t, dto.Trials, 5)
	statuses := make([]string, 0, 5)
	for _, tr := range dto.Trials {
		statuses = append(statuses, tr.Status)
	}
	assert.Equal(t, []string{"completed", "current", "locked", "locked", "locked"}, statuses)
	assert.Equal(t, 1, dto.Completed)
	assert.Equal(t, 2, dto.CurrentID)
	assert.Equal(t, 33, dto.Trials[1].BestScore)
	assert.Equal(t, 100, dto.Trials[0].XPReward)
	assert.Equal(t, 70, dto.Trials[0].PassingScore)

	tr, err := h.GetTrial(1)
	require.NoError(t, err)
	for _, q := range tr.Questions {
		assert.Empty(t, q.CorrectAnswer)
	}
	full, err := f.cur.Trial(1)
	require.NoError(t, err)
	assert.NotEmpty(t, full.Questions[0].CorrectAnswer, "the curriculum itself is not modified")
}

func TestListJournal(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	for i, typ := range []journal.EntryType{journal.TypeMentorFeedback, journal.TypeSavedInsight, journal.TypeSavedInsight} {
		e, err := journal.NewEntry(string(rune('a'+i)), "u1", typ, "title", "content", f.clock.Now().Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, f.store.Journal().Add(ctx, e))
	}

	h := NewListJournalHandler(f.store.Journal())
	all, err := h.Handle(ctx, ListJournalQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	insights, err := h.Handle(ctx, ListJournalQuery{UserID: "u1", Type: journal.TypeSavedInsight, Limit: 1})
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, "c", insights[0].ID)

	_, err = h.Handle(ctx, ListJournalQuery{UserID: "u1", Type: "diary"})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestListTasksAndCases(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	tk, err := task.NewTask("t1", "u1", "Draft plan", "", task.SourceCouncil, council.TaskSourceName, timeutil.MustParseDate("2024-03-01"), f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.store.Tasks().Save(ctx, tk))

	tasks, err := NewListTasksHandler(f.store.Tasks(), f.clock).Handle(ctx, ListTasksQuery{UserID: "u1", Status: task.StatusTodo})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].Overdue)
	assert.Equal(t, "2024-03-01", tasks[0].DueDate)
	assert.Equal(t, "Council Verdict", tasks[0].SourceName)

	_, err = NewListTasksHandler(f.store.Tasks(), f.clock).Handle(ctx, ListTasksQuery{UserID: "u1", Status: "blocked"})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	require.NoError(t, f.store.Council().Save(ctx, council.NewCase("c1", "u1", "How do I handle a rival?", f.clock.Now())))
	cases, err := NewListCouncilCasesHandler(f.store.Council()).Handle(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Len(t, cases[0].Views, 3)
}

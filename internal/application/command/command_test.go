package command

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imperium-ai/imperium/config"
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

type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func (p *recordingPublisher) reset() { p.events = nil }

// flakyUsers fails progression saves while failSave is set.
type flakyUsers struct {
	progression.Repository
	failSave bool
}

func (f *flakyUsers) Save(ctx context.Context, u progression.UserProgression) error {
	if f.failSave {
		return errors.New("connection reset by peer")
	}
	return f.Repository.Save(ctx, u)
}

type harness struct {
	ctx      context.Context
	clock    *timeutil.FixedClock
	store    *memory.Store
	users    *flakyUsers
	pub      *recordingPublisher
	flags    *config.FeatureFlags
	handlers *Handlers
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cur, err := curriculum.Default()
	require.NoError(t, err)

	engine := progression.NewEngine(nil)
	store := memory.New(engine)
	clock := timeutil.NewFixedClock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), time.UTC)
	pub := &recordingPublisher{}
	flags := config.AllEnabled()

	seq := 0
	newID := func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}

	users := &flakyUsers{Repository: store.Progression()}
	h := NewHandlers(Deps{
		Engine:     engine,
		Curriculum: cur,
		Users:      users,
		Gates:      store.Gates(),
		Trials:     store.Trials(),
		Tasks:      store.Tasks(),
		Journal:    store.Journal(),
		Council:    store.Council(),
		Tx:         store,
		Clock:      clock,
		NewID:      newID,
		Features:   flags,
		Rules:      DefaultRules(),
		Publisher:  pub,
	})

	return &harness{ctx: t.Context(), clock: clock, store: store, users: users, pub: pub, flags: flags, handlers: h}
}

func (h *harness) register(t *testing.T, id string) progression.UserProgression {
	t.Helper()
	res, err := h.handlers.RegisterUser.Handle(h.ctx, RegisterUserCommand{UserID: id})
	require.NoError(t, err)
	h.pub.reset()
	return res.User
}

func (h *harness) user(t *testing.T, id string) progression.UserProgression {
	t.Helper()
	u, err := h.store.Progression().Get(h.ctx, id)
	require.NoError(t, err)
	return u
}

var trialOneAnswers = trial.Answers{
	1: "Inherited Wealth",
	2: "Force, Cunning, Legitimacy",
	3: "True",
	4: "Referent Power",
	5: "loved",
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER
// ══════════════════════════════════════════════════════════════════════════════

func TestRegisterUser(t *testing.T) {
	h := newHarness(t)

	res, err := h.handlers.RegisterUser.Handle(h.ctx, RegisterUserCommand{Mentor: "napoleon"})
	require.NoError(t, err)

	u := res.User
	assert.Equal(t, "id-1", u.ID)
	assert.Equal(t, "napoleon", u.Mentor)
	assert.Equal(t, progression.XP(0), u.InfluenceXP())
	assert.Equal(t, progression.RankInitiate, u.CurrentRank())
	assert.Equal(t, 0, u.StreakDays)
	assert.True(t, u.LastActivityDate.IsZero())
	assert.Equal(t, []shared.EventType{shared.EventUserRegistered}, h.pub.types())

	_, err = h.handlers.RegisterUser.Handle(h.ctx, RegisterUserCommand{UserID: "id-1"})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	_, err = h.handlers.RegisterUser.Handle(h.ctx, RegisterUserCommand{Mentor: "caesar"})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestChangeMentor(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")

	u, err := h.handlers.ChangeMentor.Handle(h.ctx, ChangeMentorCommand{UserID: "u1", Mentor: "aurelius"})
	require.NoError(t, err)
	assert.Equal(t, "aurelius", u.Mentor)
	assert.Equal(t, "aurelius", h.user(t, "u1").Mentor)

	_, err = h.handlers.ChangeMentor.Handle(h.ctx, ChangeMentorCommand{UserID: "ghost", Mentor: "aurelius"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// ══════════════════════════════════════════════════════════════════════════════
// TASKS
// ══════════════════════════════════════════════════════════════════════════════

func TestTasks_CompleteAwardsXPAndStreak(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")

	created, err := h.handlers.Tasks.Create(h.ctx, CreateTaskCommand{UserID: "u1", Title: "Read chapter 3", DueDate: "2024-03-11"})
	require.NoError(t, err)
	assert.Equal(t, task.StatusTodo, created.Status)
	assert.Equal(t, timeutil.MustParseDate("2024-03-11"), created.DueDate)

	res, err := h.handlers.Tasks.Complete(h.ctx, TaskCommand{UserID: "u1", TaskID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, task.StatusDone, res.Task.Status)
	assert.Equal(t, DefaultXPPerTask, res.Outcome.XPAwarded())

	u := h.user(t, "u1")
	assert.Equal(t, progression.XP(20), u.InfluenceXP())
	assert.Equal(t, 1, u.StreakDays)
	assert.Equal(t, []shared.EventType{
		shared.EventTaskCompleted,
		shared.EventXPGained,
		shared.EventStreakExtended,
	}, h.pub.types())

	_, err = h.handlers.Tasks.Complete(h.ctx, TaskCommand{UserID: "u1", TaskID: created.ID})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Equal(t, progression.XP(20), h.user(t, "u1").InfluenceXP())
}

func TestTasks_CreateRequiresTitle(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")

	_, err := h.handlers.Tasks.Create(h.ctx, CreateTaskCommand{UserID: "u1", Title: "   "})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = h.handlers.Tasks.Create(h.ctx, CreateTaskCommand{UserID: "u1", Title: "x", DueDate: "tomorrow"})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestTasks_SkipAndDelete(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")
	h.register(t, "u2")

	created, err := h.handlers.Tasks.Create(h.ctx, CreateTaskCommand{UserID: "u1", Title: "Plan the week"})
	require.NoError(t, err)

	_, err = h.handlers.Tasks.Skip(h.ctx, TaskCommand{UserID: "u2", TaskID: created.ID})
	assert.ErrorIs(t, err, shared.ErrNotFound, "other users' tasks are invisible")

	skipped, err := h.handlers.Tasks.Skip(h.ctx, TaskCommand{UserID: "u1", TaskID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, task.StatusSkipped, skipped.Status)
	assert.Equal(t, progression.XP(0), h.user(t, "u1").InfluenceXP())

	_, err = h.handlers.Tasks.Complete(h.ctx, TaskCommand{UserID: "u1", TaskID: created.ID})
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	require.NoError(t, h.handlers.Tasks.Delete(h.ctx, TaskCommand{UserID: "u1", TaskID: created.ID}))
	_, err = h.store.Tasks().Get(h.ctx, created.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestTasks_FeatureDisabled(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")
	require.NoError(t, h.flags.DisableFeature(config.FeatureTasks))

	_, err := h.handlers.Tasks.Create(h.ctx, CreateTaskCommand{UserID: "u1", Title: "x"})
	assert.ErrorIs(t, err, shared.ErrFeatureDisabled)
}

// ══════════════════════════════════════════════════════════════════════════════
// TRIALS
// ══════════════════════════════════════════════════════════════════════════════

func TestSubmitTrial_FirstPass(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")

	res, err := h.handlers.SubmitTrial.Handle(h.ctx, SubmitTrialCommand{UserID: "u1", TrialID: 1, Answers: trialOneAnswers})
	require.NoError(t, err)

	assert.Equal(t, 100, res.Result.Score)
	assert.True(t, res.Result.Passed)
	assert.True(t, res.FirstPass)
	assert.Contains(t, res.Feedback, "Niccolò Machiavelli")

	u := h.user(t, "u1")
	assert.Equal(t, progression.XP(100), u.InfluenceXP())
	assert.Equal(t, 1, u.StreakDays)

	entries, err := h.store.Journal().ListByUser(h.ctx, "u1", journal.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.TypeMentorFeedback, entries[0].Type)
	assert.Equal(t, trial.FeedbackTitle(res.Trial.Title), entries[0].Title)

	assert.Equal(t, []shared.EventType{
		shared.EventTrialPassed,
		shared.EventXPGained,
		shared.EventStreakExtended,
	}, h.pub.types())
}

func TestSubmitTrial_RepeatPassPaysNothing(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")

	_, err := h.handlers.SubmitTrial.Handle(h.ctx, SubmitTrialCommand{UserID: "u1", TrialID: 1, Answers: trialOneAnswers})
	require.NoError(t, err)

	h.clock.Advance(24 * time.Hour)
	res, err := h.handlers.SubmitTrial.Handle(h.ctx, SubmitTrialCommand{UserID: "u1", TrialID: 1, Answers: trialOneAnswers})
	require.NoError(t, err)

	assert.False(t, res.FirstPass)
	assert.Equal(t, 2, res.Record.Attempts)

	u := h.user(t, "u1")
	assert.Equal(t, progression.XP(100), u.InfluenceXP())
	assert.Equal(t, 2, u.StreakDays, "a repeat pass still counts as activity")

	entries, err := h.store.Journal().ListByUser(h.ctx, "u1", journal.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSubmitTrial_FailKeepsBestScore(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")

	answers := trial.Answers{1: "Inherited Wealth", 2: "x", 3: "x", 4: "x", 5: "x"}
	res, err := h.handlers.SubmitTrial.Handle(h.ctx, SubmitTrialCommand{UserID: "u1", TrialID: 1, Answers: answers})
	require.NoError(t, err)

	assert.Equal(t, 20, res.Result.Score)
	assert.False(t, res.Result.Passed)
	assert.False(t, res.Record.Completed)
	assert.Equal(t, 20, res.Record.BestScore)

	u := h.user(t, "u1")
	assert.Equal(t, progression.XP(0), u.InfluenceXP())
	assert.Equal(t, 0, u.StreakDays)
	assert.Equal(t, []shared.EventType{shared.EventTrialFailed}, h.pub.types())
}

func TestSubmitTrial_Errors(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")

	_, err := h.handlers.SubmitTrial.Handle(h.ctx, SubmitTrialCommand{UserID: "u1", TrialID: 2, Answers: trial.Answers{6: "Traditional", 7: "True", 8: "Rational-Legal Authority"}})
	assert.ErrorIs(t, err, shared.ErrLocked)

	_, err = h.handlers.SubmitTrial.Handle(h.ctx, SubmitTrialCommand{UserID: "u1", TrialID: 1, Answers: trial.Answers{1: "Inherited Wealth"}})
	assert.ErrorIs(t, err, shared.ErrIncompleteSubmission)

	_, err = h.handlers.SubmitTrial.Handle(h.ctx, SubmitTrialCommand{UserID: "u1", TrialID: 99, Answers: trialOneAnswers})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.handlers.SubmitTrial.Handle(h.ctx, SubmitTrialCommand{UserID: "u1", TrialID: 0})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	records, err := h.store.Trials().List(h.ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, records, "rejected submissions store nothing")
	assert.Empty(t, h.pub.events)
}

// ══════════════════════════════════════════════════════════════════════════════
// COUNCIL
// ══════════════════════════════════════════════════════════════════════════════

const dilemma = "Should I confront my manager about the reorganisation?"

func TestSummonCouncil_OncePerDay(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")

	res, err := h.handlers.SummonCouncil.Handle(h.ctx, SummonCouncilCommand{
		UserID:        "u1",
		Dilemma:       dilemma,
		CreateTasks:   true,
		SaveToJournal: true,
	})
	require.NoError(t, err)

	assert.Len(t, res.Case.Views, 3)
	assert.Len(t, res.Tasks, 3)
	require.NotNil(t, res.JournalEntry)
	assert.Equal(t, "Council Verdict: 2024-03-10", res.JournalEntry.Title)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), res.NextAvailable)
	for _, tk := range res.Tasks {
		assert.Equal(t, task.SourceCouncil, tk.Source)
	}

	u := h.user(t, "u1")
	assert.Equal(t, progression.XP(DefaultXPPerCouncil), u.InfluenceXP())
	assert.Equal(t, 0, u.StreakDays, "summoning the council does not count for the streak")

	st, err := h.store.Gates().Get(h.ctx, "u1", gate.ActionCouncilSummon)
	require.NoError(t, err)
	require.NotNil(t, st.LastTriggeredAt)

	h.pub.reset()
	h.clock.Advance(14 * time.Hour)
	_, err = h.handlers.SummonCouncil.Handle(h.ctx, SummonCouncilCommand{UserID: "u1", Dilemma: dilemma})
	assert.ErrorIs(t, err, shared.ErrGateExceeded)
	assert.Equal(t, []shared.EventType{shared.EventCouncilDenied}, h.pub.types())

	cases, err := h.store.Council().ListByUser(h.ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, cases, 1)

	h.clock.Advance(2 * time.Hour)
	_, err = h.handlers.SummonCouncil.Handle(h.ctx, SummonCouncilCommand{UserID: "u1", Dilemma: dilemma})
	require.NoError(t, err)
	assert.Equal(t, progression.XP(2*DefaultXPPerCouncil), h.user(t, "u1").InfluenceXP())
}

func TestSummonCouncil_RejectsBadDilemma(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")

	for _, d := range []string{"", "   ", "too short"} {
		_, err := h.handlers.SummonCouncil.Handle(h.ctx, SummonCouncilCommand{UserID: "u1", Dilemma: d})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument, d)
	}

	st, err := h.store.Gates().Get(h.ctx, "u1", gate.ActionCouncilSummon)
	require.NoError(t, err)
	assert.Nil(t, st.LastTriggeredAt, "rejected dilemmas do not consume the gate")
}

func TestSummonCouncil_FeatureDisabled(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")
	require.NoError(t, h.flags.DisableFeature(config.FeatureCouncil))

	_, err := h.handlers.SummonCouncil.Handle(h.ctx, SummonCouncilCommand{UserID: "u1", Dilemma: dilemma})
	assert.ErrorIs(t, err, shared.ErrFeatureDisabled)
}

// ══════════════════════════════════════════════════════════════════════════════
// JOURNAL & RANKS
// ══════════════════════════════════════════════════════════════════════════════

func TestJournal_SaveAndDelete(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")

	e, err := h.handlers.Journal.SaveInsight(h.ctx, SaveInsightCommand{UserID: "u1", Title: "Leverage", Content: "Never show your hand early."})
	require.NoError(t, err)
	assert.Equal(t, journal.TypeSavedInsight, e.Type)

	_, err = h.handlers.Journal.SaveInsight(h.ctx, SaveInsightCommand{UserID: "u1", Title: "", Content: "x"})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	assert.ErrorIs(t, h.handlers.Journal.Delete(h.ctx, DeleteJournalEntryCommand{UserID: "u2", EntryID: e.ID}), shared.ErrNotFound)
	require.NoError(t, h.handlers.Journal.Delete(h.ctx, DeleteJournalEntryCommand{UserID: "u1", EntryID: e.ID}))
}

func TestRewarder_RankChangeEvent(t *testing.T) {
	h := newHarness(t)
	u := h.register(t, "u1")

	r := NewRewarder(progression.NewEngine(nil), h.store.Progression(), h.clock)
	out, err := r.Apply(h.ctx, u, Reward{XP: 500, Reason: "test"})
	require.NoError(t, err)

	assert.True(t, out.RankChanged())
	assert.Equal(t, progression.RankStrategist, out.After.CurrentRank())
	require.Len(t, out.Events, 2)
	rc, ok := out.Events[1].(shared.RankChangedEvent)
	require.True(t, ok)
	assert.Equal(t, "Initiate", rc.OldRank)
	assert.Equal(t, "Strategist", rc.NewRank)

	noop, err := r.Apply(h.ctx, out.After, Reward{})
	require.NoError(t, err)
	assert.Empty(t, noop.Events)
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

func TestTasks_CompleteRollsBackWhenRewardFails(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")
	created, err := h.handlers.Tasks.Create(h.ctx, CreateTaskCommand{UserID: "u1", Title: "Read chapter 3"})
	require.NoError(t, err)
	h.pub.reset()

	h.users.failSave = true
	_, err = h.handlers.Tasks.Complete(h.ctx, TaskCommand{UserID: "u1", TaskID: created.ID})
	require.Error(t, err)
	assert.Empty(t, h.pub.events)

	stored, err := h.store.Tasks().Get(h.ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusTodo, stored.Status)

	h.users.failSave = false
	res, err := h.handlers.Tasks.Complete(h.ctx, TaskCommand{UserID: "u1", TaskID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, DefaultXPPerTask, res.Outcome.XPAwarded())
	assert.Equal(t, progression.XP(DefaultXPPerTask), h.user(t, "u1").InfluenceXP())
}

func TestSubmitTrial_RollsBackWhenRewardFails(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")

	h.users.failSave = true
	_, err := h.handlers.SubmitTrial.Handle(h.ctx, SubmitTrialCommand{UserID: "u1", TrialID: 1, Answers: trialOneAnswers})
	require.Error(t, err)
	assert.Empty(t, h.pub.events)

	records, err := h.store.Trials().List(h.ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, records)
	entries, err := h.store.Journal().ListByUser(h.ctx, "u1", journal.Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	h.users.failSave = false
	res, err := h.handlers.SubmitTrial.Handle(h.ctx, SubmitTrialCommand{UserID: "u1", TrialID: 1, Answers: trialOneAnswers})
	require.NoError(t, err)
	assert.True(t, res.FirstPass, "the failed attempt left no record behind")
	assert.Equal(t, progression.XP(100), h.user(t, "u1").InfluenceXP())
}

func TestSummonCouncil_RollsBackWhenRewardFails(t *testing.T) {
	h := newHarness(t)
	h.register(t, "u1")

	h.users.failSave = true
	_, err := h.handlers.SummonCouncil.Handle(h.ctx, SummonCouncilCommand{
		UserID:        "u1",
		Dilemma:       dilemma,
		CreateTasks:   true,
		SaveToJournal: true,
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrGateExceeded)
	assert.Empty(t, h.pub.events)

	st, err := h.store.Gates().Get(h.ctx, "u1", gate.ActionCouncilSummon)
	require.NoError(t, err)
	assert.Nil(t, st.LastTriggeredAt, "gate stays open")
	cases, err := h.store.Council().ListByUser(h.ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, cases)
	tasks, err := h.store.Tasks().ListByUser(h.ctx, "u1", task.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	h.users.failSave = false
	_, err = h.handlers.SummonCouncil.Handle(h.ctx, SummonCouncilCommand{UserID: "u1", Dilemma: dilemma})
	require.NoError(t, err)
	assert.Equal(t, progression.XP(DefaultXPPerCouncil), h.user(t, "u1").InfluenceXP())
}

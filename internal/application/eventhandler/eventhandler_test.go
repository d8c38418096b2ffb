package eventhandler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/internal/infrastructure/messaging"
)

type fakeRecorder struct {
	xp      map[string]int
	ranks   []string
	streaks []string
	trials  []bool
	tasks   []string
	council []string
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{xp: map[string]int{}}
}

func (r *fakeRecorder) XPAwarded(reason string, amount int) { r.xp[reason] += amount }
func (r *fakeRecorder) RankChanged(rank string)             { r.ranks = append(r.ranks, rank) }
func (r *fakeRecorder) StreakChanged(change string)         { r.streaks = append(r.streaks, change) }
func (r *fakeRecorder) TrialAttempted(passed bool)          { r.trials = append(r.trials, passed) }
func (r *fakeRecorder) TaskCompleted(source string)         { r.tasks = append(r.tasks, source) }
func (r *fakeRecorder) CouncilRequested(result string)      { r.council = append(r.council, result) }

var at = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func TestRegister_RoutesEvents(t *testing.T) {
	rec := newFakeRecorder()
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})

	require.NoError(t, Register(bus,
		NewOnProgressionHandler(rec, nil, DefaultProgressionConfig()),
		NewActivityMetricsHandler(rec, nil),
	))

	events := []shared.Event{
		shared.XPGainedEvent{BaseEvent: shared.NewBaseEvent(shared.EventXPGained, "u1", at), Delta: 100, Reason: "trial"},
		shared.XPGainedEvent{BaseEvent: shared.NewBaseEvent(shared.EventXPGained, "u1", at), Delta: 20, Reason: "task"},
		shared.RankChangedEvent{BaseEvent: shared.NewBaseEvent(shared.EventRankChanged, "u1", at), OldRank: "Initiate", NewRank: "Strategist"},
		shared.StreakEvent{BaseEvent: shared.NewBaseEvent(shared.EventStreakExtended, "u1", at), PreviousDays: 1, CurrentDays: 2},
		shared.StreakEvent{BaseEvent: shared.NewBaseEvent(shared.EventStreakReset, "u1", at), PreviousDays: 9, CurrentDays: 1},
		shared.TrialAttemptedEvent{BaseEvent: shared.NewBaseEvent(shared.EventTrialPassed, "u1", at), TrialID: 1, Score: 100},
		shared.TrialAttemptedEvent{BaseEvent: shared.NewBaseEvent(shared.EventTrialFailed, "u1", at), TrialID: 2, Score: 33},
		shared.TaskCompletedEvent{BaseEvent: shared.NewBaseEvent(shared.EventTaskCompleted, "u1", at), TaskID: "t1", Source: "council"},
		shared.CouncilSummonedEvent{BaseEvent: shared.NewBaseEvent(shared.EventCouncilSummoned, "u1", at), CaseID: "c1"},
		shared.CouncilDeniedEvent{BaseEvent: shared.NewBaseEvent(shared.EventCouncilDenied, "u1", at), NextAvailable: at.Add(15 * time.Hour)},
		shared.UserRegisteredEvent{BaseEvent: shared.NewBaseEvent(shared.EventUserRegistered, "u1", at)},
	}
	require.NoError(t, bus.PublishAll(events))

	assert.Equal(t, map[string]int{"trial": 100, "task": 20}, rec.xp)
	assert.Equal(t, []string{"Strategist"}, rec.ranks)
	assert.Equal(t, []string{"extended", "reset"}, rec.streaks)
	assert.Equal(t, []bool{true, false}, rec.trials)
	assert.Equal(t, []string{"council"}, rec.tasks)
	assert.Equal(t, []string{"summoned", "gated"}, rec.council)
}

func TestHandlers_IgnoreForeignEvents(t *testing.T) {
	rec := newFakeRecorder()
	h := NewOnProgressionHandler(rec, nil, DefaultProgressionConfig())

	foreign := shared.TaskCompletedEvent{BaseEvent: shared.NewBaseEvent(shared.EventRankChanged, "u1", at)}
	assert.NoError(t, h.HandleRankChanged(foreign))
	assert.NoError(t, h.HandleStreak(foreign))
	assert.Empty(t, rec.ranks)
	assert.Empty(t, rec.streaks)
}

func TestHandlers_NilRecorder(t *testing.T) {
	h := NewActivityMetricsHandler(nil, nil)
	assert.NoError(t, h.Handle(shared.XPGainedEvent{BaseEvent: shared.NewBaseEvent(shared.EventXPGained, "u1", at), Delta: 5}))
}

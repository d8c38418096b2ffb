// Package gate implements the once-per-calendar-day action gate.
//
// The gate is check-then-record: callers ask CanTrigger, run the gated action,
// persist its result and only then call RecordTrigger. The gate itself does
// not lock anything.
package gate

import (
	"context"
	"time"

	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// Action names a gated action.
type Action string

// ActionCouncilSummon gates council summons, one per day.
const ActionCouncilSummon Action = "council_summon"

// State is the persisted gate state for one user and action.
type State struct {
	// LastTriggeredAt is nil until the action has run once.
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
}

// DailyGate allows an action once per calendar day in a reference timezone.
type DailyGate struct {
	action Action
	loc    *time.Location
}

// NewDailyGate creates a gate for action. Day boundaries are taken in loc
// (UTC when nil).
func NewDailyGate(action Action, loc *time.Location) *DailyGate {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyGate{action: action, loc: loc}
}

// Action returns the gated action name.
func (g *DailyGate) Action() Action {
	return g.action
}

// CanTrigger reports whether the action may run at now.
func (g *DailyGate) CanTrigger(s State, now time.Time) bool {
	if s.LastTriggeredAt == nil {
		return true
	}
	return !timeutil.IsSameDay(*s.LastTriggeredAt, now, g.loc)
}

// RecordTrigger returns the state after the action ran at now. It fails with
// ErrGateExceeded when the action already ran on now's calendar day, leaving
// the state untouched.
func (g *DailyGate) RecordTrigger(s State, now time.Time) (State, error) {
	if !g.CanTrigger(s, now) {
		return s, shared.Errorf("gate", "RecordTrigger", shared.ErrGateExceeded,
			"%s already used on %s", g.action, timeutil.FormatDateStr(now, g.loc))
	}
	at := now
	return State{LastTriggeredAt: &at}, nil
}

// NextAvailable returns the earliest instant the action can run again.
func (g *DailyGate) NextAvailable(s State, now time.Time) time.Time {
	if g.CanTrigger(s, now) {
		return now
	}
	return timeutil.NextMidnight(now, g.loc)
}

// Repository stores gate states per user and action.
type Repository interface {
	// Get returns the stored state. A user who never triggered the action
	// gets the zero State and no error.
	Get(ctx context.Context, userID string, action Action) (State, error)

	// Save stores the state.
	Save(ctx context.Context, userID string, action Action, s State) error
}

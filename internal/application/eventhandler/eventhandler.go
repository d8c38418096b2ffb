// Package eventhandler contains the observers of domain events. They run
// after the state change is stored and only log and count; a failing
// observer never affects the command that published the event.
package eventhandler

import (
	"github.com/imperium-ai/imperium/internal/domain/shared"
)

// Recorder receives counters derived from events. metrics.Metrics
// implements it.
type Recorder interface {
	XPAwarded(reason string, amount int)
	RankChanged(rank string)
	StreakChanged(change string)
	TrialAttempted(passed bool)
	TaskCompleted(source string)
	CouncilRequested(result string)
}

type nopRecorder struct{}

func (nopRecorder) XPAwarded(string, int) {}
func (nopRecorder) RankChanged(string) {}
func (nopRecorder) StreakChanged(string) {}
func (nopRecorder) TrialAttempted(bool) {}
func (nopRecorder) TaskCompleted(string) {}
func (nopRecorder) CouncilRequested(string) {}

// Subscription binds a handler to event types.
type Subscription struct {
	Types   []shared.EventType
	Handler shared.EventHandler
}

// Subscriber is implemented by every handler in this package.
type Subscriber interface {
	Subscriptions() []Subscription
}

// Register subscribes all handlers on bus.
func Register(bus shared.EventBus, subs ...Subscriber) error {
	for _, s := range subs {
		for _, sub := range s.Subscriptions() {
			for _, t := range sub.Types {
				if err := bus.Subscribe(t, sub.Handler); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

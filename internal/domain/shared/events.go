package shared

import "time"

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Progression events
	EventUserRegistered EventType = "progression.user_registered"
	EventXPGained       EventType = "progression.xp_gained"
	EventRankChanged    EventType = "progression.rank_changed"
	EventStreakExtended EventType = "progression.streak_extended"
	EventStreakReset    EventType = "progression.streak_reset"

	// Curriculum events
	EventTrialPassed EventType = "trial.passed"
	EventTrialFailed EventType = "trial.failed"

	// Task events
	EventTaskCompleted EventType = "task.completed"

	// Council events
	EventCouncilSummoned EventType = "council.summoned"
	EventCouncilDenied   EventType = "council.denied"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the user that produced this event.
	AggregateID() string
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType { return e.Type }

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string { return e.AggregateId }

// NewBaseEvent creates a new base event stamped with at.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progression Events
// ═══════════════════════════════════════════════════════════════════════════

// UserRegisteredEvent is emitted when a progression record is created.
type UserRegisteredEvent struct {
	BaseEvent
	Mentor string `json:"mentor"`
}

// XPGainedEvent is emitted after XP has been added and persisted.
type XPGainedEvent struct {
	BaseEvent
	OldXP  int    `json:"old_xp"`
	NewXP  int    `json:"new_xp"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// RankChangedEvent is emitted when an XP gain moves the user into a new tier.
type RankChangedEvent struct {
	BaseEvent
	OldRank string `json:"old_rank"`
	NewRank string `json:"new_rank"`
}

// StreakEvent is emitted when the streak is extended or reset.
type StreakEvent struct {
	BaseEvent
	PreviousDays int `json:"previous_days"`
	CurrentDays  int `json:"current_days"`
}

// ═══════════════════════════════════════════════════════════════════════════
// Activity Events
// ═══════════════════════════════════════════════════════════════════════════

// TrialAttemptedEvent is emitted for every graded trial submission.
type TrialAttemptedEvent struct {
	BaseEvent
	TrialID int `json:"trial_id"`
	Score   int `json:"score"`
}

// TaskCompletedEvent is emitted when a task moves to done.
type TaskCompletedEvent struct {
	BaseEvent
	TaskID string `json:"task_id"`
	Source string `json:"source"`
}

// CouncilSummonedEvent is emitted after a council case has been stored.
type CouncilSummonedEvent struct {
	BaseEvent
	CaseID string `json:"case_id"`
}

// CouncilDeniedEvent is emitted when the daily gate refuses a summon.
type CouncilDeniedEvent struct {
	BaseEvent
	NextAvailable time.Time `json:"next_available"`
}

// ═══════════════════════════════════════════════════════════════════════════
// Publishing
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventBus extends EventPublisher with subscription.
type EventBus interface {
	EventPublisher
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// NopPublisher discards all events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }

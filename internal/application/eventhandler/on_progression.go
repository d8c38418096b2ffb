package eventhandler

import (
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON RANK CHANGED / STREAK HANDLER
// Reacts to promotions and streak transitions.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressionConfig tunes the progression observer.
type ProgressionConfig struct {
	// LostStreakWarnDays is the streak length whose loss is logged at warn
	// level. Shorter lost streaks are logged at info.
	LostStreakWarnDays int
}

// DefaultProgressionConfig returns the default configuration.
func DefaultProgressionConfig() ProgressionConfig {
	return ProgressionConfig{LostStreakWarnDays: 7}
}

// OnProgressionHandler logs rank changes and streak transitions and counts
// them.
type OnProgressionHandler struct {
	recorder Recorder
	logger   *logger.Logger
	config   ProgressionConfig
}

// NewOnProgressionHandler creates the handler. recorder may be nil.
func NewOnProgressionHandler(recorder Recorder, log *logger.Logger, config ProgressionConfig) *OnProgressionHandler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OnProgressionHandler{
		recorder: recorder,
		logger:   log.With(logger.Component("on_progression")),
		config:   config,
	}
}

// Subscriptions implements Subscriber.
func (h *OnProgressionHandler) Subscriptions() []Subscription {
	return []Subscription{
		{Types: []shared.EventType{shared.EventRankChanged}, Handler: h.HandleRankChanged},
		{Types: []shared.EventType{shared.EventStreakExtended, shared.EventStreakReset}, Handler: h.HandleStreak},
	}
}

// HandleRankChanged handles RankChangedEvent.
func (h *OnProgressionHandler) HandleRankChanged(event shared.Event) error {
	e, ok := event.(shared.RankChangedEvent)
	if !ok {
		h.logger.Warn("unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}

	h.recorder.RankChanged(e.NewRank)
	h.logger.Info("rank changed",
		logger.UserID(e.AggregateID()),
		logger.String("old_rank", e.OldRank),
		logger.Rank(e.NewRank),
	)
	return nil
}

// HandleStreak handles StreakEvent for both extensions and resets.
func (h *OnProgressionHandler) HandleStreak(event shared.Event) error {
	e, ok := event.(shared.StreakEvent)
	if !ok {
		h.logger.Warn("unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}

	if e.EventType() == shared.EventStreakExtended {
		h.recorder.StreakChanged("extended")
		h.logger.Debug("streak extended",
			logger.UserID(e.AggregateID()),
			logger.Int("days", e.CurrentDays),
		)
		return nil
	}

	h.recorder.StreakChanged("reset")
	fields := []logger.Field{
		logger.UserID(e.AggregateID()),
		logger.Int("lost_days", e.PreviousDays),
	}
	if h.config.LostStreakWarnDays > 0 && e.PreviousDays >= h.config.LostStreakWarnDays {
		h.logger.Warn("long streak lost", fields...)
	} else {
		h.logger.Info("streak reset", fields...)
	}
	return nil
}

package eventhandler

import (
	"time"

	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY METRICS HANDLER
// Counts XP, trials, tasks and council requests.
// ══════════════════════════════════════════════════════════════════════════════

// ActivityMetricsHandler turns activity events into counters.
type ActivityMetricsHandler struct {
	recorder Recorder
	logger   *logger.Logger
}

// NewActivityMetricsHandler creates the handler. recorder may be nil.
func NewActivityMetricsHandler(recorder Recorder, log *logger.Logger) *ActivityMetricsHandler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ActivityMetricsHandler{recorder: recorder, logger: log.With(logger.Component("activity_metrics"))}
}

// Subscriptions implements Subscriber.
func (h *ActivityMetricsHandler) Subscriptions() []Subscription {
	return []Subscription{{
		Types: []shared.EventType{
			shared.EventXPGained,
			shared.EventTrialPassed,
			shared.EventTrialFailed,
			shared.EventTaskCompleted,
			shared.EventCouncilSummoned,
			shared.EventCouncilDenied,
		},
		Handler: h.Handle,
	}}
}

// Handle dispatches on the event type.
func (h *ActivityMetricsHandler) Handle(event shared.Event) error {
	switch e := event.(type) {
	case shared.XPGainedEvent:
		h.recorder.XPAwarded(e.Reason, e.Delta)
	case shared.TrialAttemptedEvent:
		h.recorder.TrialAttempted(e.EventType() == shared.EventTrialPassed)
	case shared.TaskCompletedEvent:
		h.recorder.TaskCompleted(e.Source)
	case shared.CouncilSummonedEvent:
		h.recorder.CouncilRequested("summoned")
	case shared.CouncilDeniedEvent:
		h.recorder.CouncilRequested("gated")
		h.logger.Debug("council gated",
			logger.UserID(e.AggregateID()),
			logger.String("next_available", e.NextAvailable.Format(time.RFC3339)),
		)
	default:
		h.logger.Warn("unexpected event", logger.String("event_type", string(event.EventType())))
	}
	return nil
}

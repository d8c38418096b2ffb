package metrics

// The methods below implement eventhandler.Recorder.

// XPAwarded adds amount to the XP counter.
func (m *Metrics) XPAwarded(reason string, amount int) {
	if amount <= 0 {
		return
	}
	m.XPAwardedTotal.WithLabelValues(reason).Add(float64(amount))
}

// RankChanged counts a promotion into rank.
func (m *Metrics) RankChanged(rank string) {
	m.RankChangesTotal.WithLabelValues(rank).Inc()
}

// StreakChanged counts a streak transition.
func (m *Metrics) StreakChanged(change string) {
	m.StreakTransitionsTotal.WithLabelValues(change).Inc()
}

// TrialAttempted counts a graded submission.
func (m *Metrics) TrialAttempted(passed bool) {
	result := "failed"
	if passed {
		result = "passed"
	}
	m.TrialAttemptsTotal.WithLabelValues(result).Inc()
}

// TaskCompleted counts a completed task.
func (m *Metrics) TaskCompleted(source string) {
	m.TasksCompletedTotal.WithLabelValues(source).Inc()
}

// CouncilRequested counts a summon request. result is summoned or gated.
func (m *Metrics) CouncilRequested(result string) {
	m.CouncilSummonsTotal.WithLabelValues(result).Inc()
}

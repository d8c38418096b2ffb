package trial

import "fmt"

// Performance is the score bucket used in mentor feedback.
type Performance string

const (
	PerformanceExcellent  Performance = "excellent"
	PerformanceStrong     Performance = "strong"
	PerformanceSolid      Performance = "solid"
	PerformanceAcceptable Performance = "acceptable"
)

// PerformanceFor buckets a score.
func PerformanceFor(score int) Performance {
	switch {
	case score >= 90:
		return PerformanceExcellent
	case score >= 80:
		return PerformanceStrong
	case score >= 70:
		return PerformanceSolid
	default:
		return PerformanceAcceptable
	}
}

const feedbackTemplate = `**%s's Assessment:**

Your performance on "%s" was %s. You scored %d%%, answering %d out of %d questions correctly.

**Strengths:**
- Demonstrated understanding of core concepts
- Successfully completed the trial

**Areas for Growth:**
- Continue practicing these principles in real situations
- Review the lesson content for deeper insights
- Apply what you've learned in your daily interactions

**Next Steps:**
Move forward to the next trial when ready. Each lesson builds upon the previous, strengthening your mastery of power dynamics.

Remember: Knowledge without application is merely philosophy. True power comes from practiced wisdom.`

// MentorFeedback renders the journal text written after a passed trial.
func MentorFeedback(mentorName, trialTitle string, r Result) string {
	return fmt.Sprintf(feedbackTemplate, mentorName, trialTitle, PerformanceFor(r.Score), r.Score, r.Correct, r.Total)
}

// FeedbackTitle is the journal entry title for a trial's feedback.
func FeedbackTitle(trialTitle string) string {
	return "Feedback on " + trialTitle
}

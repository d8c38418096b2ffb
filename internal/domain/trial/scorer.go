// Package trial contains the curriculum model, the trial scorer and the
// per-user trial progress rules.
package trial

import (
	"github.com/imperium-ai/imperium/internal/domain/shared"
)

// DefaultPassingScore is used when a trial does not set its own threshold.
const DefaultPassingScore = 70

// Question is one quiz question of a trial.
type Question struct {
	ID            int      `yaml:"id" json:"id"`
	Text          string   `yaml:"text" json:"text"`
	Options       []string `yaml:"options" json:"options"`
	CorrectAnswer string   `yaml:"correct_answer" json:"correct_answer"`
}

// Answers maps question id to submitted answer text.
type Answers map[int]string

// Result is a graded submission.
type Result struct {
	Score   int
	Correct int
	Total   int
	Passed  bool
}

// Score grades submitted against questions and returns a percentage 0..100.
//
// Every question must have an entry in submitted, otherwise the result is
// ErrIncompleteSubmission. Comparison is exact and case-sensitive. An empty
// question list scores 0 with ErrNoQuestions.
func Score(questions []Question, submitted Answers) (int, error) {
	correct, err := countCorrect(questions, submitted)
	if err != nil {
		return 0, err
	}
	return percent(correct, len(questions)), nil
}

// Passed reports whether score meets threshold.
func Passed(score, threshold int) bool {
	return score >= threshold
}

// Grade scores a submission and applies threshold. A non-positive threshold
// means DefaultPassingScore.
func Grade(questions []Question, submitted Answers, threshold int) (Result, error) {
	if threshold <= 0 {
		threshold = DefaultPassingScore
	}
	correct, err := countCorrect(questions, submitted)
	if err != nil {
		return Result{Total: len(questions)}, err
	}
	score := percent(correct, len(questions))
	return Result{
		Score:   score,
		Correct: correct,
		Total:   len(questions),
		Passed:  Passed(score, threshold),
	}, nil
}

// MissingAnswers returns the ids of questions with no submitted answer, in
// question order. An empty answer counts as missing.
func MissingAnswers(questions []Question, submitted Answers) []int {
	var missing []int
	for _, q := range questions {
		if submitted[q.ID] == "" {
			missing = append(missing, q.ID)
		}
	}
	return missing
}

func countCorrect(questions []Question, submitted Answers) (int, error) {
	if len(questions) == 0 {
		return 0, shared.NewDomainError("trial", "Score", shared.ErrNoQuestions, "trial has no questions")
	}
	if missing := MissingAnswers(questions, submitted); len(missing) > 0 {
		return 0, shared.Errorf("trial", "Score", shared.ErrIncompleteSubmission,
			"%d of %d questions unanswered: %v", len(missing), len(questions), missing)
	}

	correct := 0
	for _, q := range questions {
		if submitted[q.ID] == q.CorrectAnswer {
			correct++
		}
	}
	return correct, nil
}

// percent computes round(100*n/total), halves rounding up.
func percent(n, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*n + total) / (2 * total)
}

package trial

import (
	"github.com/imperium-ai/imperium/internal/domain/shared"
)

// DefaultXPReward is awarded for a first pass when a trial sets no reward.
const DefaultXPReward = 100

// ══════════════════════════════════════════════════════════════════════════════
// CURRICULUM MODEL
// ══════════════════════════════════════════════════════════════════════════════

// Curriculum is the ordered list of modules. Trial order across the whole
// curriculum defines the unlock sequence.
type Curriculum struct {
	Modules []Module `yaml:"modules"`
}

// Module groups units.
type Module struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Units       []Unit `yaml:"units"`
}

// Unit groups trials.
type Unit struct {
	ID          string  `yaml:"id"`
	Title       string  `yaml:"title"`
	Description string  `yaml:"description"`
	Trials      []Trial `yaml:"trials"`
}

// Trial is a lesson plus quiz.
type Trial struct {
	ID            int        `yaml:"id"`
	Title         string     `yaml:"title"`
	LessonContent string     `yaml:"lesson"`
	XPReward      int        `yaml:"xp_reward"`
	PassingScore  int        `yaml:"passing_score"`
	Questions     []Question `yaml:"questions"`
}

// Threshold returns the passing score, falling back to the default.
func (t Trial) Threshold() int {
	if t.PassingScore <= 0 {
		return DefaultPassingScore
	}
	return t.PassingScore
}

// Reward returns the XP reward, falling back to the default.
func (t Trial) Reward() int {
	if t.XPReward <= 0 {
		return DefaultXPReward
	}
	return t.XPReward
}

// Trials returns all trials in unlock order.
func (c *Curriculum) Trials() []Trial {
	var out []Trial
	for _, m := range c.Modules {
		for _, u := range m.Units {
			out = append(out, u.Trials...)
		}
	}
	return out
}

// Trial returns the trial with the given id.
func (c *Curriculum) Trial(id int) (Trial, error) {
	for _, t := range c.Trials() {
		if t.ID == id {
			return t, nil
		}
	}
	return Trial{}, shared.Errorf("trial", "Trial", shared.ErrNotFound, "trial %d not found", id)
}

// Predecessor returns the trial that must be completed before id, and false
// when id is the first trial.
func (c *Curriculum) Predecessor(id int) (Trial, bool) {
	trials := c.Trials()
	for i, t := range trials {
		if t.ID == id {
			if i == 0 {
				return Trial{}, false
			}
			return trials[i-1], true
		}
	}
	return Trial{}, false
}

// Validate checks the curriculum for duplicate ids and malformed trials.
func (c *Curriculum) Validate() error {
	trials := c.Trials()
	if len(trials) == 0 {
		return shared.NewDomainError("trial", "Validate", shared.ErrInvalidArgument, "curriculum has no trials")
	}

	seenTrials := make(map[int]bool, len(trials))
	for _, t := range trials {
		if t.ID <= 0 || seenTrials[t.ID] {
			return shared.Errorf("trial", "Validate", shared.ErrInvalidArgument, "trial id %d is invalid or duplicated", t.ID)
		}
		seenTrials[t.ID] = true

		if t.Title == "" {
			return shared.Errorf("trial", "Validate", shared.ErrInvalidArgument, "trial %d has no title", t.ID)
		}
		if t.PassingScore < 0 || t.PassingScore > 100 {
			return shared.Errorf("trial", "Validate", shared.ErrInvalidArgument, "trial %d passing score %d out of range", t.ID, t.PassingScore)
		}
		if t.XPReward < 0 {
			return shared.Errorf("trial", "Validate", shared.ErrInvalidArgument, "trial %d has negative xp reward", t.ID)
		}

		seenQuestions := make(map[int]bool, len(t.Questions))
		for _, q := range t.Questions {
			if seenQuestions[q.ID] {
				return shared.Errorf("trial", "Validate", shared.ErrInvalidArgument, "trial %d repeats question %d", t.ID, q.ID)
			}
			seenQuestions[q.ID] = true
			if len(q.Options) > 0 && !contains(q.Options, q.CorrectAnswer) {
				return shared.Errorf("trial", "Validate", shared.ErrInvalidArgument,
					"trial %d question %d: correct answer is not one of the options", t.ID, q.ID)
			}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

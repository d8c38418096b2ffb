package query

import (
	"context"
	"fmt"

	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/internal/domain/trial"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TRIAL PATH QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetTrialPathQuery identifies the user.
type GetTrialPathQuery struct {
	UserID string
}

// TrialDTO is one trial on the path.
type TrialDTO struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	ModuleID      string `json:"module_id"`
	UnitID        string `json:"unit_id"`
	Status        string `json:"status"`
	XPReward      int    `json:"xp_reward"`
	PassingScore  int    `json:"passing_score"`
	QuestionCount int    `json:"question_count"`
	BestScore     int    `json:"best_score"`
	Attempts      int    `json:"attempts"`
}

// TrialPathDTO lists every trial in unlock order.
type TrialPathDTO struct {
	Trials    []TrialDTO `json:"trials"`
	Completed int        `json:"completed"`
	// CurrentID is the first trial that is unlocked and not completed, 0
	// when everything is done.
	CurrentID int `json:"current_id"`
}

// GetTrialPathHandler handles GetTrialPathQuery.
type GetTrialPathHandler struct {
	curriculum *trial.Curriculum
	records    trial.ProgressRepository
}

// NewGetTrialPathHandler creates a new GetTrialPathHandler.
func NewGetTrialPathHandler(curriculum *trial.Curriculum, records trial.ProgressRepository) *GetTrialPathHandler {
	return &GetTrialPathHandler{curriculum: curriculum, records: records}
}

// Handle executes the query.
func (h *GetTrialPathHandler) Handle(ctx context.Context, q GetTrialPathQuery) (*TrialPathDTO, error) {
	if q.UserID == "" {
		return nil, shared.NewDomainError("query", "GetTrialPath", shared.ErrInvalidArgument, "user_id is required")
	}

	records, err := h.records.List(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get trial path: %w", err)
	}

	path := trial.Path(h.curriculum, records)
	dto := &TrialPathDTO{Trials: make([]TrialDTO, 0, len(path))}
	for _, e := range path {
		dto.Trials = append(dto.Trials, TrialDTO{
			ID:            e.Trial.ID,
			Title:         e.Trial.Title,
			ModuleID:      e.ModuleID,
			UnitID:        e.UnitID,
			Status:        string(e.Status),
			XPReward:      e.Trial.Reward(),
			PassingScore:  e.Trial.Threshold(),
			QuestionCount: len(e.Trial.Questions),
			BestScore:     e.BestScore,
			Attempts:      e.Attempts,
		})
		switch e.Status {
		case trial.StatusCompleted:
			dto.Completed++
		case trial.StatusCurrent:
			if dto.CurrentID == 0 {
				dto.CurrentID = e.Trial.ID
			}
		}
	}
	return dto, nil
}

// GetTrial returns a trial's lesson and questions. Correct answers are
// stripped.
func (h *GetTrialPathHandler) GetTrial(id int) (trial.Trial, error) {
	t, err := h.curriculum.Trial(id)
	if err != nil {
		return t, err
	}
	qs := make([]trial.Question, len(t.Questions))
	for i, q := range t.Questions {
		q.CorrectAnswer = ""
		qs[i] = q
	}
	t.Questions = qs
	return t, nil
}

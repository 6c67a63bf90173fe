package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// ProgressStage names how far a submission's pipeline has advanced.
type ProgressStage string

const (
	StageNotStarted        ProgressStage = "not_started"
	StagePredictDispatched ProgressStage = "predict_dispatched"
	StageScoreDispatched   ProgressStage = "score_dispatched"
)

var (
	ErrPredictAlreadyDispatched = errors.New("predict phase already dispatched")
	ErrScoreAlreadyDispatched   = errors.New("score phase already dispatched")
)

// PhaseProgress is the durable record of which pipeline phases have been
// dispatched for a submission and under which job ids. Job ids are only
// ever added, never removed or replaced.
type PhaseProgress struct {
	PredictJobID string
	ScoreJobID   string
}

func (p PhaseProgress) Stage() ProgressStage {
	switch {
	case p.ScoreJobID != "":
		return StageScoreDispatched
	case p.PredictJobID != "":
		return StagePredictDispatched
	default:
		return StageNotStarted
	}
}

// WithPredict records the predict-phase job id. Recording a second predict
// dispatch is refused.
func (p PhaseProgress) WithPredict(jobID string) (PhaseProgress, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return p, errors.New("predict job id is required")
	}
	if p.PredictJobID != "" {
		return p, ErrPredictAlreadyDispatched
	}
	p.PredictJobID = jobID
	return p, nil
}

// WithScore records the score-phase job id. Recording a second score
// dispatch is refused.
func (p PhaseProgress) WithScore(jobID string) (PhaseProgress, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return p, errors.New("score job id is required")
	}
	if p.ScoreJobID != "" {
		return p, ErrScoreAlreadyDispatched
	}
	p.ScoreJobID = jobID
	return p, nil
}

type progressJSON struct {
	Predict string `json:"predict,omitempty"`
	Score   string `json:"score,omitempty"`
}

// MarshalJSON serializes progress in the stored wire shape, an object whose
// keys are the dispatched phases: {"predict": "...", "score": "..."}.
func (p PhaseProgress) MarshalJSON() ([]byte, error) {
	return json.Marshal(progressJSON{Predict: p.PredictJobID, Score: p.ScoreJobID})
}

func (p *PhaseProgress) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		*p = PhaseProgress{}
		return nil
	}
	var raw progressJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.PredictJobID = raw.Predict
	p.ScoreJobID = raw.Score
	return nil
}

// ParsePhaseProgress decodes the persisted representation; an empty value
// means no phase has been dispatched yet.
func ParsePhaseProgress(raw string) (PhaseProgress, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PhaseProgress{}, nil
	}
	var p PhaseProgress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return PhaseProgress{}, err
	}
	return p, nil
}

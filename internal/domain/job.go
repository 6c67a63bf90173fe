package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// Task types carried by jobs.
const (
	TaskTypeEvaluateSubmission = "evaluate_submission"
	TaskTypeRun                = "run"
)

// Job is an ephemeral tracking record minted once per dispatch. It exists to
// correlate an asynchronous worker callback with the submission it targets.
// A fresh job is minted for each pipeline phase, never reused.
type Job struct {
	ID       string
	TaskType string
	TaskArgs json.RawMessage
}

func (j Job) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return errors.New("job id is required")
	}
	if strings.TrimSpace(j.TaskType) == "" {
		return errors.New("task type is required")
	}
	return nil
}

// EvaluateArgs are the task args of an evaluate_submission job.
type EvaluateArgs struct {
	SubmissionID string `json:"submission_id"`
	Predict      bool   `json:"predict"`
}

func (j Job) EvaluateArgs() (EvaluateArgs, error) {
	if j.TaskType != TaskTypeEvaluateSubmission {
		return EvaluateArgs{}, errors.New("job is not an evaluate_submission job")
	}
	var args EvaluateArgs
	if err := json.Unmarshal(j.TaskArgs, &args); err != nil {
		return EvaluateArgs{}, err
	}
	if strings.TrimSpace(args.SubmissionID) == "" {
		return EvaluateArgs{}, errors.New("submission id missing from task args")
	}
	return args, nil
}

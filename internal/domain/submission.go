package domain

import (
	"errors"
	"strings"
	"time"
)

// SubmissionFiles holds the object-store keys of every artifact attached to
// a submission. Empty means the artifact does not exist yet.
type SubmissionFiles struct {
	// Bundle is the program or results archive uploaded by the participant.
	Bundle string

	Runfile         string
	Inputfile       string
	Stdout          string
	Stderr          string
	Output          string
	PrivateOutput   string
	DetailedResults string
	History         string
	Scores          string
	Coopetition     string

	PredictionRunfile string
	PredictionStdout  string
	PredictionStderr  string
	PredictionOutput  string
}

// Submission is one participant entry evaluated against a phase's scoring
// program. Status changes go exclusively through the repository's guarded
// transition; Progress only ever grows.
type Submission struct {
	ID               string
	PhaseID          string
	ParticipantID    string
	ParticipantName  string
	ParticipantEmail string
	NotifyOnFinish   bool
	Status           SubmissionStatus
	Progress         PhaseProgress
	Secret           string
	DockerImage      string
	SubmissionNumber int
	SubmittedAt      time.Time
	ExceptionDetails string
	Files            SubmissionFiles
}

func (s Submission) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("submission id is required")
	}
	if strings.TrimSpace(s.PhaseID) == "" {
		return errors.New("phase id is required")
	}
	if strings.TrimSpace(s.ParticipantID) == "" {
		return errors.New("participant id is required")
	}
	if strings.TrimSpace(s.Secret) == "" {
		return errors.New("secret is required")
	}
	if NormalizeSubmissionStatus(string(s.Status)) == "" {
		return errors.New("status is required")
	}
	return nil
}

// MetadataStage tags worker-reported metadata as belonging to the predict or
// score step of the pipeline.
type MetadataStage string

const (
	MetadataStagePredict MetadataStage = "predict"
	MetadataStageScore   MetadataStage = "score"
)

// SubmissionStats is one finished submission's row in the coopetition
// archive handed to scoring programs.
type SubmissionStats struct {
	Participant      string
	SubmissionID     string
	WhenMadePublic   *time.Time
	WhenUnmadePublic *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	DownloadCount    int
	SubmissionNumber int
	LikeCount        int
	DislikeCount     int
}

// DownloadRecord is one download of a submission's output by another user.
type DownloadRecord struct {
	SubmissionID string
	Owner        string
	DownloadedBy string
	At           time.Time
}

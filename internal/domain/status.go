package domain

import "strings"

// SubmissionStatus is the lifecycle state of a competition submission.
type SubmissionStatus string

const (
	StatusSubmitted SubmissionStatus = "submitted"
	StatusRunning   SubmissionStatus = "running"
	StatusFinished  SubmissionStatus = "finished"
	StatusFailed    SubmissionStatus = "failed"
	StatusCancelled SubmissionStatus = "cancelled"
)

// allowedSources lists, per target status, the statuses a submission may
// move from. Terminal statuses appear in no source set: once finished,
// failed or cancelled, a submission never changes status again.
var allowedSources = map[SubmissionStatus][]SubmissionStatus{
	StatusSubmitted: {StatusSubmitted, StatusRunning},
	StatusRunning:   {StatusSubmitted, StatusRunning},
	StatusFinished:  {StatusSubmitted, StatusRunning},
	StatusFailed:    {StatusSubmitted, StatusRunning},
	StatusCancelled: {StatusSubmitted, StatusRunning},
}

// NormalizeSubmissionStatus maps free-form status values to canonical ones.
func NormalizeSubmissionStatus(value string) SubmissionStatus {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(StatusSubmitted):
		return StatusSubmitted
	case string(StatusRunning):
		return StatusRunning
	case string(StatusFinished):
		return StatusFinished
	case string(StatusFailed):
		return StatusFailed
	case string(StatusCancelled):
		return StatusCancelled
	default:
		return ""
	}
}

func (s SubmissionStatus) IsTerminal() bool {
	switch s {
	case StatusFinished, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a submission may move from current to next.
// This is the single authority on status transitions; every status write
// must consult it.
func CanTransition(current, next SubmissionStatus) bool {
	sources, ok := allowedSources[next]
	if !ok {
		return false
	}
	for _, s := range sources {
		if s == current {
			return true
		}
	}
	return false
}

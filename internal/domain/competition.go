package domain

import (
	"errors"
	"strings"
)

// Competition carries the configuration the evaluation pipeline needs;
// everything else about a competition is owned by the web tier.
type Competition struct {
	ID    string
	Title string
	URL   string

	// ForceSubmissionToLeaderboard promotes every finished submission.
	ForceSubmissionToLeaderboard bool

	// QueueName routes this competition's compute tasks to an isolated
	// queue namespace. Empty means the shared default queue.
	QueueName string
}

// Phase is one stage of a competition with its own datasets, scoring
// program and leaderboard policy.
type Phase struct {
	ID            string
	CompetitionID string
	Number        int

	InputData      string
	ReferenceData  string
	ScoringProgram string

	// ExecutionTimeLimit is the soft per-run budget in seconds handed to
	// the compute worker. Non-positive means the system default.
	ExecutionTimeLimit int

	// IsScoringOnly skips the predict step; participants upload results
	// directly instead of a program.
	IsScoringOnly bool

	IsBlind                bool
	ForceBestToLeaderboard bool
	AutoMigration          bool
}

func (p Phase) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("phase id is required")
	}
	if strings.TrimSpace(p.CompetitionID) == "" {
		return errors.New("competition id is required")
	}
	return nil
}

package repo

import (
	"context"

	"github.com/arena-labs/arena-go/internal/domain"
)

// TransitionResult reports what a guarded status transition actually did.
type TransitionResult struct {
	From    domain.SubmissionStatus
	To      domain.SubmissionStatus
	Applied bool
}

// SubmissionRepository manages submission records. Transition is the single
// choke point for status changes; it serializes concurrent attempts on the
// same submission with a row-level write lock and silently rejects any move
// out of a terminal status.
type SubmissionRepository interface {
	Get(ctx context.Context, id string) (domain.Submission, error)
	Create(ctx context.Context, sub domain.Submission) error
	Transition(ctx context.Context, id string, next domain.SubmissionStatus) (TransitionResult, error)

	// UpdateDispatchState persists file keys, phase progress and exception
	// details together, as one unit of work.
	UpdateDispatchState(ctx context.Context, sub domain.Submission) error

	SaveTraceback(ctx context.Context, id, traceback string) error

	ListByPhase(ctx context.Context, phaseID string) ([]domain.Submission, error)
	NextSubmissionNumber(ctx context.Context, phaseID, participantID string) (int, error)

	// CountByParticipant counts this participant's submissions in a phase,
	// used to detect auto-migrated first submissions.
	CountByParticipant(ctx context.Context, phaseID, participantID string) (int, error)
}

// CompetitionRepository resolves the competition and phase configuration the
// pipeline needs. Competition authoring lives elsewhere.
type CompetitionRepository interface {
	GetPhase(ctx context.Context, id string) (domain.Phase, error)
	GetCompetition(ctx context.Context, id string) (domain.Competition, error)
	ListPhases(ctx context.Context, competitionID string) ([]domain.Phase, error)
}

// ScoreRepository manages scoring definitions and measured values.
type ScoreRepository interface {
	GetDefByKey(ctx context.Context, competitionID, key string) (domain.ScoreDef, error)
	DefaultDef(ctx context.Context, competitionID string) (domain.ScoreDef, error)
	Upsert(ctx context.Context, score domain.Score) error
	ValueFor(ctx context.Context, submissionID, scoreDefID string) (float64, error)

	// PhaseValues returns every recorded value of a definition across a
	// phase, including this submission's own.
	PhaseValues(ctx context.Context, phaseID, scoreDefID string) ([]float64, error)
}

// LeaderboardRepository owns leaderboard membership and result exports.
type LeaderboardRepository interface {
	// Promote places a submission on its phase's leaderboard. Promoting an
	// already-promoted submission is a no-op.
	Promote(ctx context.Context, submissionID string) error

	// ResultsCSV exports the phase's results; includeHidden adds scores not
	// shown on the public leaderboard.
	ResultsCSV(ctx context.Context, phaseID string, includeHidden bool) ([]byte, error)
}

// JobRepository mints and resolves dispatch-tracking jobs.
type JobRepository interface {
	Create(ctx context.Context, taskType string, args any) (domain.Job, error)
	Get(ctx context.Context, id string) (domain.Job, error)
}

// StatsRepository feeds the coopetition archive.
type StatsRepository interface {
	PhaseSubmissionStats(ctx context.Context, phaseID string) ([]domain.SubmissionStats, error)
	CompetitionDownloads(ctx context.Context, competitionID string) ([]domain.DownloadRecord, error)
}

// MetadataRepository upserts per-stage worker metadata by merging fields
// into whatever was stored before.
type MetadataRepository interface {
	UpsertMerge(ctx context.Context, submissionID string, stage domain.MetadataStage, fields map[string]any) error
}

package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arena-labs/arena-go/internal/bundle"
	"github.com/arena-labs/arena-go/internal/domain"
	"github.com/arena-labs/arena-go/internal/platform/auth"
	"github.com/arena-labs/arena-go/internal/repo"
	"github.com/arena-labs/arena-go/internal/storage/objectstore"
)

// ServiceParams collects the collaborators of the evaluation orchestrator.
type ServiceParams struct {
	Submissions  repo.SubmissionRepository
	Competitions repo.CompetitionRepository
	Scores       repo.ScoreRepository
	Leaderboard  repo.LeaderboardRepository
	Jobs         repo.JobRepository
	Stats        repo.StatsRepository
	Metadata     repo.MetadataRepository

	Store      objectstore.Store
	Dispatcher *Dispatcher
	Publisher  Publisher
	Callbacks  CallbackSink
	Notifier   Notifier

	SignTTL time.Duration
	Logger  *slog.Logger
}

// Service drives submissions through the predict and score phases and
// reconciles worker callbacks back into the submission record.
type Service struct {
	submissions  repo.SubmissionRepository
	competitions repo.CompetitionRepository
	scores       repo.ScoreRepository
	leaderboard  repo.LeaderboardRepository
	jobs         repo.JobRepository
	stats        repo.StatsRepository
	metadata     repo.MetadataRepository

	store      objectstore.Store
	dispatcher *Dispatcher
	pub        Publisher
	callbacks  CallbackSink
	notifier   Notifier

	signTTL time.Duration
	logger  *slog.Logger
}

func NewService(p ServiceParams) *Service {
	if p.Submissions == nil || p.Competitions == nil || p.Jobs == nil ||
		p.Store == nil || p.Dispatcher == nil || p.Callbacks == nil {
		return nil
	}
	if p.SignTTL <= 0 {
		p.SignTTL = objectstore.DefaultSignTTL
	}
	if p.Notifier == nil {
		p.Notifier = LogNotifier{Logger: p.Logger}
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &Service{
		submissions:  p.Submissions,
		competitions: p.Competitions,
		scores:       p.Scores,
		leaderboard:  p.Leaderboard,
		jobs:         p.Jobs,
		stats:        p.Stats,
		metadata:     p.Metadata,
		store:        p.Store,
		dispatcher:   p.Dispatcher,
		pub:          p.Publisher,
		callbacks:    p.Callbacks,
		notifier:     p.Notifier,
		signTTL:      p.SignTTL,
		logger:       p.Logger,
	}
}

// Evaluate mints a tracking job for a submission and dispatches its first
// pipeline phase. When dispatch itself fails, a failed callback is
// synthesized for the same job id so the submission still reaches a
// terminal state instead of hanging in submitted forever.
func (s *Service) Evaluate(ctx context.Context, submissionID string, isScoringOnly bool) error {
	if s == nil {
		return fmt.Errorf("evaluation service not initialized")
	}
	job, err := s.jobs.Create(ctx, domain.TaskTypeEvaluateSubmission, domain.EvaluateArgs{
		SubmissionID: submissionID,
		Predict:      !isScoringOnly,
	})
	if err != nil {
		return fmt.Errorf("create evaluate job: %w", err)
	}

	sub, err := s.submissions.Get(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("load submission %s: %w", submissionID, err)
	}
	phase, err := s.competitions.GetPhase(ctx, sub.PhaseID)
	if err != nil {
		return fmt.Errorf("load phase %s: %w", sub.PhaseID, err)
	}
	comp, err := s.competitions.GetCompetition(ctx, phase.CompetitionID)
	if err != nil {
		return fmt.Errorf("load competition %s: %w", phase.CompetitionID, err)
	}

	if !isScoringOnly {
		err = s.predict(ctx, job.ID, sub, phase, comp)
	} else {
		err = s.score(ctx, job.ID, sub, phase, comp)
	}
	if err != nil {
		s.logger.Error("dispatch failed, synthesizing failed callback",
			"submission_id", sub.ID, "job_id", job.ID, "error", err)
		cb := Callback{
			JobID:  job.ID,
			Status: CallbackFailed,
			Secret: sub.Secret,
			Extra:  CallbackExtra{Traceback: err.Error()},
		}
		if cbErr := s.callbacks.SubmitCallback(ctx, cb); cbErr != nil {
			s.logger.Error("synthesized callback publish failed",
				"submission_id", sub.ID, "job_id", job.ID, "error", cbErr)
		}
		return err
	}
	return nil
}

func placeholderStdout(sub domain.Submission) []byte {
	return []byte(fmt.Sprintf("Standard output for submission #%d by %s.", sub.SubmissionNumber, sub.ParticipantName))
}

func placeholderStderr(sub domain.Submission) []byte {
	return []byte(fmt.Sprintf("Standard error for submission #%d by %s.", sub.SubmissionNumber, sub.ParticipantName))
}

// predict runs the first pipeline phase: the participant's program against
// the phase input data.
func (s *Service) predict(ctx context.Context, jobID string, sub domain.Submission, phase domain.Phase, comp domain.Competition) error {
	if strings.TrimSpace(sub.Files.Bundle) == "" {
		return fmt.Errorf("submission %s: %w", sub.ID, bundle.ErrMissingProgram)
	}

	sub.Files.PredictionRunfile = predictionRunfileKey(sub.ID)
	sub.Files.PredictionStdout = predictionStdoutKey(sub.ID)
	sub.Files.PredictionStderr = predictionStderrKey(sub.ID)
	sub.Files.PredictionOutput = predictionOutputKey(sub.ID)

	// Placeholder artifacts give the worker known locations to write into.
	if err := s.store.Save(ctx, sub.Files.PredictionStdout, "text/plain", placeholderStdout(sub)); err != nil {
		return fmt.Errorf("write stdout placeholder: %w", err)
	}
	if err := s.store.Save(ctx, sub.Files.PredictionStderr, "text/plain", placeholderStderr(sub)); err != nil {
		return fmt.Errorf("write stderr placeholder: %w", err)
	}
	if err := s.store.Save(ctx, sub.Files.PredictionOutput, "application/zip", nil); err != nil {
		return fmt.Errorf("write output placeholder: %w", err)
	}

	manifest, err := bundle.RunManifest(bundle.RunManifestParams{
		ProgramURL: s.store.Sign(ctx, sub.Files.Bundle, objectstore.PermissionRead, s.signTTL),
		InputURL:   s.store.Sign(ctx, phase.InputData, objectstore.PermissionRead, s.signTTL),
		StdoutURL:  s.store.Sign(ctx, sub.Files.PredictionStdout, objectstore.PermissionWrite, s.signTTL),
		StderrURL:  s.store.Sign(ctx, sub.Files.PredictionStderr, objectstore.PermissionWrite, s.signTTL),
	})
	if err != nil {
		return fmt.Errorf("compose predict run manifest: %w", err)
	}
	if err := s.store.Save(ctx, sub.Files.PredictionRunfile, "text/plain", manifest.Bytes()); err != nil {
		return fmt.Errorf("write predict run manifest: %w", err)
	}

	progress, err := sub.Progress.WithPredict(jobID)
	if err != nil {
		return err
	}
	sub.Progress = progress
	if err := s.submissions.UpdateDispatchState(ctx, sub); err != nil {
		return fmt.Errorf("persist predict dispatch state: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, jobID, sub, phase, comp, true); err != nil {
		return err
	}
	if _, err := s.submissions.Transition(ctx, sub.ID, domain.StatusSubmitted); err != nil {
		return fmt.Errorf("re-affirm submitted: %w", err)
	}
	return nil
}

// score runs the second pipeline phase: the phase's scoring program against
// either the generated predictions or the participant's uploaded results.
func (s *Service) score(ctx context.Context, jobID string, sub domain.Submission, phase domain.Phase, comp domain.Competition) error {
	hasGeneratedPredictions := sub.Progress.PredictJobID != ""

	resRef := sub.Files.Bundle
	if hasGeneratedPredictions {
		resRef = sub.Files.PredictionOutput
	}
	if strings.TrimSpace(resRef) == "" {
		return fmt.Errorf("submission %s: %w", sub.ID, bundle.ErrMissingResults)
	}

	sub.Files.Inputfile = inputfileKey(sub.ID)
	sub.Files.Runfile = runfileKey(sub.ID)
	sub.Files.Stdout = stdoutKey(sub.ID)
	sub.Files.Stderr = stderrKey(sub.ID)
	sub.Files.Output = outputKey(sub.ID)
	sub.Files.PrivateOutput = privateOutputKey(sub.ID)
	sub.Files.DetailedResults = detailedResultsKey(sub.ID)
	sub.Files.History = historyKey(sub.ID)
	sub.Files.Scores = scoresExportKey(sub.ID)
	sub.Files.Coopetition = coopetitionKey(sub.ID)

	// History content is reserved for prior-submission outputs.
	if err := s.store.Save(ctx, sub.Files.History, "text/plain", nil); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	scoresCSV, err := s.leaderboard.ResultsCSV(ctx, phase.ID, true)
	if err != nil {
		return fmt.Errorf("export phase results: %w", err)
	}
	if err := s.store.Save(ctx, sub.Files.Scores, "text/csv", scoresCSV); err != nil {
		return fmt.Errorf("write scores export: %w", err)
	}
	archive, err := s.coopetitionArchive(ctx, comp, sub)
	if err != nil {
		return fmt.Errorf("build coopetition archive: %w", err)
	}
	if err := s.store.Save(ctx, sub.Files.Coopetition, "application/zip", archive); err != nil {
		return fmt.Errorf("write coopetition archive: %w", err)
	}

	automatic := false
	if phase.AutoMigration {
		count, err := s.submissions.CountByParticipant(ctx, phase.ID, sub.ParticipantID)
		if err != nil {
			return fmt.Errorf("count participant submissions: %w", err)
		}
		automatic = count <= 1
	}

	inputManifest, err := bundle.InputManifest(bundle.InputManifestParams{
		RefURL:              s.store.Sign(ctx, phase.ReferenceData, objectstore.PermissionRead, s.signTTL),
		ResURL:              s.store.Sign(ctx, resRef, objectstore.PermissionRead, s.signTTL),
		HistoryURL:          s.store.Sign(ctx, sub.Files.History, objectstore.PermissionRead, s.signTTL),
		ScoresURL:           s.store.Sign(ctx, sub.Files.Scores, objectstore.PermissionRead, s.signTTL),
		CoopetitionURL:      s.store.Sign(ctx, sub.Files.Coopetition, objectstore.PermissionRead, s.signTTL),
		SubmittedBy:         sub.ParticipantName,
		SubmittedAt:         sub.SubmittedAt,
		SubmissionNumber:    sub.SubmissionNumber,
		PhaseNumber:         phase.Number,
		AutomaticSubmission: automatic,
	})
	if err != nil {
		return fmt.Errorf("compose input manifest: %w", err)
	}
	if err := s.store.Save(ctx, sub.Files.Inputfile, "text/plain", inputManifest.Bytes()); err != nil {
		return fmt.Errorf("write input manifest: %w", err)
	}

	runManifest, err := bundle.RunManifest(bundle.RunManifestParams{
		ProgramURL:       s.store.Sign(ctx, phase.ScoringProgram, objectstore.PermissionRead, s.signTTL),
		InputURL:         s.store.Sign(ctx, sub.Files.Inputfile, objectstore.PermissionRead, s.signTTL),
		StdoutURL:        s.store.Sign(ctx, sub.Files.Stdout, objectstore.PermissionWrite, s.signTTL),
		StderrURL:        s.store.Sign(ctx, sub.Files.Stderr, objectstore.PermissionWrite, s.signTTL),
		PrivateOutputURL: s.store.Sign(ctx, sub.Files.PrivateOutput, objectstore.PermissionWrite, s.signTTL),
		OutputURL:        s.store.Sign(ctx, sub.Files.Output, objectstore.PermissionWrite, s.signTTL),
	})
	if err != nil {
		return fmt.Errorf("compose score run manifest: %w", err)
	}
	if err := s.store.Save(ctx, sub.Files.Runfile, "text/plain", runManifest.Bytes()); err != nil {
		return fmt.Errorf("write score run manifest: %w", err)
	}

	if !hasGeneratedPredictions {
		if err := s.store.Save(ctx, sub.Files.Stdout, "text/plain", placeholderStdout(sub)); err != nil {
			return fmt.Errorf("write stdout placeholder: %w", err)
		}
		if err := s.store.Save(ctx, sub.Files.Stderr, "text/plain", placeholderStderr(sub)); err != nil {
			return fmt.Errorf("write stderr placeholder: %w", err)
		}
	}
	for _, key := range []string{sub.Files.Output, sub.Files.PrivateOutput, sub.Files.DetailedResults} {
		if err := s.store.Save(ctx, key, "application/zip", nil); err != nil {
			return fmt.Errorf("write %s placeholder: %w", key, err)
		}
	}

	progress, err := sub.Progress.WithScore(jobID)
	if err != nil {
		return err
	}
	sub.Progress = progress
	if err := s.submissions.UpdateDispatchState(ctx, sub); err != nil {
		return fmt.Errorf("persist score dispatch state: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, jobID, sub, phase, comp, false); err != nil {
		return err
	}
	if !hasGeneratedPredictions {
		if _, err := s.submissions.Transition(ctx, sub.ID, domain.StatusSubmitted); err != nil {
			return fmt.Errorf("re-affirm submitted: %w", err)
		}
	}
	return nil
}

// coopetitionArchive collects the competition-wide statistics handed to
// scoring programs alongside the inputs.
func (s *Service) coopetitionArchive(ctx context.Context, comp domain.Competition, sub domain.Submission) ([]byte, error) {
	phases, err := s.competitions.ListPhases(ctx, comp.ID)
	if err != nil {
		return nil, fmt.Errorf("list phases: %w", err)
	}
	stats := bundle.CoopetitionStats{CurrentUser: sub.ParticipantName}
	for _, p := range phases {
		submissions, err := s.stats.PhaseSubmissionStats(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("phase %s stats: %w", p.ID, err)
		}
		scoresCSV, err := s.leaderboard.ResultsCSV(ctx, p.ID, true)
		if err != nil {
			return nil, fmt.Errorf("phase %s results: %w", p.ID, err)
		}
		stats.Phases = append(stats.Phases, bundle.PhaseStats{
			Number:      p.Number,
			Submissions: submissions,
			ScoresCSV:   scoresCSV,
		})
	}
	stats.Downloads, err = s.stats.CompetitionDownloads(ctx, comp.ID)
	if err != nil {
		return nil, fmt.Errorf("competition downloads: %w", err)
	}
	return bundle.CoopetitionArchive(stats)
}

// ReRunPhaseSubmissions clones every distinct uploaded bundle in a phase as
// a fresh submission and enqueues it for evaluation. Returns how many
// evaluations were enqueued.
func (s *Service) ReRunPhaseSubmissions(ctx context.Context, phaseID string) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("evaluation service not initialized")
	}
	if s.pub == nil {
		return 0, fmt.Errorf("re-run requires a queue publisher")
	}
	phase, err := s.competitions.GetPhase(ctx, phaseID)
	if err != nil {
		return 0, fmt.Errorf("load phase %s: %w", phaseID, err)
	}
	subs, err := s.submissions.ListByPhase(ctx, phaseID)
	if err != nil {
		return 0, fmt.Errorf("list phase submissions: %w", err)
	}

	seen := make(map[string]bool, len(subs))
	enqueued := 0
	for _, src := range subs {
		if src.Files.Bundle == "" || seen[src.Files.Bundle] {
			continue
		}
		seen[src.Files.Bundle] = true

		secret, err := auth.MintSecret()
		if err != nil {
			return enqueued, err
		}
		number, err := s.submissions.NextSubmissionNumber(ctx, phaseID, src.ParticipantID)
		if err != nil {
			s.logger.Error("re-run: submission number", "submission_id", src.ID, "error", err)
			continue
		}
		clone := domain.Submission{
			ID:               uuid.NewString(),
			PhaseID:          src.PhaseID,
			ParticipantID:    src.ParticipantID,
			ParticipantName:  src.ParticipantName,
			ParticipantEmail: src.ParticipantEmail,
			NotifyOnFinish:   src.NotifyOnFinish,
			Status:           domain.StatusSubmitted,
			Secret:           secret,
			DockerImage:      src.DockerImage,
			SubmissionNumber: number,
			SubmittedAt:      time.Now().UTC(),
			Files:            domain.SubmissionFiles{Bundle: src.Files.Bundle},
		}
		if err := s.submissions.Create(ctx, clone); err != nil {
			s.logger.Error("re-run: create clone", "submission_id", src.ID, "error", err)
			continue
		}
		req := EvaluateRequest{SubmissionID: clone.ID, IsScoringOnly: phase.IsScoringOnly}
		if err := s.pub.Publish(ctx, QueueSiteWorker, "", req); err != nil {
			s.logger.Error("re-run: enqueue evaluate", "submission_id", clone.ID, "error", err)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arena-labs/arena-go/internal/bundle"
	"github.com/arena-labs/arena-go/internal/domain"
	"github.com/arena-labs/arena-go/internal/platform/auth"
	"github.com/arena-labs/arena-go/internal/repo"
)

// HandleCallback reconciles one asynchronous worker status report into the
// submission record. The callback secret must match the submission's stored
// secret; a mismatch rejects the callback outright with no state change.
// After authentication, processing errors are wrapped in a SubmissionError
// so the consumer can force the submission to a terminal state.
func (s *Service) HandleCallback(ctx context.Context, cb Callback) error {
	if s == nil {
		return fmt.Errorf("evaluation service not initialized")
	}
	job, err := s.jobs.Get(ctx, cb.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", cb.JobID, err)
	}
	args, err := job.EvaluateArgs()
	if err != nil {
		return fmt.Errorf("job %s: %w", cb.JobID, err)
	}
	sub, err := s.submissions.Get(ctx, args.SubmissionID)
	if err != nil {
		return fmt.Errorf("load submission %s: %w", args.SubmissionID, err)
	}

	if !auth.SecretsEqual(cb.Secret, sub.Secret) {
		s.logger.Warn("callback secret mismatch",
			"job_id", cb.JobID, "submission_id", sub.ID)
		return ErrSecretMismatch
	}

	if err := s.reconcile(ctx, cb, sub); err != nil {
		return &SubmissionError{SubmissionID: sub.ID, Err: err}
	}
	return nil
}

func (s *Service) reconcile(ctx context.Context, cb Callback, sub domain.Submission) error {
	if len(cb.Extra.Metadata) > 0 && s.metadata != nil {
		stage := domain.MetadataStagePredict
		if sub.Progress.ScoreJobID != "" {
			stage = domain.MetadataStageScore
		}
		if err := s.metadata.UpsertMerge(ctx, sub.ID, stage, cb.Extra.Metadata); err != nil {
			return fmt.Errorf("attach %s metadata: %w", stage, err)
		}
	}

	switch cb.Status {
	case CallbackRunning:
		_, err := s.submissions.Transition(ctx, sub.ID, domain.StatusRunning)
		return err

	case CallbackFinished:
		if sub.Progress.ScoreJobID == "" {
			return s.continueToScore(ctx, sub)
		}
		return s.finishScoring(ctx, sub)

	case CallbackFailed:
		return s.fail(ctx, sub, cb.Extra.Traceback)

	default:
		s.logger.Warn("invalid callback status",
			"job_id", cb.JobID, "submission_id", sub.ID, "status", cb.Status)
		return s.fail(ctx, sub, cb.Extra.Traceback)
	}
}

// continueToScore starts the scoring phase after a finished prediction.
// Failures here are logged and swallowed: the prediction itself succeeded,
// so the submission is deliberately left non-terminal for a later re-run
// rather than marked failed.
func (s *Service) continueToScore(ctx context.Context, sub domain.Submission) error {
	phase, err := s.competitions.GetPhase(ctx, sub.PhaseID)
	if err != nil {
		s.logger.Error("score continuation: load phase",
			"submission_id", sub.ID, "error", err)
		return nil
	}
	comp, err := s.competitions.GetCompetition(ctx, phase.CompetitionID)
	if err != nil {
		s.logger.Error("score continuation: load competition",
			"submission_id", sub.ID, "error", err)
		return nil
	}
	job, err := s.jobs.Create(ctx, domain.TaskTypeEvaluateSubmission, domain.EvaluateArgs{
		SubmissionID: sub.ID,
		Predict:      false,
	})
	if err != nil {
		s.logger.Error("score continuation: create job",
			"submission_id", sub.ID, "error", err)
		return nil
	}
	if err := s.score(ctx, job.ID, sub, phase, comp); err != nil {
		s.logger.Error("score continuation: dispatch",
			"submission_id", sub.ID, "job_id", job.ID, "error", err)
	}
	return nil
}

// finishScoring extracts scores from the worker's output archive, records
// them, latches the submission finished and evaluates leaderboard
// promotion.
func (s *Service) finishScoring(ctx context.Context, sub domain.Submission) error {
	phase, err := s.competitions.GetPhase(ctx, sub.PhaseID)
	if err != nil {
		return fmt.Errorf("load phase %s: %w", sub.PhaseID, err)
	}
	comp, err := s.competitions.GetCompetition(ctx, phase.CompetitionID)
	if err != nil {
		return fmt.Errorf("load competition %s: %w", phase.CompetitionID, err)
	}

	output, err := s.store.Get(ctx, sub.Files.Output)
	if err != nil {
		return fmt.Errorf("read output artifact: %w", err)
	}
	blobs, err := bundle.ParseResultBundle(output)
	if err != nil {
		return fmt.Errorf("parse result bundle: %w", err)
	}
	scoresFile, err := bundle.ScoresFile(blobs)
	if err != nil {
		// No scores file means the scoring program produced nothing usable.
		s.logger.Error("result bundle has no scores file",
			"submission_id", sub.ID, "error", err)
		_, terr := s.submissions.Transition(ctx, sub.ID, domain.StatusFailed)
		return terr
	}
	lines, err := bundle.ParseScores(scoresFile)
	if err != nil {
		return fmt.Errorf("parse scores: %w", err)
	}

	for _, line := range lines {
		def, err := s.scores.GetDefByKey(ctx, comp.ID, line.Label)
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("no scoring definition for label, skipping",
				"submission_id", sub.ID, "label", line.Label)
			continue
		}
		if err != nil {
			return fmt.Errorf("resolve score def %q: %w", line.Label, err)
		}
		if err := s.scores.Upsert(ctx, domain.Score{
			SubmissionID: sub.ID,
			ScoreDefID:   def.ID,
			Value:        line.Value,
		}); err != nil {
			return fmt.Errorf("record score %q: %w", line.Label, err)
		}
	}

	if _, err := s.submissions.Transition(ctx, sub.ID, domain.StatusFinished); err != nil {
		return err
	}
	if err := s.maybePromote(ctx, sub, phase, comp); err != nil {
		return err
	}

	if sub.NotifyOnFinish {
		if err := s.notifier.SubmissionFinished(ctx, sub, comp); err != nil {
			s.logger.Error("finished notification",
				"submission_id", sub.ID, "error", err)
		}
	}
	return nil
}

// maybePromote applies the leaderboard promotion rules in fixed order. Each
// clause fires independently and Promote itself is idempotent, so repeated
// evaluation with the same scores yields the same membership.
func (s *Service) maybePromote(ctx context.Context, sub domain.Submission, phase domain.Phase, comp domain.Competition) error {
	if phase.IsBlind && !phase.ForceBestToLeaderboard {
		if err := s.leaderboard.Promote(ctx, sub.ID); err != nil {
			return fmt.Errorf("promote blind submission: %w", err)
		}
	}
	if comp.ForceSubmissionToLeaderboard && !phase.ForceBestToLeaderboard {
		if err := s.leaderboard.Promote(ctx, sub.ID); err != nil {
			return fmt.Errorf("promote forced submission: %w", err)
		}
	}
	if !phase.ForceBestToLeaderboard {
		return nil
	}

	def, err := s.scores.DefaultDef(ctx, comp.ID)
	if errors.Is(err, repo.ErrNotFound) {
		s.logger.Warn("best-to-leaderboard with no default score definition",
			"submission_id", sub.ID, "competition_id", comp.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve default score def: %w", err)
	}
	value, err := s.scores.ValueFor(ctx, sub.ID, def.ID)
	if errors.Is(err, repo.ErrNotFound) {
		s.logger.Warn("submission has no value for default score definition",
			"submission_id", sub.ID, "score_def", def.Key)
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve submission score: %w", err)
	}
	values, err := s.scores.PhaseValues(ctx, phase.ID, def.ID)
	if err != nil {
		return fmt.Errorf("collect phase scores: %w", err)
	}
	if len(values) == 0 {
		return nil
	}

	// Tie goes to promotion: an equal-best submission joins the prior best.
	best := values[0]
	promote := false
	switch def.Sorting {
	case domain.SortAscending:
		for _, v := range values[1:] {
			if v < best {
				best = v
			}
		}
		promote = value <= best
	default:
		for _, v := range values[1:] {
			if v > best {
				best = v
			}
		}
		promote = value >= best
	}
	if !promote {
		return nil
	}
	if err := s.leaderboard.Promote(ctx, sub.ID); err != nil {
		return fmt.Errorf("promote best submission: %w", err)
	}
	return nil
}

// ConsumeEvaluateRequest is the site-worker queue handler.
func (s *Service) ConsumeEvaluateRequest(ctx context.Context, payload []byte) error {
	var req EvaluateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decode evaluate request: %w", err)
	}
	return s.Evaluate(ctx, req.SubmissionID, req.IsScoringOnly)
}

// ConsumeCallback is the submission-updates queue handler. A wrapped
// SubmissionError forces the submission to failed so no processing error
// can leave it stuck in a non-terminal state.
func (s *Service) ConsumeCallback(ctx context.Context, payload []byte) error {
	var cb Callback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return fmt.Errorf("decode callback: %w", err)
	}
	err := s.HandleCallback(ctx, cb)
	if err == nil {
		return nil
	}
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		s.logger.Error("callback processing failed, forcing submission failed",
			"submission_id", subErr.SubmissionID, "error", subErr.Err)
		if terr := s.submissions.SaveTraceback(ctx, subErr.SubmissionID, subErr.Err.Error()); terr != nil {
			s.logger.Error("save traceback", "submission_id", subErr.SubmissionID, "error", terr)
		}
		if _, terr := s.submissions.Transition(ctx, subErr.SubmissionID, domain.StatusFailed); terr != nil {
			s.logger.Error("force failed", "submission_id", subErr.SubmissionID, "error", terr)
		}
		return nil
	}
	return err
}

// fail persists a traceback if one was supplied and latches the submission
// failed.
func (s *Service) fail(ctx context.Context, sub domain.Submission, traceback string) error {
	if traceback != "" {
		if err := s.submissions.SaveTraceback(ctx, sub.ID, traceback); err != nil {
			return fmt.Errorf("save traceback: %w", err)
		}
	}
	_, err := s.submissions.Transition(ctx, sub.ID, domain.StatusFailed)
	return err
}

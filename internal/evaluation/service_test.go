package evaluation

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/arena-labs/arena-go/internal/bundle"
	"github.com/arena-labs/arena-go/internal/domain"
)

func baseSubmission() domain.Submission {
	return domain.Submission{
		ID:               "sub-1",
		PhaseID:          "phase-1",
		ParticipantID:    "user-1",
		ParticipantName:  "ada",
		ParticipantEmail: "ada@example.test",
		Status:           domain.StatusSubmitted,
		Secret:           "s3cret",
		SubmissionNumber: 1,
		SubmittedAt:      time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Files:            domain.SubmissionFiles{Bundle: "uploads/bundle.zip"},
	}
}

func seedCompetition(env *testEnv, phase domain.Phase, comp domain.Competition) {
	env.competitions.phases[phase.ID] = phase
	env.competitions.competitions[comp.ID] = comp
}

func basePhase() domain.Phase {
	return domain.Phase{
		ID:                 "phase-1",
		CompetitionID:      "comp-1",
		Number:             1,
		InputData:          "datasets/input.zip",
		ReferenceData:      "datasets/ref.zip",
		ScoringProgram:     "programs/score.zip",
		ExecutionTimeLimit: 300,
	}
}

func baseCompetition() domain.Competition {
	return domain.Competition{
		ID:    "comp-1",
		Title: "Arena Challenge",
		URL:   "https://arena.test/competitions/1",
	}
}

func scoresZip(t *testing.T, scores string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(bundle.ScoresFileName)
	if err != nil {
		t.Fatalf("create scores file: %v", err)
	}
	if _, err := w.Write([]byte(scores)); err != nil {
		t.Fatalf("write scores: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestEvaluateEndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, baseSubmission())
	comp := baseCompetition()
	comp.ForceSubmissionToLeaderboard = true
	seedCompetition(env, basePhase(), comp)
	env.scores.defs["accuracy"] = domain.ScoreDef{
		ID:            "def-1",
		CompetitionID: "comp-1",
		Key:           "accuracy",
		Sorting:       domain.SortDescending,
		IsDefault:     true,
	}

	if err := env.svc.Evaluate(ctx, "sub-1", false); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	runs := env.pub.byQueue(QueueComputeWorker)
	if len(runs) != 1 {
		t.Fatalf("expected 1 run envelope, got %d", len(runs))
	}
	envelope := runs[0].Payload.(RunEnvelope)
	if !envelope.TaskArgs.Predict {
		t.Fatalf("expected predict envelope")
	}
	sub := env.submissions.records["sub-1"]
	if sub.Progress.PredictJobID != envelope.ID {
		t.Fatalf("expected progress to record predict job %s, got %+v", envelope.ID, sub.Progress)
	}
	if sub.Progress.ScoreJobID != "" {
		t.Fatalf("expected no score job yet")
	}
	if sub.Status != domain.StatusSubmitted {
		t.Fatalf("expected submitted, got %s", sub.Status)
	}

	// Worker reports work in progress, then finishes predict.
	if err := env.svc.HandleCallback(ctx, Callback{JobID: envelope.ID, Status: CallbackRunning, Secret: "s3cret"}); err != nil {
		t.Fatalf("running callback: %v", err)
	}
	if got := env.submissions.records["sub-1"].Status; got != domain.StatusRunning {
		t.Fatalf("expected running, got %s", got)
	}
	if err := env.svc.HandleCallback(ctx, Callback{JobID: envelope.ID, Status: CallbackFinished, Secret: "s3cret"}); err != nil {
		t.Fatalf("predict finished callback: %v", err)
	}

	runs = env.pub.byQueue(QueueComputeWorker)
	if len(runs) != 2 {
		t.Fatalf("expected 2 run envelopes after predict finished, got %d", len(runs))
	}
	scoreEnvelope := runs[1].Payload.(RunEnvelope)
	if scoreEnvelope.TaskArgs.Predict {
		t.Fatalf("expected scoring envelope")
	}
	if scoreEnvelope.ID == envelope.ID {
		t.Fatalf("expected a fresh job for the score phase")
	}
	sub = env.submissions.records["sub-1"]
	if sub.Progress.PredictJobID != envelope.ID || sub.Progress.ScoreJobID != scoreEnvelope.ID {
		t.Fatalf("unexpected progress: %+v", sub.Progress)
	}

	// The scoring run's res reference is the generated predictions.
	inputManifest := string(env.store.objects[sub.Files.Inputfile])
	if !strings.Contains(inputManifest, "res: https://store.test/"+sub.Files.PredictionOutput) {
		t.Fatalf("expected res to point at predictions: %s", inputManifest)
	}

	env.store.objects[sub.Files.Output] = scoresZip(t, "accuracy: 0.91\n")
	if err := env.svc.HandleCallback(ctx, Callback{JobID: scoreEnvelope.ID, Status: CallbackFinished, Secret: "s3cret"}); err != nil {
		t.Fatalf("score finished callback: %v", err)
	}

	sub = env.submissions.records["sub-1"]
	if sub.Status != domain.StatusFinished {
		t.Fatalf("expected finished, got %s", sub.Status)
	}
	if got := env.scores.values["sub-1"]["def-1"]; got != 0.91 {
		t.Fatalf("expected recorded accuracy 0.91, got %v", got)
	}
	if !env.leaderboard.promoted["sub-1"] {
		t.Fatalf("expected promotion for forced leaderboard competition")
	}
}

func TestEvaluateScoringOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, baseSubmission())
	phase := basePhase()
	phase.IsScoringOnly = true
	seedCompetition(env, phase, baseCompetition())

	if err := env.svc.Evaluate(ctx, "sub-1", true); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	runs := env.pub.byQueue(QueueComputeWorker)
	if len(runs) != 1 {
		t.Fatalf("expected 1 run envelope, got %d", len(runs))
	}
	envelope := runs[0].Payload.(RunEnvelope)
	if envelope.TaskArgs.Predict {
		t.Fatalf("expected scoring envelope for scoring-only phase")
	}
	sub := env.submissions.records["sub-1"]
	if sub.Progress.PredictJobID != "" {
		t.Fatalf("expected no predict job, got %+v", sub.Progress)
	}
	if sub.Progress.ScoreJobID != envelope.ID {
		t.Fatalf("expected score job %s, got %+v", envelope.ID, sub.Progress)
	}

	// Direct scoring scores the uploaded bundle itself.
	inputManifest := string(env.store.objects[sub.Files.Inputfile])
	if !strings.Contains(inputManifest, "res: https://store.test/uploads/bundle.zip") {
		t.Fatalf("expected res to point at the uploaded bundle: %s", inputManifest)
	}
}

func TestEvaluateMissingProgramSynthesizesFailedCallback(t *testing.T) {
	ctx := context.Background()
	sub := baseSubmission()
	sub.Files.Bundle = ""
	env := newTestEnv(t, sub)
	seedCompetition(env, basePhase(), baseCompetition())

	err := env.svc.Evaluate(ctx, "sub-1", false)
	if !errors.Is(err, bundle.ErrMissingProgram) {
		t.Fatalf("expected ErrMissingProgram, got %v", err)
	}
	if len(env.sink.callbacks) != 1 {
		t.Fatalf("expected 1 synthesized callback, got %d", len(env.sink.callbacks))
	}
	cb := env.sink.callbacks[0]
	if cb.Status != CallbackFailed || cb.Secret != "s3cret" {
		t.Fatalf("unexpected synthesized callback: %+v", cb)
	}
	if len(env.pub.byQueue(QueueComputeWorker)) != 0 {
		t.Fatalf("expected no dispatch for incomplete work")
	}
}

func TestEvaluateDispatchFailureSynthesizesFailedCallback(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, baseSubmission())
	seedCompetition(env, basePhase(), baseCompetition())
	env.pub.failFor = QueueComputeWorker

	err := env.svc.Evaluate(ctx, "sub-1", false)
	if err == nil {
		t.Fatalf("expected dispatch error")
	}
	if len(env.sink.callbacks) != 1 {
		t.Fatalf("expected 1 synthesized callback, got %d", len(env.sink.callbacks))
	}
	if env.sink.callbacks[0].Status != CallbackFailed {
		t.Fatalf("expected failed callback, got %+v", env.sink.callbacks[0])
	}
}

func TestAutomaticSubmissionFlag(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, baseSubmission())
	phase := basePhase()
	phase.IsScoringOnly = true
	phase.AutoMigration = true
	seedCompetition(env, phase, baseCompetition())

	if err := env.svc.Evaluate(ctx, "sub-1", true); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	sub := env.submissions.records["sub-1"]
	inputManifest := string(env.store.objects[sub.Files.Inputfile])
	if !strings.Contains(inputManifest, "automatic-submission: true") {
		t.Fatalf("expected first auto-migration submission to be flagged automatic: %s", inputManifest)
	}
}

func TestReRunPhaseSubmissions(t *testing.T) {
	ctx := context.Background()
	first := baseSubmission()
	duplicate := baseSubmission()
	duplicate.ID = "sub-2"
	duplicate.SubmissionNumber = 2
	other := baseSubmission()
	other.ID = "sub-3"
	other.ParticipantID = "user-2"
	other.ParticipantName = "bob"
	other.SubmissionNumber = 1
	other.Files.Bundle = "uploads/other.zip"

	env := newTestEnv(t, first, duplicate, other)
	seedCompetition(env, basePhase(), baseCompetition())

	enqueued, err := env.svc.ReRunPhaseSubmissions(ctx, "phase-1")
	if err != nil {
		t.Fatalf("re-run: %v", err)
	}
	if enqueued != 2 {
		t.Fatalf("expected 2 distinct bundles enqueued, got %d", enqueued)
	}
	reqs := env.pub.byQueue(QueueSiteWorker)
	if len(reqs) != 2 {
		t.Fatalf("expected 2 evaluate requests, got %d", len(reqs))
	}
	for _, msg := range reqs {
		req := msg.Payload.(EvaluateRequest)
		clone, ok := env.submissions.records[req.SubmissionID]
		if !ok {
			t.Fatalf("expected clone %s to exist", req.SubmissionID)
		}
		if clone.Status != domain.StatusSubmitted {
			t.Fatalf("expected clone to start submitted, got %s", clone.Status)
		}
		if clone.Secret == "s3cret" {
			t.Fatalf("expected clone to carry a fresh secret")
		}
		if clone.Progress.Stage() != domain.StageNotStarted {
			t.Fatalf("expected clone with empty progress, got %+v", clone.Progress)
		}
	}
}

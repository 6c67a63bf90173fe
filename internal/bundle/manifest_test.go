package bundle

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunManifestRequiresProgram(t *testing.T) {
	_, err := RunManifest(RunManifestParams{
		StdoutURL: "https://store/stdout",
		StderrURL: "https://store/stderr",
	})
	if !errors.Is(err, ErrMissingProgram) {
		t.Fatalf("expected ErrMissingProgram, got %v", err)
	}
}

func TestRunManifestLayout(t *testing.T) {
	m, err := RunManifest(RunManifestParams{
		ProgramURL:       "https://store/program",
		InputURL:         "https://store/input",
		StdoutURL:        "https://store/stdout",
		StderrURL:        "https://store/stderr",
		PrivateOutputURL: "https://store/private",
		OutputURL:        "https://store/output",
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	lines := strings.Split(string(m.Bytes()), "\n")
	want := []string{
		"program: https://store/program",
		"input: https://store/input",
		"stdout: https://store/stdout",
		"stderr: https://store/stderr",
		"private_output: https://store/private",
		"output: https://store/output",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestRunManifestOmitsAbsentOptionalReferences(t *testing.T) {
	m, err := RunManifest(RunManifestParams{
		ProgramURL: "https://store/program",
		StdoutURL:  "https://store/stdout",
		StderrURL:  "https://store/stderr",
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if m.Value("input") != "" {
		t.Fatalf("expected no input line")
	}
	if m.Value("private_output") != "" || m.Value("output") != "" {
		t.Fatalf("expected no scoring-only lines")
	}
}

func TestInputManifestRequiresResults(t *testing.T) {
	_, err := InputManifest(InputManifestParams{RefURL: "https://store/ref"})
	if !errors.Is(err, ErrMissingResults) {
		t.Fatalf("expected ErrMissingResults, got %v", err)
	}
}

func TestInputManifestMetadataLines(t *testing.T) {
	submittedAt := time.Date(2026, 3, 14, 9, 26, 53, 589793, time.UTC)
	m, err := InputManifest(InputManifestParams{
		ResURL:              "https://store/res",
		HistoryURL:          "https://store/history",
		ScoresURL:           "https://store/scores",
		CoopetitionURL:      "https://store/coopetition",
		SubmittedBy:         "ada",
		SubmittedAt:         submittedAt,
		SubmissionNumber:    7,
		PhaseNumber:         2,
		AutomaticSubmission: true,
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	// Second precision, no sub-second component.
	if got := m.Value("submitted-at"); got != "2026-03-14T09:26:53Z" {
		t.Fatalf("submitted-at: got %q", got)
	}
	if got := m.Value("competition-submission"); got != "7" {
		t.Fatalf("competition-submission: got %q", got)
	}
	if got := m.Value("competition-phase"); got != "2" {
		t.Fatalf("competition-phase: got %q", got)
	}
	if got := m.Value("automatic-submission"); got != "true" {
		t.Fatalf("automatic-submission: got %q", got)
	}
	if m.Value("ref") != "" {
		t.Fatalf("expected ref to be omitted when absent")
	}
}

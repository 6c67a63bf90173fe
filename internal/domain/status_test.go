package domain

import "testing"

func TestCanTransitionFromActiveStates(t *testing.T) {
	targets := []SubmissionStatus{StatusSubmitted, StatusRunning, StatusFinished, StatusFailed, StatusCancelled}
	for _, from := range []SubmissionStatus{StatusSubmitted, StatusRunning} {
		for _, to := range targets {
			if !CanTransition(from, to) {
				t.Fatalf("expected %s -> %s to be allowed", from, to)
			}
		}
	}
}

func TestTerminalStatesNeverTransition(t *testing.T) {
	targets := []SubmissionStatus{StatusSubmitted, StatusRunning, StatusFinished, StatusFailed, StatusCancelled}
	for _, from := range []SubmissionStatus{StatusFinished, StatusFailed, StatusCancelled} {
		if !from.IsTerminal() {
			t.Fatalf("expected %s to be terminal", from)
		}
		for _, to := range targets {
			if CanTransition(from, to) {
				t.Fatalf("expected %s -> %s to be rejected", from, to)
			}
		}
	}
}

func TestCanTransitionUnknownTarget(t *testing.T) {
	if CanTransition(StatusSubmitted, SubmissionStatus("archived")) {
		t.Fatalf("expected unknown target status to be rejected")
	}
}

func TestNormalizeSubmissionStatus(t *testing.T) {
	if got := NormalizeSubmissionStatus("  Finished "); got != StatusFinished {
		t.Fatalf("normalize: got %q", got)
	}
	if got := NormalizeSubmissionStatus("bogus"); got != "" {
		t.Fatalf("expected empty status for unknown value, got %q", got)
	}
}

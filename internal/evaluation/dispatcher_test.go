package evaluation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/arena-labs/arena-go/internal/domain"
)

func TestSoftTimeLimitDefaultsWhenUnset(t *testing.T) {
	if got := SoftTimeLimit(domain.Phase{ExecutionTimeLimit: 0}); got != 10*time.Minute {
		t.Fatalf("zero limit: got %s, want 10m", got)
	}
	if got := SoftTimeLimit(domain.Phase{ExecutionTimeLimit: -5}); got != 10*time.Minute {
		t.Fatalf("negative limit: got %s, want 10m", got)
	}
	if got := SoftTimeLimit(domain.Phase{ExecutionTimeLimit: 300}); got != 5*time.Minute {
		t.Fatalf("configured limit: got %s, want 5m", got)
	}
}

func TestDispatchEnvelope(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pub := &fakePublisher{}
	d := NewDispatcher(store, pub, stubRoutes{}, DispatcherConfig{
		DefaultDockerImage: "arena/compute-worker:latest",
		SignTTL:            time.Hour,
	}, newTestLogger(t))

	sub := baseSubmission()
	sub.Files.Runfile = "submissions/sub-1/run/run.txt"
	sub.Files.Stdout = "submissions/sub-1/run/stdout.txt"
	sub.Files.Stderr = "submissions/sub-1/run/stderr.txt"
	sub.Files.Output = "submissions/sub-1/run/output.zip"
	sub.Files.PrivateOutput = "submissions/sub-1/run/private_output.zip"
	sub.Files.DetailedResults = "submissions/sub-1/run/detailed_results.zip"

	phase := basePhase()
	phase.ExecutionTimeLimit = 0
	comp := baseCompetition()
	comp.QueueName = "gpu-pool"

	if err := d.Dispatch(ctx, "job-9", sub, phase, comp, false); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Name != QueueComputeWorker {
		t.Fatalf("queue: got %s", msg.Name)
	}
	if msg.Namespace != "gpu-pool" {
		t.Fatalf("expected competition queue namespace, got %q", msg.Namespace)
	}

	envelope := msg.Payload.(RunEnvelope)
	if envelope.ID != "job-9" || envelope.TaskType != domain.TaskTypeRun {
		t.Fatalf("unexpected envelope header: %+v", envelope)
	}
	// Zero configured limit resolves to the 600-second default budget.
	if envelope.SoftTimeLimitSeconds != 600 {
		t.Fatalf("soft time limit: got %d, want 600", envelope.SoftTimeLimitSeconds)
	}
	args := envelope.TaskArgs
	if args.SubmissionID != "sub-1" || args.Predict {
		t.Fatalf("unexpected args: %+v", args)
	}
	if args.DockerImage != "arena/compute-worker:latest" {
		t.Fatalf("expected default image, got %q", args.DockerImage)
	}
	if args.Secret != "s3cret" {
		t.Fatalf("expected submission secret in envelope")
	}
	if !strings.Contains(args.BundleURL, "run/run.txt") || !strings.Contains(args.BundleURL, "perm=read") {
		t.Fatalf("bundle url: %q", args.BundleURL)
	}
	if !strings.Contains(args.OutputURL, "perm=write") {
		t.Fatalf("output url must be writable: %q", args.OutputURL)
	}
}

func TestDispatchUsesPredictionVariantsAndImageOverride(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pub := &fakePublisher{}
	d := NewDispatcher(store, pub, stubRoutes{}, DispatcherConfig{
		DefaultDockerImage: "arena/compute-worker:latest",
		SignTTL:            time.Hour,
	}, newTestLogger(t))

	sub := baseSubmission()
	sub.DockerImage = "custom/image:1"
	sub.Files.PredictionRunfile = "submissions/sub-1/predict/run.txt"
	sub.Files.PredictionStdout = "submissions/sub-1/predict/stdout.txt"
	sub.Files.PredictionStderr = "submissions/sub-1/predict/stderr.txt"
	sub.Files.PredictionOutput = "submissions/sub-1/predict/output.zip"

	if err := d.Dispatch(ctx, "job-1", sub, basePhase(), baseCompetition(), true); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	envelope := pub.messages[0].Payload.(RunEnvelope)
	if pub.messages[0].Namespace != "default" {
		t.Fatalf("expected default namespace, got %q", pub.messages[0].Namespace)
	}
	args := envelope.TaskArgs
	if !args.Predict {
		t.Fatalf("expected prediction envelope")
	}
	if args.DockerImage != "custom/image:1" {
		t.Fatalf("expected image override, got %q", args.DockerImage)
	}
	if !strings.Contains(args.BundleURL, "predict/run.txt") {
		t.Fatalf("expected prediction bundle reference, got %q", args.BundleURL)
	}
	if !strings.Contains(args.OutputURL, "predict/output.zip") {
		t.Fatalf("expected prediction output reference, got %q", args.OutputURL)
	}
}

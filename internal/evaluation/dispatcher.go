package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arena-labs/arena-go/internal/domain"
	"github.com/arena-labs/arena-go/internal/storage/objectstore"
)

// DefaultSoftTimeLimit is the execution budget handed to workers when a
// phase does not configure one.
const DefaultSoftTimeLimit = 10 * time.Minute

type DispatcherConfig struct {
	// DefaultDockerImage runs submissions that carry no image override.
	DefaultDockerImage string

	// SignTTL bounds the lifetime of the URLs embedded in an envelope.
	SignTTL time.Duration
}

// Dispatcher publishes run envelopes to compute workers. It selects the
// phase-appropriate artifact references, signs them, and routes the publish
// to the competition's namespace.
type Dispatcher struct {
	store  objectstore.Store
	pub    Publisher
	routes RouteResolver
	cfg    DispatcherConfig
	logger *slog.Logger
}

func NewDispatcher(store objectstore.Store, pub Publisher, routes RouteResolver, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if store == nil || pub == nil || routes == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, pub: pub, routes: routes, cfg: cfg, logger: logger}
}

// SoftTimeLimit resolves a phase's execution budget; non-positive
// configuration falls back to the system default.
func SoftTimeLimit(phase domain.Phase) time.Duration {
	if phase.ExecutionTimeLimit <= 0 {
		return DefaultSoftTimeLimit
	}
	return time.Duration(phase.ExecutionTimeLimit) * time.Second
}

// Dispatch publishes one run envelope for a submission's current phase.
func (d *Dispatcher) Dispatch(ctx context.Context, jobID string, sub domain.Submission, phase domain.Phase, comp domain.Competition, isPrediction bool) error {
	if d == nil {
		return fmt.Errorf("dispatcher not initialized")
	}

	var bundleRef, stdoutRef, stderrRef, outputRef string
	if isPrediction {
		bundleRef = sub.Files.PredictionRunfile
		stdoutRef = sub.Files.PredictionStdout
		stderrRef = sub.Files.PredictionStderr
		outputRef = sub.Files.PredictionOutput
	} else {
		bundleRef = sub.Files.Runfile
		stdoutRef = sub.Files.Stdout
		stderrRef = sub.Files.Stderr
		outputRef = sub.Files.Output
	}

	image := sub.DockerImage
	if image == "" {
		image = d.cfg.DefaultDockerImage
	}

	budget := SoftTimeLimit(phase)

	envelope := RunEnvelope{
		ID:       jobID,
		TaskType: domain.TaskTypeRun,
		TaskArgs: RunArgs{
			SubmissionID:       sub.ID,
			DockerImage:        image,
			BundleURL:          d.store.Sign(ctx, bundleRef, objectstore.PermissionRead, d.cfg.SignTTL),
			StdoutURL:          d.store.Sign(ctx, stdoutRef, objectstore.PermissionWrite, d.cfg.SignTTL),
			StderrURL:          d.store.Sign(ctx, stderrRef, objectstore.PermissionWrite, d.cfg.SignTTL),
			OutputURL:          d.store.Sign(ctx, outputRef, objectstore.PermissionWrite, d.cfg.SignTTL),
			DetailedResultsURL: d.store.Sign(ctx, sub.Files.DetailedResults, objectstore.PermissionWrite, d.cfg.SignTTL),
			PrivateOutputURL:   d.store.Sign(ctx, sub.Files.PrivateOutput, objectstore.PermissionWrite, d.cfg.SignTTL),
			Secret:             sub.Secret,
			ExecutionTimeLimit: phase.ExecutionTimeLimit,
			Predict:            isPrediction,
		},
		SoftTimeLimitSeconds: int(budget / time.Second),
	}

	namespace := d.routes.Resolve(comp.QueueName)
	if err := d.pub.Publish(ctx, QueueComputeWorker, namespace, envelope); err != nil {
		return fmt.Errorf("dispatch job %s: %w", jobID, err)
	}
	d.logger.Info("dispatched run",
		"job_id", jobID,
		"submission_id", sub.ID,
		"predict", isPrediction,
		"namespace", namespace,
		"soft_time_limit_s", envelope.SoftTimeLimitSeconds,
	)
	return nil
}

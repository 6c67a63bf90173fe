package evaluation

import "context"

// Queue names consumed and produced by the evaluation pipeline.
const (
	// QueueSiteWorker carries evaluate requests from the web tier.
	QueueSiteWorker = "site-worker"
	// QueueComputeWorker carries run envelopes to compute workers.
	QueueComputeWorker = "compute-worker"
	// QueueSubmissionUpdates carries worker status callbacks back in.
	QueueSubmissionUpdates = "submission-updates"
)

// EvaluateRequest asks the orchestrator to evaluate one submission.
type EvaluateRequest struct {
	SubmissionID  string `json:"submission_id"`
	IsScoringOnly bool   `json:"is_scoring_only"`
}

// RunArgs is the task_args block of a run envelope.
type RunArgs struct {
	SubmissionID       string `json:"submission_id"`
	DockerImage        string `json:"docker_image"`
	BundleURL          string `json:"bundle_url"`
	StdoutURL          string `json:"stdout_url"`
	StderrURL          string `json:"stderr_url"`
	OutputURL          string `json:"output_url"`
	DetailedResultsURL string `json:"detailed_results_url"`
	PrivateOutputURL   string `json:"private_output_url"`
	Secret             string `json:"secret"`
	ExecutionTimeLimit int    `json:"execution_time_limit"`
	Predict            bool   `json:"predict"`
}

// RunEnvelope is the unit of work published to compute workers.
// SoftTimeLimitSeconds is the budget the worker must self-enforce; on
// exceeding it the worker must emit a failed callback for this job and
// secret rather than die silently.
type RunEnvelope struct {
	ID                   string  `json:"id"`
	TaskType             string  `json:"task_type"`
	TaskArgs             RunArgs `json:"task_args"`
	SoftTimeLimitSeconds int     `json:"soft_time_limit"`
}

// Callback statuses a worker may report.
const (
	CallbackRunning  = "running"
	CallbackFinished = "finished"
	CallbackFailed   = "failed"
)

type CallbackExtra struct {
	Traceback string         `json:"traceback,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Callback is the asynchronous status report a worker sends for a job. The
// secret is the submission's capability token; it alone authorizes the
// update.
type Callback struct {
	JobID  string        `json:"job_id"`
	Status string        `json:"status"`
	Secret string        `json:"secret"`
	Extra  CallbackExtra `json:"extra,omitempty"`
}

// Publisher posts a payload onto a named queue within a routing namespace.
type Publisher interface {
	Publish(ctx context.Context, name, namespace string, payload any) error
}

// RouteResolver maps a competition's queue name onto a publish namespace.
type RouteResolver interface {
	Resolve(queueName string) string
}

// CallbackSink accepts a synthesized worker callback, used by the
// orchestrator to drive a submission to a terminal state when dispatch
// itself fails.
type CallbackSink interface {
	SubmitCallback(ctx context.Context, cb Callback) error
}

// QueueCallbackSink publishes synthesized callbacks onto the
// submission-updates queue, the same path real worker callbacks take.
type QueueCallbackSink struct {
	Pub Publisher
}

func (s QueueCallbackSink) SubmitCallback(ctx context.Context, cb Callback) error {
	return s.Pub.Publish(ctx, QueueSubmissionUpdates, "", cb)
}

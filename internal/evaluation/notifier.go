package evaluation

import (
	"context"
	"log/slog"

	"github.com/arena-labs/arena-go/internal/domain"
)

// Notifier tells a participant their submission finished successfully.
// Actual mail delivery belongs to the web tier; the pipeline only triggers
// it, at most once per submission.
type Notifier interface {
	SubmissionFinished(ctx context.Context, sub domain.Submission, comp domain.Competition) error
}

// LogNotifier records the notification instead of delivering it.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) SubmissionFinished(_ context.Context, sub domain.Submission, comp domain.Competition) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("submission finished notification",
		"submission_id", sub.ID,
		"participant", sub.ParticipantName,
		"email", sub.ParticipantEmail,
		"competition", comp.Title,
		"url", comp.URL,
	)
	return nil
}

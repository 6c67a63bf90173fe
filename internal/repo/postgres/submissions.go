package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arena-labs/arena-go/internal/domain"
	"github.com/arena-labs/arena-go/internal/platform/auditlog"
	"github.com/arena-labs/arena-go/internal/repo"
)

const submissionColumns = `submission_id, phase_id, participant_id, participant_name,
	participant_email, notify_on_finish, status, progress, secret, docker_image,
	submission_number, submitted_at, exception_details, files`

type SubmissionStore struct {
	db     DB
	logger *slog.Logger
}

func NewSubmissionStore(db DB, logger *slog.Logger) *SubmissionStore {
	if db == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionStore{db: db, logger: logger}
}

func (s *SubmissionStore) Create(ctx context.Context, sub domain.Submission) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("submission store not initialized")
	}
	if err := sub.Validate(); err != nil {
		return err
	}
	filesJSON, err := encodeFiles(sub.Files)
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}
	progressJSON, err := encodeProgress(sub.Progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO submissions (
			submission_id,
			phase_id,
			participant_id,
			participant_name,
			participant_email,
			notify_on_finish,
			status,
			progress,
			secret,
			docker_image,
			submission_number,
			submitted_at,
			exception_details,
			files
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		strings.TrimSpace(sub.ID),
		strings.TrimSpace(sub.PhaseID),
		strings.TrimSpace(sub.ParticipantID),
		strings.TrimSpace(sub.ParticipantName),
		nullIfEmpty(sub.ParticipantEmail),
		sub.NotifyOnFinish,
		string(sub.Status),
		progressJSON,
		sub.Secret,
		nullIfEmpty(sub.DockerImage),
		sub.SubmissionNumber,
		normalizeTime(sub.SubmittedAt),
		nullIfEmpty(sub.ExceptionDetails),
		filesJSON,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *SubmissionStore) Get(ctx context.Context, id string) (domain.Submission, error) {
	if s == nil || s.db == nil {
		return domain.Submission{}, fmt.Errorf("submission store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Submission{}, fmt.Errorf("submission id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE submission_id = $1`,
		id,
	)
	return scanSubmission(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (domain.Submission, error) {
	var sub domain.Submission
	var email sql.NullString
	var status string
	var progressRaw []byte
	var dockerImage sql.NullString
	var exceptionDetails sql.NullString
	var filesRaw []byte
	if err := row.Scan(
		&sub.ID,
		&sub.PhaseID,
		&sub.ParticipantID,
		&sub.ParticipantName,
		&email,
		&sub.NotifyOnFinish,
		&status,
		&progressRaw,
		&sub.Secret,
		&dockerImage,
		&sub.SubmissionNumber,
		&sub.SubmittedAt,
		&exceptionDetails,
		&filesRaw,
	); err != nil {
		return domain.Submission{}, handleNotFound(err)
	}
	sub.ParticipantEmail = email.String
	sub.Status = domain.NormalizeSubmissionStatus(status)
	sub.DockerImage = dockerImage.String
	sub.ExceptionDetails = exceptionDetails.String
	progress, err := domain.ParsePhaseProgress(string(progressRaw))
	if err != nil {
		return domain.Submission{}, fmt.Errorf("decode progress: %w", err)
	}
	sub.Progress = progress
	files, err := decodeFiles(filesRaw)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("decode files: %w", err)
	}
	sub.Files = files
	return sub, nil
}

// Transition moves a submission to the next status under a row-level write
// lock. Once a submission is terminal the move is silently rejected: the
// latch is what makes duplicate or out-of-order worker callbacks harmless.
func (s *SubmissionStore) Transition(ctx context.Context, id string, next domain.SubmissionStatus) (repo.TransitionResult, error) {
	if s == nil || s.db == nil {
		return repo.TransitionResult{}, fmt.Errorf("submission store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return repo.TransitionResult{}, fmt.Errorf("submission id is required")
	}
	if domain.NormalizeSubmissionStatus(string(next)) == "" {
		return repo.TransitionResult{}, fmt.Errorf("unknown status %q", next)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return repo.TransitionResult{}, fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var currentRaw string
	if err := tx.QueryRowContext(
		ctx,
		`SELECT status FROM submissions WHERE submission_id = $1 FOR UPDATE`,
		id,
	).Scan(&currentRaw); err != nil {
		return repo.TransitionResult{}, handleNotFound(err)
	}
	current := domain.NormalizeSubmissionStatus(currentRaw)

	if !domain.CanTransition(current, next) {
		s.logger.Info("skipping submission status update: invalid transition",
			"submission_id", id, "from", current, "to", next)
		if err := tx.Commit(); err != nil {
			return repo.TransitionResult{}, fmt.Errorf("commit transition: %w", err)
		}
		return repo.TransitionResult{From: current, To: current, Applied: false}, nil
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE submissions SET status = $2 WHERE submission_id = $1`,
		id,
		string(next),
	); err != nil {
		return repo.TransitionResult{}, fmt.Errorf("update status: %w", err)
	}

	if _, err := auditlog.Insert(ctx, tx, auditlog.Event{
		Actor:        "evaluator",
		Action:       "submission.status",
		ResourceType: "submission",
		ResourceID:   id,
		Payload:      map[string]any{"from": string(current), "to": string(next)},
	}); err != nil {
		return repo.TransitionResult{}, fmt.Errorf("audit transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return repo.TransitionResult{}, fmt.Errorf("commit transition: %w", err)
	}
	s.logger.Info("submission status changed",
		"submission_id", id, "from", current, "to", next)
	return repo.TransitionResult{From: current, To: next, Applied: true}, nil
}

// UpdateDispatchState persists the mutable dispatch bookkeeping (file keys,
// phase progress, exception details) in one statement.
func (s *SubmissionStore) UpdateDispatchState(ctx context.Context, sub domain.Submission) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("submission store not initialized")
	}
	if strings.TrimSpace(sub.ID) == "" {
		return fmt.Errorf("submission id is required")
	}
	filesJSON, err := encodeFiles(sub.Files)
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}
	progressJSON, err := encodeProgress(sub.Progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE submissions
		 SET progress = $2, files = $3, exception_details = $4
		 WHERE submission_id = $1`,
		strings.TrimSpace(sub.ID),
		progressJSON,
		filesJSON,
		nullIfEmpty(sub.ExceptionDetails),
	)
	if err != nil {
		return fmt.Errorf("update dispatch state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *SubmissionStore) SaveTraceback(ctx context.Context, id, traceback string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("submission store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("submission id is required")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE submissions SET exception_details = $2 WHERE submission_id = $1`,
		id,
		traceback,
	)
	if err != nil {
		return fmt.Errorf("save traceback: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *SubmissionStore) ListByPhase(ctx context.Context, phaseID string) ([]domain.Submission, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("submission store not initialized")
	}
	phaseID = strings.TrimSpace(phaseID)
	if phaseID == "" {
		return nil, fmt.Errorf("phase id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+submissionColumns+`
		 FROM submissions
		 WHERE phase_id = $1
		 ORDER BY submitted_at ASC`,
		phaseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SubmissionStore) NextSubmissionNumber(ctx context.Context, phaseID, participantID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("submission store not initialized")
	}
	var max sql.NullInt64
	if err := s.db.QueryRowContext(
		ctx,
		`SELECT MAX(submission_number)
		 FROM submissions
		 WHERE phase_id = $1 AND participant_id = $2`,
		strings.TrimSpace(phaseID),
		strings.TrimSpace(participantID),
	).Scan(&max); err != nil {
		return 0, fmt.Errorf("next submission number: %w", err)
	}
	return int(max.Int64) + 1, nil
}

func (s *SubmissionStore) CountByParticipant(ctx context.Context, phaseID, participantID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("submission store not initialized")
	}
	var count int
	if err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*)
		 FROM submissions
		 WHERE phase_id = $1 AND participant_id = $2`,
		strings.TrimSpace(phaseID),
		strings.TrimSpace(participantID),
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return count, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/arena-labs/arena-go/internal/domain"
)

type JobStore struct {
	db DB
}

func NewJobStore(db DB) *JobStore {
	if db == nil {
		return nil
	}
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, taskType string, args any) (domain.Job, error) {
	if s == nil || s.db == nil {
		return domain.Job{}, fmt.Errorf("job store not initialized")
	}
	taskType = strings.TrimSpace(taskType)
	if taskType == "" {
		return domain.Job{}, fmt.Errorf("task type is required")
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return domain.Job{}, fmt.Errorf("encode task args: %w", err)
	}
	job := domain.Job{
		ID:       uuid.NewString(),
		TaskType: taskType,
		TaskArgs: argsJSON,
	}
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (job_id, task_type, task_args) VALUES ($1, $2, $3)`,
		job.ID,
		job.TaskType,
		[]byte(job.TaskArgs),
	); err != nil {
		return domain.Job{}, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

func (s *JobStore) Get(ctx context.Context, id string) (domain.Job, error) {
	if s == nil || s.db == nil {
		return domain.Job{}, fmt.Errorf("job store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Job{}, fmt.Errorf("job id is required")
	}
	var job domain.Job
	var args []byte
	err := s.db.QueryRowContext(
		ctx,
		`SELECT job_id, task_type, task_args FROM jobs WHERE job_id = $1`,
		id,
	).Scan(&job.ID, &job.TaskType, &args)
	if err != nil {
		return domain.Job{}, handleNotFound(err)
	}
	job.TaskArgs = json.RawMessage(args)
	return job, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arena-labs/arena-go/internal/domain"
)

// MetadataStore keeps worker-reported metadata per submission and pipeline
// stage. Updates merge into the stored fields rather than replacing them.
type MetadataStore struct {
	db DB
}

func NewMetadataStore(db DB) *MetadataStore {
	if db == nil {
		return nil
	}
	return &MetadataStore{db: db}
}

func (s *MetadataStore) UpsertMerge(ctx context.Context, submissionID string, stage domain.MetadataStage, fields map[string]any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("metadata store not initialized")
	}
	submissionID = strings.TrimSpace(submissionID)
	if submissionID == "" {
		return fmt.Errorf("submission id is required")
	}
	if stage != domain.MetadataStagePredict && stage != domain.MetadataStageScore {
		return fmt.Errorf("unknown metadata stage %q", stage)
	}
	if len(fields) == 0 {
		return nil
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO submission_metadata (submission_id, stage, fields)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (submission_id, stage)
		 DO UPDATE SET fields = submission_metadata.fields || EXCLUDED.fields`,
		submissionID,
		string(stage),
		fieldsJSON,
	)
	if err != nil {
		return fmt.Errorf("upsert metadata: %w", err)
	}
	return nil
}

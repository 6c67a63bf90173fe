package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/arena-labs/arena-go/internal/domain"
)

type ScoreStore struct {
	db DB
}

func NewScoreStore(db DB) *ScoreStore {
	if db == nil {
		return nil
	}
	return &ScoreStore{db: db}
}

const scoreDefColumns = `score_def_id, competition_id, key, label, sorting, is_default`

func (s *ScoreStore) GetDefByKey(ctx context.Context, competitionID, key string) (domain.ScoreDef, error) {
	if s == nil || s.db == nil {
		return domain.ScoreDef{}, fmt.Errorf("score store not initialized")
	}
	competitionID = strings.TrimSpace(competitionID)
	key = strings.TrimSpace(key)
	if competitionID == "" || key == "" {
		return domain.ScoreDef{}, fmt.Errorf("competition id and key are required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+scoreDefColumns+`
		 FROM score_defs
		 WHERE competition_id = $1 AND key = $2`,
		competitionID,
		key,
	)
	return scanScoreDef(row)
}

// DefaultDef returns the competition's designated default scoring
// definition, the one best-submission phases rank by.
func (s *ScoreStore) DefaultDef(ctx context.Context, competitionID string) (domain.ScoreDef, error) {
	if s == nil || s.db == nil {
		return domain.ScoreDef{}, fmt.Errorf("score store not initialized")
	}
	competitionID = strings.TrimSpace(competitionID)
	if competitionID == "" {
		return domain.ScoreDef{}, fmt.Errorf("competition id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+scoreDefColumns+`
		 FROM score_defs
		 WHERE competition_id = $1 AND is_default
		 ORDER BY key ASC
		 LIMIT 1`,
		competitionID,
	)
	return scanScoreDef(row)
}

func scanScoreDef(row rowScanner) (domain.ScoreDef, error) {
	var def domain.ScoreDef
	var sorting string
	if err := row.Scan(&def.ID, &def.CompetitionID, &def.Key, &def.Label, &sorting, &def.IsDefault); err != nil {
		return domain.ScoreDef{}, handleNotFound(err)
	}
	def.Sorting = domain.SortOrder(sorting)
	return def, nil
}

// Upsert records a measured value; a submission has at most one score per
// definition, so a repeated write replaces the value.
func (s *ScoreStore) Upsert(ctx context.Context, score domain.Score) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("score store not initialized")
	}
	if strings.TrimSpace(score.SubmissionID) == "" || strings.TrimSpace(score.ScoreDefID) == "" {
		return fmt.Errorf("submission id and score def id are required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO submission_scores (submission_id, score_def_id, value)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (submission_id, score_def_id) DO UPDATE SET value = EXCLUDED.value`,
		strings.TrimSpace(score.SubmissionID),
		strings.TrimSpace(score.ScoreDefID),
		score.Value,
	)
	if err != nil {
		return fmt.Errorf("upsert score: %w", err)
	}
	return nil
}

func (s *ScoreStore) ValueFor(ctx context.Context, submissionID, scoreDefID string) (float64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("score store not initialized")
	}
	var value float64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT value FROM submission_scores WHERE submission_id = $1 AND score_def_id = $2`,
		strings.TrimSpace(submissionID),
		strings.TrimSpace(scoreDefID),
	).Scan(&value)
	if err != nil {
		return 0, handleNotFound(err)
	}
	return value, nil
}

func (s *ScoreStore) PhaseValues(ctx context.Context, phaseID, scoreDefID string) ([]float64, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("score store not initialized")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT sc.value
		 FROM submission_scores sc
		 JOIN submissions sub ON sub.submission_id = sc.submission_id
		 WHERE sub.phase_id = $1 AND sc.score_def_id = $2`,
		strings.TrimSpace(phaseID),
		strings.TrimSpace(scoreDefID),
	)
	if err != nil {
		return nil, fmt.Errorf("phase score values: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/arena-labs/arena-go/internal/domain"
)

type CompetitionStore struct {
	db DB
}

func NewCompetitionStore(db DB) *CompetitionStore {
	if db == nil {
		return nil
	}
	return &CompetitionStore{db: db}
}

func (s *CompetitionStore) GetCompetition(ctx context.Context, id string) (domain.Competition, error) {
	if s == nil || s.db == nil {
		return domain.Competition{}, fmt.Errorf("competition store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Competition{}, fmt.Errorf("competition id is required")
	}
	var comp domain.Competition
	var url sql.NullString
	var queueName sql.NullString
	err := s.db.QueryRowContext(
		ctx,
		`SELECT competition_id, title, url, force_submission_to_leaderboard, queue_name
		 FROM competitions
		 WHERE competition_id = $1`,
		id,
	).Scan(&comp.ID, &comp.Title, &url, &comp.ForceSubmissionToLeaderboard, &queueName)
	if err != nil {
		return domain.Competition{}, handleNotFound(err)
	}
	comp.URL = url.String
	comp.QueueName = queueName.String
	return comp, nil
}

func (s *CompetitionStore) GetPhase(ctx context.Context, id string) (domain.Phase, error) {
	if s == nil || s.db == nil {
		return domain.Phase{}, fmt.Errorf("competition store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Phase{}, fmt.Errorf("phase id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+phaseColumns+` FROM phases WHERE phase_id = $1`,
		id,
	)
	return scanPhase(row)
}

func (s *CompetitionStore) ListPhases(ctx context.Context, competitionID string) ([]domain.Phase, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("competition store not initialized")
	}
	competitionID = strings.TrimSpace(competitionID)
	if competitionID == "" {
		return nil, fmt.Errorf("competition id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+phaseColumns+`
		 FROM phases
		 WHERE competition_id = $1
		 ORDER BY phase_number ASC`,
		competitionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list phases: %w", err)
	}
	defer rows.Close()

	var out []domain.Phase
	for rows.Next() {
		phase, err := scanPhase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, phase)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const phaseColumns = `phase_id, competition_id, phase_number, input_data, reference_data,
	scoring_program, execution_time_limit, is_scoring_only, is_blind,
	force_best_to_leaderboard, auto_migration`

func scanPhase(row rowScanner) (domain.Phase, error) {
	var phase domain.Phase
	var inputData sql.NullString
	var referenceData sql.NullString
	var scoringProgram sql.NullString
	if err := row.Scan(
		&phase.ID,
		&phase.CompetitionID,
		&phase.Number,
		&inputData,
		&referenceData,
		&scoringProgram,
		&phase.ExecutionTimeLimit,
		&phase.IsScoringOnly,
		&phase.IsBlind,
		&phase.ForceBestToLeaderboard,
		&phase.AutoMigration,
	); err != nil {
		return domain.Phase{}, handleNotFound(err)
	}
	phase.InputData = inputData.String
	phase.ReferenceData = referenceData.String
	phase.ScoringProgram = scoringProgram.String
	return phase, nil
}

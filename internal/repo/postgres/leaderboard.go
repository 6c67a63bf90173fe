package postgres

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/arena-labs/arena-go/internal/domain"
)

type LeaderboardStore struct {
	db DB
}

func NewLeaderboardStore(db DB) *LeaderboardStore {
	if db == nil {
		return nil
	}
	return &LeaderboardStore{db: db}
}

// Promote places a submission on its phase's leaderboard. The insert is
// keyed on the submission id, so promoting twice has no further effect.
func (s *LeaderboardStore) Promote(ctx context.Context, submissionID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("leaderboard store not initialized")
	}
	submissionID = strings.TrimSpace(submissionID)
	if submissionID == "" {
		return fmt.Errorf("submission id is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO leaderboard_entries (submission_id, phase_id)
		 SELECT submission_id, phase_id FROM submissions WHERE submission_id = $1
		 ON CONFLICT (submission_id) DO NOTHING`,
		submissionID,
	)
	if err != nil {
		return fmt.Errorf("promote submission: %w", err)
	}
	return nil
}

// ResultsCSV exports a phase's results: one row per scored submission, one
// column per scoring definition. includeHidden adds submissions whose scores
// are not shown on the public leaderboard.
func (s *LeaderboardStore) ResultsCSV(ctx context.Context, phaseID string, includeHidden bool) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("leaderboard store not initialized")
	}
	phaseID = strings.TrimSpace(phaseID)
	if phaseID == "" {
		return nil, fmt.Errorf("phase id is required")
	}

	defs, err := s.phaseScoreDefs(ctx, phaseID)
	if err != nil {
		return nil, err
	}

	query := `SELECT sub.participant_name, sub.submission_id, sub.submission_number,
			sc.score_def_id, sc.value
		 FROM submissions sub
		 JOIN submission_scores sc ON sc.submission_id = sub.submission_id
		 WHERE sub.phase_id = $1 AND sub.status = 'finished'`
	if !includeHidden {
		query += ` AND EXISTS (
			SELECT 1 FROM leaderboard_entries le WHERE le.submission_id = sub.submission_id
		)`
	}
	query += ` ORDER BY sub.participant_name ASC, sub.submission_number ASC`

	rows, err := s.db.QueryContext(ctx, query, phaseID)
	if err != nil {
		return nil, fmt.Errorf("results query: %w", err)
	}
	defer rows.Close()

	type resultRow struct {
		participant string
		number      int
		values      map[string]float64
	}
	bySubmission := map[string]*resultRow{}
	var order []string
	for rows.Next() {
		var participant, submissionID, defID string
		var number int
		var value float64
		if err := rows.Scan(&participant, &submissionID, &number, &defID, &value); err != nil {
			return nil, err
		}
		row, ok := bySubmission[submissionID]
		if !ok {
			row = &resultRow{participant: participant, number: number, values: map[string]float64{}}
			bySubmission[submissionID] = row
			order = append(order, submissionID)
		}
		row.values[defID] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"participant", "submission_id", "submission_number"}
	for _, def := range defs {
		header = append(header, def.Key)
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, id := range order {
		row := bySubmission[id]
		record := []string{row.participant, id, strconv.Itoa(row.number)}
		for _, def := range defs {
			if v, ok := row.values[def.ID]; ok {
				record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
			} else {
				record = append(record, "")
			}
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *LeaderboardStore) phaseScoreDefs(ctx context.Context, phaseID string) ([]domain.ScoreDef, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+scoreDefColumns+`
		 FROM score_defs
		 WHERE competition_id = (SELECT competition_id FROM phases WHERE phase_id = $1)
		 ORDER BY key ASC`,
		phaseID,
	)
	if err != nil {
		return nil, fmt.Errorf("phase score defs: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoreDef
	for rows.Next() {
		def, err := scanScoreDef(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/arena-labs/arena-go/internal/domain"
)

// StatsStore aggregates the cross-submission statistics handed to scoring
// programs in the coopetition archive.
type StatsStore struct {
	db DB
}

func NewStatsStore(db DB) *StatsStore {
	if db == nil {
		return nil
	}
	return &StatsStore{db: db}
}

func (s *StatsStore) PhaseSubmissionStats(ctx context.Context, phaseID string) ([]domain.SubmissionStats, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("stats store not initialized")
	}
	phaseID = strings.TrimSpace(phaseID)
	if phaseID == "" {
		return nil, fmt.Errorf("phase id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT sub.participant_name,
			sub.submission_id,
			sub.when_made_public,
			sub.when_unmade_public,
			sub.started_at,
			sub.completed_at,
			sub.download_count,
			sub.submission_number,
			COUNT(r.reaction) FILTER (WHERE r.reaction = 'like') AS like_count,
			COUNT(r.reaction) FILTER (WHERE r.reaction = 'dislike') AS dislike_count
		 FROM submissions sub
		 LEFT JOIN submission_reactions r ON r.submission_id = sub.submission_id
		 WHERE sub.phase_id = $1 AND sub.status = 'finished'
		 GROUP BY sub.submission_id
		 ORDER BY sub.submission_number ASC`,
		phaseID,
	)
	if err != nil {
		return nil, fmt.Errorf("phase submission stats: %w", err)
	}
	defer rows.Close()

	var out []domain.SubmissionStats
	for rows.Next() {
		var st domain.SubmissionStats
		var madePublic, unmadePublic, startedAt, completedAt sql.NullTime
		if err := rows.Scan(
			&st.Participant,
			&st.SubmissionID,
			&madePublic,
			&unmadePublic,
			&startedAt,
			&completedAt,
			&st.DownloadCount,
			&st.SubmissionNumber,
			&st.LikeCount,
			&st.DislikeCount,
		); err != nil {
			return nil, err
		}
		st.WhenMadePublic = timePtr(madePublic)
		st.WhenUnmadePublic = timePtr(unmadePublic)
		st.StartedAt = timePtr(startedAt)
		st.CompletedAt = timePtr(completedAt)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *StatsStore) CompetitionDownloads(ctx context.Context, competitionID string) ([]domain.DownloadRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("stats store not initialized")
	}
	competitionID = strings.TrimSpace(competitionID)
	if competitionID == "" {
		return nil, fmt.Errorf("competition id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT d.submission_id, sub.participant_name, d.downloaded_by, d.downloaded_at
		 FROM submission_downloads d
		 JOIN submissions sub ON sub.submission_id = d.submission_id
		 JOIN phases p ON p.phase_id = sub.phase_id
		 WHERE p.competition_id = $1
		 ORDER BY d.downloaded_at ASC`,
		competitionID,
	)
	if err != nil {
		return nil, fmt.Errorf("competition downloads: %w", err)
	}
	defer rows.Close()

	var out []domain.DownloadRecord
	for rows.Next() {
		var rec domain.DownloadRecord
		if err := rows.Scan(&rec.SubmissionID, &rec.Owner, &rec.DownloadedBy, &rec.At); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

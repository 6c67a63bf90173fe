package bundle

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/arena-labs/arena-go/internal/domain"
)

// PhaseStats is one phase's slice of the coopetition archive.
type PhaseStats struct {
	Number      int
	Submissions []domain.SubmissionStats

	// ScoresCSV is the phase's full results export, including scores not
	// shown on the public leaderboard.
	ScoresCSV []byte
}

// CoopetitionStats is everything the coopetition archive publishes to the
// scoring program: per-phase submission statistics and scores, every
// download event in the competition, and the current submitter.
type CoopetitionStats struct {
	Phases      []PhaseStats
	Downloads   []domain.DownloadRecord
	CurrentUser string
}

// CoopetitionArchive assembles the zip handed to scoring programs alongside
// the inputs.
func CoopetitionArchive(stats CoopetitionStats) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, phase := range stats.Phases {
		submissionsCSV, err := phaseSubmissionsCSV(phase.Submissions)
		if err != nil {
			return nil, err
		}
		if err := writeArchiveFile(zw, fmt.Sprintf("coopetition_phase_%d.txt", phase.Number), submissionsCSV); err != nil {
			return nil, err
		}
	}
	for _, phase := range stats.Phases {
		if err := writeArchiveFile(zw, fmt.Sprintf("coopetition_scores_phase_%d.txt", phase.Number), phase.ScoresCSV); err != nil {
			return nil, err
		}
	}

	downloadsCSV, err := downloadsCSV(stats.Downloads)
	if err != nil {
		return nil, err
	}
	if err := writeArchiveFile(zw, "coopetition_downloads.txt", downloadsCSV); err != nil {
		return nil, err
	}
	if err := writeArchiveFile(zw, "current_user.txt", []byte(stats.CurrentUser)); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close coopetition archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeArchiveFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func phaseSubmissionsCSV(rows []domain.SubmissionStats) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"participant",
		"submission_id",
		"when_made_public",
		"when_unmade_public",
		"started_at",
		"completed_at",
		"download_count",
		"submission_number",
		"like_count",
		"dislike_count",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := []string{
			row.Participant,
			row.SubmissionID,
			formatTimePtr(row.WhenMadePublic),
			formatTimePtr(row.WhenUnmadePublic),
			formatTimePtr(row.StartedAt),
			formatTimePtr(row.CompletedAt),
			strconv.Itoa(row.DownloadCount),
			strconv.Itoa(row.SubmissionNumber),
			strconv.Itoa(row.LikeCount),
			strconv.Itoa(row.DislikeCount),
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

func downloadsCSV(records []domain.DownloadRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"submission_pk", "submission_owner", "downloaded_by", "time_of_download"}); err != nil {
		return nil, err
	}
	for _, rec := range records {
		record := []string{
			rec.SubmissionID,
			rec.Owner,
			rec.DownloadedBy,
			rec.At.UTC().Format(time.RFC3339),
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

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

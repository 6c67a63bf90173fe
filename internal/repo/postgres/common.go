package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/arena-labs/arena-go/internal/domain"
	"github.com/arena-labs/arena-go/internal/repo"
)

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func nullIfEmpty(value string) sql.NullString {
	value = strings.TrimSpace(value)
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func handleNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repo.ErrNotFound
	}
	return err
}

// filesJSON is the persisted shape of domain.SubmissionFiles.
type filesJSON struct {
	Bundle            string `json:"bundle,omitempty"`
	Runfile           string `json:"runfile,omitempty"`
	Inputfile         string `json:"inputfile,omitempty"`
	Stdout            string `json:"stdout,omitempty"`
	Stderr            string `json:"stderr,omitempty"`
	Output            string `json:"output,omitempty"`
	PrivateOutput     string `json:"private_output,omitempty"`
	DetailedResults   string `json:"detailed_results,omitempty"`
	History           string `json:"history,omitempty"`
	Scores            string `json:"scores,omitempty"`
	Coopetition       string `json:"coopetition,omitempty"`
	PredictionRunfile string `json:"prediction_runfile,omitempty"`
	PredictionStdout  string `json:"prediction_stdout,omitempty"`
	PredictionStderr  string `json:"prediction_stderr,omitempty"`
	PredictionOutput  string `json:"prediction_output,omitempty"`
}

func encodeFiles(f domain.SubmissionFiles) ([]byte, error) {
	return json.Marshal(filesJSON{
		Bundle:            f.Bundle,
		Runfile:           f.Runfile,
		Inputfile:         f.Inputfile,
		Stdout:            f.Stdout,
		Stderr:            f.Stderr,
		Output:            f.Output,
		PrivateOutput:     f.PrivateOutput,
		DetailedResults:   f.DetailedResults,
		History:           f.History,
		Scores:            f.Scores,
		Coopetition:       f.Coopetition,
		PredictionRunfile: f.PredictionRunfile,
		PredictionStdout:  f.PredictionStdout,
		PredictionStderr:  f.PredictionStderr,
		PredictionOutput:  f.PredictionOutput,
	})
}

func decodeFiles(raw []byte) (domain.SubmissionFiles, error) {
	if len(raw) == 0 {
		return domain.SubmissionFiles{}, nil
	}
	var f filesJSON
	if err := json.Unmarshal(raw, &f); err != nil {
		return domain.SubmissionFiles{}, err
	}
	return domain.SubmissionFiles{
		Bundle:            f.Bundle,
		Runfile:           f.Runfile,
		Inputfile:         f.Inputfile,
		Stdout:            f.Stdout,
		Stderr:            f.Stderr,
		Output:            f.Output,
		PrivateOutput:     f.PrivateOutput,
		DetailedResults:   f.DetailedResults,
		History:           f.History,
		Scores:            f.Scores,
		Coopetition:       f.Coopetition,
		PredictionRunfile: f.PredictionRunfile,
		PredictionStdout:  f.PredictionStdout,
		PredictionStderr:  f.PredictionStderr,
		PredictionOutput:  f.PredictionOutput,
	}, nil
}

func encodeProgress(p domain.PhaseProgress) ([]byte, error) {
	return json.Marshal(p)
}

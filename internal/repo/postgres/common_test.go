package postgres

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/arena-labs/arena-go/internal/domain"
	"github.com/arena-labs/arena-go/internal/repo"
)

func TestFilesCodecRoundTrip(t *testing.T) {
	files := domain.SubmissionFiles{
		Bundle:            "uploads/bundle.zip",
		Runfile:           "submissions/sub-1/run/run.txt",
		Output:            "submissions/sub-1/run/output.zip",
		PredictionRunfile: "submissions/sub-1/predict/run.txt",
		PredictionOutput:  "submissions/sub-1/predict/output.zip",
	}
	raw, err := encodeFiles(files)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(string(raw), "stdout") {
		t.Fatalf("expected empty keys to be omitted: %s", raw)
	}
	got, err := decodeFiles(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != files {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDecodeFilesEmpty(t *testing.T) {
	got, err := decodeFiles(nil)
	if err != nil {
		t.Fatalf("decode nil: %v", err)
	}
	if got != (domain.SubmissionFiles{}) {
		t.Fatalf("expected zero files, got %+v", got)
	}
}

func TestEncodeProgressWireShape(t *testing.T) {
	raw, err := encodeProgress(domain.PhaseProgress{PredictJobID: "j1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(raw) != `{"predict":"j1"}` {
		t.Fatalf("unexpected shape: %s", raw)
	}
}

func TestHandleNotFound(t *testing.T) {
	if err := handleNotFound(sql.ErrNoRows); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	sentinel := errors.New("boom")
	if err := handleNotFound(sentinel); !errors.Is(err, sentinel) {
		t.Fatalf("expected passthrough, got %v", err)
	}
}

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty("  "); v.Valid {
		t.Fatalf("expected null for blank string")
	}
	if v := nullIfEmpty(" x "); !v.Valid || v.String != "x" {
		t.Fatalf("expected trimmed value, got %+v", v)
	}
}

package bundle

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ScoresFileName is the text file a scoring program must produce inside its
// output archive.
const ScoresFileName = "scores.txt"

// ErrScoresNotFound means the worker's output archive carries no scores
// file; the submission cannot be scored.
var ErrScoresNotFound = errors.New("scores.txt not found in result bundle")

// NamedBlob is one file extracted from a worker's result bundle, in archive
// order.
type NamedBlob struct {
	Name string
	Data []byte
}

// ParseResultBundle decodes a worker output archive into its ordered files.
// All archive inspection happens here; reconciliation logic works on the
// decoded blobs only.
func ParseResultBundle(data []byte) ([]NamedBlob, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open result bundle: %w", err)
	}
	blobs := make([]NamedBlob, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		blobs = append(blobs, NamedBlob{Name: f.Name, Data: content})
	}
	return blobs, nil
}

// ScoresFile returns the scores file from a decoded result bundle.
func ScoresFile(blobs []NamedBlob) ([]byte, error) {
	for _, b := range blobs {
		if b.Name == ScoresFileName {
			return b.Data, nil
		}
	}
	return nil, ErrScoresNotFound
}

// ScoreLine is one parsed "label: value" line of a scores file.
type ScoreLine struct {
	Label string
	Value float64
}

// ParseScores parses the newline-delimited "label: value" scores format.
// Blank lines are skipped; each non-empty line must contain exactly one
// colon and a float value.
func ParseScores(data []byte) ([]ScoreLine, error) {
	var out []ScoreLine
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Count(line, ":") != 1 {
			return nil, fmt.Errorf("line %d: expected one colon in %q", i+1, line)
		}
		label, raw, _ := strings.Cut(line, ":")
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, fmt.Errorf("line %d: empty label", i+1)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse value for %q: %w", i+1, label, err)
		}
		out = append(out, ScoreLine{Label: label, Value: value})
	}
	return out, nil
}

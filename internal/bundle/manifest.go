// Package bundle builds the text manifests handed to compute workers and
// decodes the result bundles they produce. Manifests are newline-delimited
// "key: value" lines; values are signed URLs or literal metadata.
package bundle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingProgram means a run manifest had no resolvable program
	// reference; dispatching such a bundle would hand a worker nothing to
	// execute.
	ErrMissingProgram = errors.New("program reference is missing")

	// ErrMissingResults means an input manifest had no resolvable results
	// reference (neither generated predictions nor an uploaded result).
	ErrMissingResults = errors.New("results reference is missing")
)

type Line struct {
	Key   string
	Value string
}

// Manifest is an ordered list of key: value lines.
type Manifest struct {
	lines []Line
}

func (m *Manifest) Append(key, value string) {
	m.lines = append(m.lines, Line{Key: key, Value: value})
}

func (m *Manifest) Lines() []Line {
	out := make([]Line, len(m.lines))
	copy(out, m.lines)
	return out
}

// Value returns the first value stored under key, or "".
func (m *Manifest) Value(key string) string {
	for _, l := range m.lines {
		if l.Key == key {
			return l.Value
		}
	}
	return ""
}

func (m *Manifest) Bytes() []byte {
	parts := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		parts = append(parts, fmt.Sprintf("%s: %s", l.Key, l.Value))
	}
	return []byte(strings.Join(parts, "\n"))
}

// RunManifestParams describes one unit of work. ProgramURL is required;
// InputURL is optional (prediction runs take the phase input data, scoring
// runs take the input manifest). Stdout/stderr are write URLs, and scoring
// runs add private_output and output write URLs.
type RunManifestParams struct {
	ProgramURL       string
	InputURL         string
	StdoutURL        string
	StderrURL        string
	PrivateOutputURL string
	OutputURL        string
}

func RunManifest(p RunManifestParams) (*Manifest, error) {
	if strings.TrimSpace(p.ProgramURL) == "" {
		return nil, ErrMissingProgram
	}
	m := &Manifest{}
	m.Append("program", p.ProgramURL)
	if strings.TrimSpace(p.InputURL) != "" {
		m.Append("input", p.InputURL)
	}
	m.Append("stdout", p.StdoutURL)
	m.Append("stderr", p.StderrURL)
	if strings.TrimSpace(p.PrivateOutputURL) != "" {
		m.Append("private_output", p.PrivateOutputURL)
	}
	if strings.TrimSpace(p.OutputURL) != "" {
		m.Append("output", p.OutputURL)
	}
	return m, nil
}

// InputManifestParams describes the scoring-phase inputs: the reference
// data, the results to score, auxiliary artifacts and literal submission
// metadata.
type InputManifestParams struct {
	RefURL         string // optional reference data
	ResURL         string // required: predictions or uploaded results
	HistoryURL     string
	ScoresURL      string
	CoopetitionURL string

	SubmittedBy      string
	SubmittedAt      time.Time
	SubmissionNumber int
	PhaseNumber      int

	// AutomaticSubmission is true exactly when this is the participant's
	// first submission in a phase with auto-migration enabled.
	AutomaticSubmission bool
}

func InputManifest(p InputManifestParams) (*Manifest, error) {
	if strings.TrimSpace(p.ResURL) == "" {
		return nil, ErrMissingResults
	}
	m := &Manifest{}
	if strings.TrimSpace(p.RefURL) != "" {
		m.Append("ref", p.RefURL)
	}
	m.Append("res", p.ResURL)
	m.Append("history", p.HistoryURL)
	m.Append("scores", p.ScoresURL)
	m.Append("coopetition", p.CoopetitionURL)
	m.Append("submitted-by", p.SubmittedBy)
	m.Append("submitted-at", p.SubmittedAt.UTC().Truncate(time.Second).Format(time.RFC3339))
	m.Append("competition-submission", strconv.Itoa(p.SubmissionNumber))
	m.Append("competition-phase", strconv.Itoa(p.PhaseNumber))
	m.Append("automatic-submission", strconv.FormatBool(p.AutomaticSubmission))
	return m, nil
}

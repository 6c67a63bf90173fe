package domain

// SortOrder states whether lower or higher score values rank better.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"  // lower is better
	SortDescending SortOrder = "desc" // higher is better
)

// ScoreDef is a named metric configured for a competition's leaderboard.
type ScoreDef struct {
	ID            string
	CompetitionID string
	Key           string
	Label         string
	Sorting       SortOrder
	IsDefault     bool
}

// Score is one measured value of a metric for one submission. A submission
// has at most one score per definition.
type Score struct {
	SubmissionID string
	ScoreDefID   string
	Value        float64
}

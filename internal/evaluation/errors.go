package evaluation

import (
	"errors"
	"fmt"
)

// ErrSecretMismatch means a callback presented a secret that does not match
// the submission's stored one. The callback is rejected outright and the
// submission is left untouched.
var ErrSecretMismatch = errors.New("callback secret does not match submission")

// SubmissionError ties a processing failure to the submission it concerns.
// The callback consumer catches it and forces the submission to failed so
// no error can leave a submission stuck in a non-terminal state.
type SubmissionError struct {
	SubmissionID string
	Err          error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission %s: %v", e.SubmissionID, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

package errors

import (
	stdErrors "errors"
	"fmt"
)

// StageError records which pipeline stage produced an error.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the stage name. A nil err yields nil.
func NewStageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the name of the stage that produced err, or "" when err
// does not carry one.
func StageOf(err error) string {
	var stageErr *StageError
	if stdErrors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}

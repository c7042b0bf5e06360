package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks lookups for ids that do not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotReady marks result reads against jobs that have not completed yet.
	// Callers recover by polling.
	ErrNotReady = errors.New("job not ready")

	// ErrSendRejected marks notification sends that would deliver to nobody.
	ErrSendRejected = errors.New("send rejected")

	// ErrTimeout marks pipeline runs that exceeded their wall-clock budget.
	ErrTimeout = errors.New("processing timed out")
)

// ValidationError reports invalid caller input. Row is 1-based and set only
// for tabular input; 0 means the error is not tied to a specific row.
type ValidationError struct {
	Row    int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("validation: row %d: %s: %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// PipelineError wraps a failure from one stage of job execution. The worker
// converts it into the job's terminal failed state; it never escapes the pool.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

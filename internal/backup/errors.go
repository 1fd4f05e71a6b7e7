package backup

import "errors"

var (
	ErrNotFound    = errors.New("job not found")
	ErrDuplicateID = errors.New("job id already exists")
	ErrActiveJob   = errors.New("job already in progress")
	ErrTerminal    = errors.New("job already finished")
	ErrTooMuchData = errors.New("too much data to export")
)

// ActiveJobError carries the job that blocked an exclusive creation, so
// the caller can report its id and progress.
type ActiveJobError struct {
	Active *Job
}

func (e *ActiveJobError) Error() string {
	return "a job of this type is already in progress"
}

func (e *ActiveJobError) Is(target error) bool {
	return target == ErrActiveJob
}

package selector

import "fmt"

// NoPipelinesError is returned when a branch has no pipelines at all.
type NoPipelinesError struct {
	Project string
	Branch  string
}

func (e *NoPipelinesError) Error() string {
	return fmt.Sprintf("Project %s doesn't have any pipelines for branch %s", e.Project, e.Branch)
}

// InsufficientPipelinesError is returned when the requested offset reaches past
// the pipelines the branch actually has.
type InsufficientPipelinesError struct {
	Project   string
	Branch    string
	Available int
}

func (e *InsufficientPipelinesError) Error() string {
	return fmt.Sprintf("Project %s has only %d pipelines for branch %s", e.Project, e.Available, e.Branch)
}

// JobNameNotFoundError means no job of the pipeline carries the requested name.
// The driver recovers from it by listing the pipeline's jobs.
type JobNameNotFoundError struct {
	Name string
}

func (e *JobNameNotFoundError) Error() string {
	return fmt.Sprintf("Job %s not found", e.Name)
}

// IndexOutOfRangeError means the occurrence index does not address one of the
// jobs sharing the requested name.
type IndexOutOfRangeError struct {
	Name    string
	Index   int
	Matches int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("cannot select #%d of job %s: only %d jobs have that name", e.Index, e.Name, e.Matches)
}

package domain

import "time"

// JobStatus is the lifecycle state of a pipeline or job as reported by GitLab.
type JobStatus string

const (
	StatusCreated   JobStatus = "created"
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusSuccess   JobStatus = "success"
	StatusFailed    JobStatus = "failed"
	StatusCanceled  JobStatus = "canceled"
	StatusManual    JobStatus = "manual"
	StatusSkipped   JobStatus = "skipped"
	StatusScheduled JobStatus = "scheduled"
)

// Pipeline identifies one resolved CI pipeline.
type Pipeline struct {
	ID     int
	Ref    string
	Status JobStatus
	WebURL string
}

// Artifact describes the archive a job uploaded.
type Artifact struct {
	Filename string
	Size     int64
}

// Job is a single unit of work within a pipeline, as returned by a listing or a lookup.
// StartedAt and FinishedAt are nil until the job has started or finished.
type Job struct {
	ID         int
	Name       string
	Stage      string
	Status     JobStatus
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Duration   time.Duration
	WebURL     string
	Artifact   *Artifact
}

// Finished reports whether the job has a finish timestamp.
func (j Job) Finished() bool {
	return j.FinishedAt != nil
}

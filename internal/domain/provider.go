package domain

import (
	"context"
	"io"
)

// JobSource is the port the resolver and the driver use to reach the CI server.
// It is bound to a single project; adapters decide how that project is addressed.
type JobSource interface {
	// ListPipelines returns pipelines of branch, newest first. limit bounds how many
	// pipelines the adapter needs to fetch; limit <= 0 means a single page.
	ListPipelines(ctx context.Context, branch string, limit int) ([]Pipeline, error)
	GetPipeline(ctx context.Context, id int) (Pipeline, error)
	// ListJobs returns the jobs of a pipeline in the server's native order.
	ListJobs(ctx context.Context, pipelineID int) ([]Job, error)
	GetJob(ctx context.Context, id int) (JobHandle, error)
}

// JobHandle is a live view of a single job.
// Refresh mutates the handle in place; Job and Finished reflect the last refresh.
type JobHandle interface {
	Job() Job
	Trace(ctx context.Context) ([]byte, error)
	Refresh(ctx context.Context) error
	Finished() bool
	Artifact() (Artifact, bool)
	StreamArtifact(ctx context.Context, w io.Writer) error
}

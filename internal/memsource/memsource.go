// Package memsource is an in-memory domain.JobSource used by tests.
//
// Jobs replay a fixed sequence of trace snapshots: every Refresh advances to the
// next snapshot and sticks at the last one.
package memsource

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/waabox/gitlab-trace/internal/domain"
)

// Snapshot is what the server reports for a job at one point in time.
type Snapshot struct {
	Trace    string
	Finished bool
}

// Job is a scripted job.
type Job struct {
	Meta      domain.Job
	Snapshots []Snapshot
	// ArtifactData is streamed by StreamArtifact when Meta.Artifact is set.
	ArtifactData string
	// TraceErr, when set, is returned by Trace once the job reaches snapshot FailAt.
	TraceErr error
	FailAt   int
}

// Source is an in-memory JobSource.
type Source struct {
	// Pipelines maps a branch to its pipelines, newest first.
	Pipelines map[string][]domain.Pipeline
	// PipelineJobs maps a pipeline ID to its jobs in listing order.
	PipelineJobs map[int][]domain.Job
	// Jobs maps a job ID to its scripted behavior.
	Jobs map[int]*Job
	// Err, when set, is returned by every call.
	Err error

	mu    sync.Mutex
	calls map[string]int
}

var _ domain.JobSource = (*Source)(nil)

// Calls returns how many times the named method was invoked.
func (s *Source) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Source) record(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[method]++
}

func (s *Source) ListPipelines(_ context.Context, branch string, limit int) ([]domain.Pipeline, error) {
	s.record("ListPipelines")
	if s.Err != nil {
		return nil, s.Err
	}
	pipelines := s.Pipelines[branch]
	if limit > 0 && len(pipelines) > limit {
		pipelines = pipelines[:limit]
	}
	out := make([]domain.Pipeline, len(pipelines))
	copy(out, pipelines)
	return out, nil
}

func (s *Source) GetPipeline(_ context.Context, id int) (domain.Pipeline, error) {
	s.record("GetPipeline")
	if s.Err != nil {
		return domain.Pipeline{}, s.Err
	}
	for _, pipelines := range s.Pipelines {
		for _, p := range pipelines {
			if p.ID == id {
				return p, nil
			}
		}
	}
	if _, ok := s.PipelineJobs[id]; ok {
		return domain.Pipeline{ID: id}, nil
	}
	return domain.Pipeline{}, fmt.Errorf("404 Not Found: pipeline %d", id)
}

func (s *Source) ListJobs(_ context.Context, pipelineID int) ([]domain.Job, error) {
	s.record("ListJobs")
	if s.Err != nil {
		return nil, s.Err
	}
	jobs := s.PipelineJobs[pipelineID]
	out := make([]domain.Job, len(jobs))
	copy(out, jobs)
	return out, nil
}

func (s *Source) GetJob(_ context.Context, id int) (domain.JobHandle, error) {
	s.record("GetJob")
	if s.Err != nil {
		return nil, s.Err
	}
	j, ok := s.Jobs[id]
	if !ok {
		return nil, fmt.Errorf("404 Not Found: job %d", id)
	}
	h := &Handle{job: j}
	h.sync()
	return h, nil
}

// Handle is the JobHandle returned by Source.GetJob.
type Handle struct {
	job       *Job
	pos       int
	meta      domain.Job
	refreshes int
}

var _ domain.JobHandle = (*Handle)(nil)

// Refreshes returns how many times Refresh was called.
func (h *Handle) Refreshes() int {
	return h.refreshes
}

func (h *Handle) sync() {
	h.meta = h.job.Meta
	if h.current().Finished {
		finished := time.Unix(0, 0).UTC()
		if h.job.Meta.FinishedAt != nil {
			finished = *h.job.Meta.FinishedAt
		}
		h.meta.FinishedAt = &finished
	} else {
		h.meta.FinishedAt = nil
	}
}

func (h *Handle) current() Snapshot {
	if len(h.job.Snapshots) == 0 {
		return Snapshot{Finished: true}
	}
	return h.job.Snapshots[h.pos]
}

func (h *Handle) Job() domain.Job {
	return h.meta
}

func (h *Handle) Trace(_ context.Context) ([]byte, error) {
	if h.job.TraceErr != nil && h.pos >= h.job.FailAt {
		return nil, h.job.TraceErr
	}
	return []byte(h.current().Trace), nil
}

func (h *Handle) Refresh(_ context.Context) error {
	h.refreshes++
	if h.pos < len(h.job.Snapshots)-1 {
		h.pos++
	}
	h.sync()
	return nil
}

func (h *Handle) Finished() bool {
	return h.meta.Finished()
}

func (h *Handle) Artifact() (domain.Artifact, bool) {
	if h.meta.Artifact == nil {
		return domain.Artifact{}, false
	}
	return *h.meta.Artifact, true
}

func (h *Handle) StreamArtifact(_ context.Context, w io.Writer) error {
	if h.meta.Artifact == nil {
		return domain.ErrNoArtifacts
	}
	_, err := io.Copy(w, strings.NewReader(h.job.ArtifactData))
	return err
}

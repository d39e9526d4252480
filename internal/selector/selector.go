// Package selector maps partially specified user input down to one concrete job.
package selector

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/waabox/gitlab-trace/internal/domain"
	"github.com/waabox/gitlab-trace/internal/report"
)

// PipelineRef names a pipeline either by ID or by its position on a branch.
// ID > 0 wins; otherwise Offset counts back from the newest pipeline of Branch.
type PipelineRef struct {
	ID     int
	Branch string
	Offset int
}

// Explicit reports whether the ref carries a pipeline ID.
func (r PipelineRef) Explicit() bool {
	return r.ID > 0
}

// Selector is the user's intent. It is one of ByJobID, ByName or Auto.
type Selector interface {
	selector()
}

// ByJobID selects a job directly.
type ByJobID struct {
	JobID int
}

// ByName selects a job of a pipeline by name.
// Occurrence is 1-based; 0 selects the last job with that name.
type ByName struct {
	Pipeline   domain.Pipeline
	Name       string
	Occurrence int
}

// Auto selects the running job of a pipeline, or nothing.
type Auto struct {
	Pipeline domain.Pipeline
}

func (ByJobID) selector() {}
func (ByName) selector()  {}
func (Auto) selector()    {}

// Resolution is the outcome of ResolveJob.
// A zero JobID means no job was resolved and all jobs should be listed.
type Resolution struct {
	JobID int
	// RunningIgnored is set when a running job was requested and none was running.
	RunningIgnored bool
}

// Resolved reports whether a concrete job was selected.
func (r Resolution) Resolved() bool {
	return r.JobID != 0
}

// Resolver resolves pipelines against a JobSource.
type Resolver struct {
	Source  domain.JobSource
	Project string
	Report  report.Reporter
}

// ResolvePipeline turns ref into a concrete pipeline.
// When announce is set, the pipeline's web URL is reported.
func (r *Resolver) ResolvePipeline(ctx context.Context, ref PipelineRef, announce bool) (domain.Pipeline, error) {
	if ref.Explicit() {
		p, err := r.Source.GetPipeline(ctx, ref.ID)
		if err != nil {
			return domain.Pipeline{}, errors.Wrapf(err, "getting pipeline %d", ref.ID)
		}
		return p, nil
	}

	offset := ref.Offset
	if offset < 0 {
		offset = 0
	}
	pipelines, err := r.Source.ListPipelines(ctx, ref.Branch, offset+1)
	if err != nil {
		return domain.Pipeline{}, errors.Wrapf(err, "listing pipelines for branch %s", ref.Branch)
	}
	if len(pipelines) == 0 {
		return domain.Pipeline{}, &NoPipelinesError{Project: r.Project, Branch: ref.Branch}
	}
	if len(pipelines) <= offset {
		return domain.Pipeline{}, &InsufficientPipelinesError{
			Project:   r.Project,
			Branch:    ref.Branch,
			Available: len(pipelines),
		}
	}

	p := pipelines[offset]
	if announce {
		r.Report.Infof("%s", p.WebURL)
	}
	return p, nil
}

// ResolveJob applies sel to jobs, the listing of the selected pipeline.
// Precedence: explicit job ID, then name, then the running job, then nothing.
// Among several jobs sharing a name the last one listed wins unless an
// occurrence is given.
func ResolveJob(sel Selector, jobs []domain.Job, running bool, rep report.Reporter) (Resolution, error) {
	switch s := sel.(type) {
	case ByJobID:
		return Resolution{JobID: s.JobID}, nil
	case ByName:
		return resolveByName(s, jobs, rep)
	case Auto:
		if !running {
			return Resolution{}, nil
		}
		for _, j := range jobs {
			if j.Status == domain.StatusRunning {
				rep.Infof("Automatically selected --job=%d (%s)", j.ID, j.Name)
				return Resolution{JobID: j.ID}, nil
			}
		}
		return Resolution{RunningIgnored: true}, nil
	default:
		return Resolution{}, errors.Errorf("unknown selector %T", sel)
	}
}

func resolveByName(s ByName, jobs []domain.Job, rep report.Reporter) (Resolution, error) {
	var found []int
	for _, j := range jobs {
		if j.Name == s.Name {
			found = append(found, j.ID)
		}
	}

	switch len(found) {
	case 0:
		return Resolution{}, &JobNameNotFoundError{Name: s.Name}
	case 1:
		rep.Infof("Job ID: %d", found[0])
		return Resolution{JobID: found[0]}, nil
	}

	rep.Infof("Found multiple jobs: %s", joinIDs(found))
	if s.Occurrence != 0 {
		if s.Occurrence < 1 || s.Occurrence > len(found) {
			return Resolution{}, &IndexOutOfRangeError{Name: s.Name, Index: s.Occurrence, Matches: len(found)}
		}
		id := found[s.Occurrence-1]
		rep.Infof("Selecting #%d: %d", s.Occurrence, id)
		return Resolution{JobID: id}, nil
	}
	id := found[len(found)-1]
	rep.Infof("Selecting the last one: %d", id)
	return Resolution{JobID: id}, nil
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}

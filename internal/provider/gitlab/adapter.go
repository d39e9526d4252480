package gitlab

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	gogitlab "github.com/xanzy/go-gitlab"

	"github.com/waabox/gitlab-trace/internal/domain"
)

const (
	defaultBaseURL = "https://gitlab.com"
	perPage        = 100
)

// Options configures a Source.
type Options struct {
	// BaseURL is the GitLab instance; empty means gitlab.com.
	BaseURL string
	Token   string
	// OAuth sends Token as an OAuth bearer token instead of a personal access token.
	OAuth      bool
	HTTPClient *http.Client
}

// Source implements domain.JobSource for one GitLab project.
type Source struct {
	project string
	opts    Options

	mu     sync.RWMutex
	client *gogitlab.Client
}

// Ensure Source fully implements domain.JobSource.
var _ domain.JobSource = (*Source)(nil)

// NewSource creates a GitLab source for project ("group/project" or a numeric ID).
func NewSource(project string, opts Options) (*Source, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	s := &Source{project: project, opts: opts}
	client, err := s.newClient(opts.Token, opts.OAuth)
	if err != nil {
		return nil, err
	}
	s.client = client
	return s, nil
}

func (s *Source) newClient(token string, oauth bool) (*gogitlab.Client, error) {
	options := []gogitlab.ClientOptionFunc{
		gogitlab.WithBaseURL(strings.TrimRight(s.opts.BaseURL, "/") + "/api/v4"),
		gogitlab.WithHTTPClient(s.opts.HTTPClient),
		gogitlab.WithoutRetries(),
	}
	var (
		client *gogitlab.Client
		err    error
	)
	if oauth {
		client, err = gogitlab.NewOAuthClient(token, options...)
	} else {
		client, err = gogitlab.NewClient(token, options...)
	}
	if err != nil {
		return nil, errors.Wrap(err, "creating gitlab client")
	}
	return client, nil
}

// SetToken replaces the credentials with an OAuth access token.
func (s *Source) SetToken(token string) error {
	client, err := s.newClient(token, true)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	return nil
}

func (s *Source) api() *gogitlab.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// ListPipelines pages through the branch's pipelines, newest first, until limit is reached.
func (s *Source) ListPipelines(ctx context.Context, branch string, limit int) ([]domain.Pipeline, error) {
	opts := &gogitlab.ListProjectPipelinesOptions{
		ListOptions: gogitlab.ListOptions{PerPage: perPage, Page: 1},
		Ref:         gogitlab.String(branch),
		OrderBy:     gogitlab.String("id"),
		Sort:        gogitlab.String("desc"),
	}
	if limit > 0 && limit < perPage {
		opts.PerPage = limit
	}

	var out []domain.Pipeline
	for {
		page, resp, err := s.api().Pipelines.ListProjectPipelines(s.project, opts, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, apiError(err, resp, "listing pipelines")
		}
		for _, p := range page {
			out = append(out, domain.Pipeline{
				ID:     p.ID,
				Ref:    p.Ref,
				Status: domain.JobStatus(p.Status),
				WebURL: p.WebURL,
			})
		}
		if limit <= 0 || len(out) >= limit || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetPipeline returns a single pipeline.
func (s *Source) GetPipeline(ctx context.Context, id int) (domain.Pipeline, error) {
	p, resp, err := s.api().Pipelines.GetPipeline(s.project, id, gogitlab.WithContext(ctx))
	if err != nil {
		return domain.Pipeline{}, apiError(err, resp, "getting pipeline")
	}
	return domain.Pipeline{
		ID:     p.ID,
		Ref:    p.Ref,
		Status: domain.JobStatus(p.Status),
		WebURL: p.WebURL,
	}, nil
}

// ListJobs returns every job of the pipeline in GitLab's order.
func (s *Source) ListJobs(ctx context.Context, pipelineID int) ([]domain.Job, error) {
	opts := &gogitlab.ListJobsOptions{
		ListOptions: gogitlab.ListOptions{PerPage: perPage, Page: 1},
	}
	var out []domain.Job
	for {
		page, resp, err := s.api().Jobs.ListPipelineJobs(s.project, pipelineID, opts, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, apiError(err, resp, "listing jobs")
		}
		for _, j := range page {
			out = append(out, toJob(j))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// GetJob returns a live handle to a job.
func (s *Source) GetJob(ctx context.Context, id int) (domain.JobHandle, error) {
	j, resp, err := s.api().Jobs.GetJob(s.project, id, gogitlab.WithContext(ctx))
	if err != nil {
		return nil, apiError(err, resp, "getting job")
	}
	return &jobHandle{src: s, job: toJob(j)}, nil
}

type jobHandle struct {
	src *Source
	job domain.Job
}

func (h *jobHandle) Job() domain.Job {
	return h.job
}

func (h *jobHandle) Trace(ctx context.Context) ([]byte, error) {
	r, resp, err := h.src.api().Jobs.GetTraceFile(h.src.project, h.job.ID, gogitlab.WithContext(ctx))
	if err != nil {
		return nil, apiError(err, resp, "fetching trace")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading trace")
	}
	return b, nil
}

func (h *jobHandle) Refresh(ctx context.Context) error {
	j, resp, err := h.src.api().Jobs.GetJob(h.src.project, h.job.ID, gogitlab.WithContext(ctx))
	if err != nil {
		return apiError(err, resp, "refreshing job")
	}
	h.job = toJob(j)
	return nil
}

func (h *jobHandle) Finished() bool {
	return h.job.Finished()
}

func (h *jobHandle) Artifact() (domain.Artifact, bool) {
	if h.job.Artifact == nil {
		return domain.Artifact{}, false
	}
	return *h.job.Artifact, true
}

func (h *jobHandle) StreamArtifact(ctx context.Context, w io.Writer) error {
	if h.job.Artifact == nil {
		return domain.ErrNoArtifacts
	}
	r, resp, err := h.src.api().Jobs.GetJobArtifacts(h.src.project, h.job.ID, gogitlab.WithContext(ctx))
	if err != nil {
		return apiError(err, resp, "downloading artifacts")
	}
	if _, err := io.Copy(w, r); err != nil {
		return errors.Wrap(err, "writing artifacts")
	}
	return nil
}

func toJob(j *gogitlab.Job) domain.Job {
	job := domain.Job{
		ID:         j.ID,
		Name:       j.Name,
		Stage:      j.Stage,
		Status:     domain.JobStatus(j.Status),
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
		Duration:   time.Duration(j.Duration * float64(time.Second)),
		WebURL:     j.WebURL,
	}
	if j.CreatedAt != nil {
		job.CreatedAt = *j.CreatedAt
	}
	if j.ArtifactsFile.Filename != "" {
		job.Artifact = &domain.Artifact{
			Filename: j.ArtifactsFile.Filename,
			Size:     int64(j.ArtifactsFile.Size),
		}
	}
	return job
}

// apiError maps HTTP 401 to domain.ErrUnauthorized and wraps everything else.
func apiError(err error, resp *gogitlab.Response, action string) error {
	if resp != nil && resp.Response != nil && resp.StatusCode == http.StatusUnauthorized {
		return errors.Wrapf(domain.ErrUnauthorized, "%s: %v", action, err)
	}
	return errors.Wrap(err, action)
}

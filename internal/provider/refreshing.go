package provider

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/waabox/gitlab-trace/internal/domain"
)

// AuthExpiredError is returned when both the access token and refresh token are
// invalid and `gitlab-trace login` has to be run again.
type AuthExpiredError struct {
	Instance string
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("%s session expired: re-authentication required (gitlab-trace login)", e.Instance)
}

// RefreshingSource wraps a JobSource and handles 401 errors by attempting a
// silent token refresh followed by one retry. Handles obtained through it are
// wrapped the same way so a token that expires mid-follow is renewed too.
type RefreshingSource struct {
	inner       domain.JobSource
	instance    string
	refreshFn   func(ctx context.Context) (string, error)
	updateToken func(string) error
}

// Ensure RefreshingSource implements JobSource.
var _ domain.JobSource = (*RefreshingSource)(nil)

// NewRefreshingSource creates a RefreshingSource.
// refreshFn is called on 401 and returns a new access token.
// updateToken injects the new token into the wrapped source.
func NewRefreshingSource(
	inner domain.JobSource,
	instance string,
	refreshFn func(ctx context.Context) (string, error),
	updateToken func(string) error,
) *RefreshingSource {
	return &RefreshingSource{
		inner:       inner,
		instance:    instance,
		refreshFn:   refreshFn,
		updateToken: updateToken,
	}
}

func (rs *RefreshingSource) do(ctx context.Context, call func() error) error {
	err := call()
	if err == nil || !errors.Is(err, domain.ErrUnauthorized) {
		return err
	}
	token, refreshErr := rs.refreshFn(ctx)
	if refreshErr != nil {
		return &AuthExpiredError{Instance: rs.instance}
	}
	if err := rs.updateToken(token); err != nil {
		return err
	}
	if err := call(); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return &AuthExpiredError{Instance: rs.instance}
		}
		return err
	}
	return nil
}

func (rs *RefreshingSource) ListPipelines(ctx context.Context, branch string, limit int) ([]domain.Pipeline, error) {
	var result []domain.Pipeline
	err := rs.do(ctx, func() error {
		var e error
		result, e = rs.inner.ListPipelines(ctx, branch, limit)
		return e
	})
	return result, err
}

func (rs *RefreshingSource) GetPipeline(ctx context.Context, id int) (domain.Pipeline, error) {
	var result domain.Pipeline
	err := rs.do(ctx, func() error {
		var e error
		result, e = rs.inner.GetPipeline(ctx, id)
		return e
	})
	return result, err
}

func (rs *RefreshingSource) ListJobs(ctx context.Context, pipelineID int) ([]domain.Job, error) {
	var result []domain.Job
	err := rs.do(ctx, func() error {
		var e error
		result, e = rs.inner.ListJobs(ctx, pipelineID)
		return e
	})
	return result, err
}

func (rs *RefreshingSource) GetJob(ctx context.Context, id int) (domain.JobHandle, error) {
	var result domain.JobHandle
	err := rs.do(ctx, func() error {
		var e error
		result, e = rs.inner.GetJob(ctx, id)
		return e
	})
	if err != nil {
		return nil, err
	}
	return &refreshingHandle{JobHandle: result, rs: rs}, nil
}

type refreshingHandle struct {
	domain.JobHandle
	rs *RefreshingSource
}

func (h *refreshingHandle) Trace(ctx context.Context) ([]byte, error) {
	var result []byte
	err := h.rs.do(ctx, func() error {
		var e error
		result, e = h.JobHandle.Trace(ctx)
		return e
	})
	return result, err
}

func (h *refreshingHandle) Refresh(ctx context.Context) error {
	return h.rs.do(ctx, func() error {
		return h.JobHandle.Refresh(ctx)
	})
}

func (h *refreshingHandle) StreamArtifact(ctx context.Context, w io.Writer) error {
	return h.rs.do(ctx, func() error {
		return h.JobHandle.StreamArtifact(ctx, w)
	})
}

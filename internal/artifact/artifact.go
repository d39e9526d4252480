// Package artifact saves job artifacts to disk.
package artifact

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/waabox/gitlab-trace/internal/domain"
)

// Download streams the job's artifact archive into dir under its original file name.
// An existing file is never overwritten and a partial file is removed on failure.
// It returns the path written.
func Download(ctx context.Context, job domain.JobHandle, dir string) (string, error) {
	meta, ok := job.Artifact()
	if !ok {
		return "", domain.ErrNoArtifacts
	}
	name := filepath.Base(meta.Filename)
	if name == "." || name == string(filepath.Separator) {
		return "", errors.Errorf("invalid artifact file name %q", meta.Filename)
	}
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", errors.Wrapf(err, "creating %s", path)
	}
	if err := job.StreamArtifact(ctx, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", errors.Wrapf(err, "writing %s", path)
	}
	return path, nil
}

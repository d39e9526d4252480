package git

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// CurrentBranch returns the branch checked out in the working copy containing dir.
// ok is false outside a working copy or on a detached HEAD.
func CurrentBranch(dir string) (branch string, ok bool) {
	gitDir, err := FindGitDir(dir)
	if err != nil {
		return "", false
	}
	head, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return "", false
	}
	ref := strings.TrimSpace(string(head))
	if !strings.HasPrefix(ref, "ref: refs/heads/") {
		return "", false
	}
	return strings.TrimPrefix(ref, "ref: refs/heads/"), true
}

// FindGitDir walks up from dir to the nearest .git directory.
// A .git file (worktrees, submodules) is followed through its "gitdir:" line.
func FindGitDir(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrap(err, "resolving directory")
	}
	for {
		candidate := filepath.Join(dir, ".git")
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return candidate, nil
			}
			return readGitFile(candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("not inside a git working copy")
		}
		dir = parent
	}
}

func readGitFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "reading .git file")
	}
	line := strings.TrimSpace(string(b))
	if !strings.HasPrefix(line, "gitdir:") {
		return "", errors.Errorf("unexpected .git file content in %s", path)
	}
	target := strings.TrimSpace(strings.TrimPrefix(line, "gitdir:"))
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return target, nil
}

package git

import (
	"bufio"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// DetectProject finds the working copy containing dir and returns the GitLab
// project path of its origin remote. ok is false when there is no usable origin.
func DetectProject(dir string) (project string, ok bool) {
	remote, ok := RemoteURL(dir)
	if !ok {
		return "", false
	}
	return ProjectFromURL(remote)
}

// RemoteURL returns the origin remote URL of the working copy containing dir.
func RemoteURL(dir string) (string, bool) {
	gitDir, err := FindGitDir(dir)
	if err != nil {
		return "", false
	}
	remote, err := originURL(configPath(gitDir))
	if err != nil {
		return "", false
	}
	return remote, true
}

// ProjectFromURL extracts "group/project" from a git remote URL.
// Supports scheme URLs (https://host/group/project.git, ssh://git@host:23/group/project)
// and scp-like URLs (git@host:group/project.git). GitHub remotes are not GitLab projects.
func ProjectFromURL(rawURL string) (string, bool) {
	host, path, ok := splitRemote(rawURL)
	if !ok || host == "github.com" {
		return "", false
	}
	project := strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	if project == "" {
		return "", false
	}
	return project, true
}

// HostFromURL returns the lowercased host of a git remote URL, without port or user.
func HostFromURL(rawURL string) (string, bool) {
	host, _, ok := splitRemote(rawURL)
	if !ok {
		return "", false
	}
	return strings.ToLower(host), true
}

func splitRemote(rawURL string) (host, path string, ok bool) {
	if strings.Contains(rawURL, "://") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", "", false
		}
		host, path = u.Hostname(), u.Path
	} else {
		// scp-like: [user@]host:path
		rest := rawURL[strings.LastIndex(rawURL, "@")+1:]
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return "", "", false
		}
		host, path = parts[0], parts[1]
	}
	return host, path, host != ""
}

// configPath returns the config file of gitDir. A linked worktree keeps only
// its HEAD; the shared config lives in the directory named by "commondir".
func configPath(gitDir string) string {
	b, err := os.ReadFile(filepath.Join(gitDir, "commondir"))
	if err != nil {
		return filepath.Join(gitDir, "config")
	}
	common := strings.TrimSpace(string(b))
	if !filepath.IsAbs(common) {
		common = filepath.Join(gitDir, common)
	}
	return filepath.Join(common, "config")
}

func originURL(configPath string) (string, error) {
	f, err := os.Open(configPath)
	if err != nil {
		return "", errors.Wrap(err, "could not open git config")
	}
	defer f.Close()

	var inOrigin bool
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == `[remote "origin"]` {
			inOrigin = true
			continue
		}
		if inOrigin && strings.HasPrefix(line, "[") {
			break
		}
		if inOrigin && strings.HasPrefix(line, "url") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1]), nil
			}
		}
	}
	return "", errors.New("no origin remote found in git config")
}

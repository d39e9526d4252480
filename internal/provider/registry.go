package provider

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/waabox/gitlab-trace/internal/git"
)

// Registry maps GitLab hosts to configured instance names.
type Registry struct {
	entries []entry
}

type entry struct {
	host     string
	instance string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register associates a host (e.g. "gitlab.example.com") with an instance name.
// Instance URLs are accepted too; their host part is used.
func (r *Registry) Register(host, instance string) {
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	host = strings.ToLower(host)
	if host == "" {
		return
	}
	r.entries = append(r.entries, entry{host: host, instance: instance})
}

// Detect returns the instance registered for the host of the given remote URL.
// Returns an error if no registered host matches.
func (r *Registry) Detect(remoteURL string) (string, error) {
	host, ok := git.HostFromURL(remoteURL)
	if !ok {
		return "", errors.Errorf("could not parse git remote: %s", remoteURL)
	}
	for _, e := range r.entries {
		if e.host == host {
			return e.instance, nil
		}
	}
	return "", errors.Errorf("no GitLab instance configured for remote: %s", remoteURL)
}

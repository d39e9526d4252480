package main

import (
	"context"
	"sort"

	"github.com/waabox/gitlab-trace/internal/auth"
	"github.com/waabox/gitlab-trace/internal/domain"
	"github.com/waabox/gitlab-trace/internal/git"
	"github.com/waabox/gitlab-trace/internal/provider"
	gitlabprovider "github.com/waabox/gitlab-trace/internal/provider/gitlab"
)

// instanceName picks the configured GitLab instance: -g, then the config's
// default, then the instance whose host matches the origin remote. An empty
// name is the [gitlab] table.
func (a *app) instanceName() string {
	if name := a.cfg.InstanceName(a.opts.gitlab); name != "" {
		return name
	}
	if len(a.cfg.Instances) == 0 {
		return ""
	}
	remote, ok := git.RemoteURL(a.env.Dir)
	if !ok {
		return ""
	}

	registry := provider.NewRegistry()
	registry.Register(a.cfg.GitLab.URLOrDefault(), "")
	names := make([]string, 0, len(a.cfg.Instances))
	for name := range a.cfg.Instances {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		registry.Register(a.cfg.Instances[name].URLOrDefault(), name)
	}

	name, err := registry.Detect(remote)
	if err != nil {
		a.rep.Debugf("%v, using the default instance", err)
		return ""
	}
	if name != "" {
		a.rep.Debugf("Using GitLab instance %s for %s", name, remote)
	}
	return name
}

func displayName(instance string) string {
	if instance == "" {
		return "gitlab"
	}
	return instance
}

// source opens the GitLab API for project. OAuth sessions are wrapped so an
// expired access token is refreshed once before giving up.
func (a *app) source(project string) (domain.JobSource, error) {
	if a.env.Source != nil {
		return a.env.Source(project)
	}

	name := a.instanceName()
	inst, err := a.cfg.Instance(name)
	if err != nil {
		return nil, err
	}
	opts := gitlabprovider.Options{BaseURL: inst.URLOrDefault(), Token: inst.Token}
	if inst.Token == "" && inst.OAuthToken != "" {
		opts.Token, opts.OAuth = inst.OAuthToken, true
	}
	src, err := gitlabprovider.NewSource(project, opts)
	if err != nil {
		return nil, err
	}
	if !opts.OAuth || inst.RefreshToken == "" {
		return src, nil
	}

	tokens := auth.NewTokenManager(&a.cfg, a.cfgPath, name)
	refresh := func(ctx context.Context) (string, error) {
		token, err := tokens.Refresh(ctx)
		if err != nil && token != "" {
			a.rep.Warnf("%v", err)
			return token, nil
		}
		return token, err
	}
	return provider.NewRefreshingSource(src, displayName(name), refresh, src.SetToken), nil
}

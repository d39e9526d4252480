package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/waabox/gitlab-trace/internal/artifact"
	"github.com/waabox/gitlab-trace/internal/config"
	"github.com/waabox/gitlab-trace/internal/domain"
	"github.com/waabox/gitlab-trace/internal/format"
	"github.com/waabox/gitlab-trace/internal/git"
	"github.com/waabox/gitlab-trace/internal/picker"
	"github.com/waabox/gitlab-trace/internal/report"
	"github.com/waabox/gitlab-trace/internal/selector"
	"github.com/waabox/gitlab-trace/internal/trace"
)

// environment is everything the commands take from the process.
type environment struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
	// Dir is the working directory used for project and branch detection
	// and as the destination of downloaded artifacts.
	Dir string
	// Interactive is set when stdin and stderr are terminals.
	Interactive bool
	// Source replaces the GitLab API when set.
	Source func(project string) (domain.JobSource, error)
}

type options struct {
	verbose    bool
	debug      bool
	gitlab     string
	configPath string
	project    string
	job        int
	running    bool
	branch     string
	tail       tailFlag
	follow     bool
	printURL   bool
	artifacts  bool
	pick       bool
}

type app struct {
	env     *environment
	rep     *report.Logger
	opts    options
	cfg     config.Config
	cfgPath string
	out     *bufio.Writer
}

func newRootCmd(env *environment, rep *report.Logger) *cobra.Command {
	a := &app{env: env, rep: rep}

	root := &cobra.Command{
		Use:   "gitlab-trace [PIPELINE-ID [JOB-NAME [NTH-JOB-OF-THAT-NAME]]]",
		Short: "Show the trace of a GitLab CI job",
		Long: `Show the trace of a GitLab CI job.

Without arguments the jobs of the last pipeline of the current branch are listed.
PIPELINE-ID selects a pipeline by ID; a negative number counts back from the
newest pipeline of the branch (-1 is the newest, -2 the one before).
JOB-NAME selects a job of that pipeline by name and NTH-JOB-OF-THAT-NAME picks
among several jobs with the same name (default: the last one).`,
		Version:       version,
		Args:          cobra.MaximumNArgs(3),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.opts.debug {
				rep.SetLevel(zapcore.DebugLevel)
			}
			return a.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePositionals(args)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("job") && a.opts.job < 1 {
				return errors.Errorf("invalid --job=%d: job IDs are positive", a.opts.job)
			}
			a.out = bufio.NewWriter(env.Out)
			defer a.out.Flush()
			return a.trace(cmd.Context(), pos)
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&a.opts.debug, "debug", false, "print even more information, for debugging")
	pf.StringVarP(&a.opts.gitlab, "gitlab", "g", "", "select a GitLab instance from the config file")
	pf.StringVar(&a.opts.configPath, "config", "", "config file (default ~/.config/gitlab-trace/config.toml)")

	f := root.Flags()
	f.BoolVarP(&a.opts.verbose, "verbose", "v", false, "print more information")
	f.StringVarP(&a.opts.project, "project", "p", "", "select GitLab project ('group/project' or the numeric ID)")
	f.IntVar(&a.opts.job, "job", 0, "show the trace of GitLab CI job with this ID")
	f.BoolVar(&a.opts.running, "running", false, "show the trace of the currently running job, if there is one (the first one if several)")
	f.StringVarP(&a.opts.branch, "branch", "b", "", "show the last pipeline of this git branch (default: the checked out branch)")
	f.StringVar(&a.opts.branch, "ref", "", "alias for --branch")
	f.VarP(&a.opts.tail, "tail", "t", "show the last N lines of the trace log (bare --tail: tail_lines from config)")
	f.Lookup("tail").NoOptDefVal = tailFromConfig
	f.BoolVarP(&a.opts.follow, "follow", "f", false, "periodically poll and output additional logs as the job runs")
	f.BoolVar(&a.opts.printURL, "print-url", false, "print the URL of the job page instead of the job's log")
	f.BoolVar(&a.opts.printURL, "print-uri", false, "alias for --print-url")
	f.BoolVarP(&a.opts.artifacts, "artifacts", "a", false, "download build artifacts")
	f.BoolVar(&a.opts.pick, "pick", false, "choose the job interactively when none was selected")
	_ = f.MarkHidden("ref")
	_ = f.MarkHidden("print-uri")

	root.AddCommand(newLoginCmd(a))
	return root
}

func (a *app) loadConfig() error {
	path := a.opts.configPath
	if path == "" {
		path = config.DefaultConfigPath()
	} else {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return err
		}
		path = expanded
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return err
	}
	a.cfg, a.cfgPath = cfg, path
	return nil
}

func (a *app) trace(ctx context.Context, pos positionals) error {
	if a.opts.job != 0 && a.opts.running {
		a.rep.Warnf("Ignoring --running because --job=%d was specified", a.opts.job)
	}
	if a.opts.job != 0 && pos.pipeline != 0 {
		a.rep.Warnf("Ignoring pipeline (%d) because --job=%d was specified", pos.pipeline, a.opts.job)
	}

	project := a.opts.project
	if project == "" {
		detected, ok := git.DetectProject(a.env.Dir)
		if !ok {
			return errors.New("Could not determine GitLab project ID")
		}
		project = detected
		a.rep.Infof("GitLab project: %s", project)
	}

	src, err := a.source(project)
	if err != nil {
		return err
	}

	jobID := a.opts.job
	if jobID == 0 {
		jobID, err = a.selectJob(ctx, src, project, pos)
		if err != nil || jobID == 0 {
			return err
		}
	} else if a.opts.branch != "" {
		a.rep.Warnf("Ignoring --branch=%s because --job=%d was specified", a.opts.branch, a.opts.job)
	}

	job, err := src.GetJob(ctx, jobID)
	if err != nil {
		return errors.Wrapf(err, "getting job %d", jobID)
	}
	meta := job.Job()
	if a.opts.verbose {
		created := "n/a"
		if !meta.CreatedAt.IsZero() {
			created = format.Timestamp(&meta.CreatedAt, created)
		}
		a.rep.Infof("Job created:    %s", created)
		a.rep.Infof("Job started:    %s", format.Timestamp(meta.StartedAt, "not yet"))
		a.rep.Infof("Job finished:   %s", format.Timestamp(meta.FinishedAt, "not yet"))
		a.rep.Infof("Job duration:   %s", format.JobDuration(meta))
	}
	a.dump("job", meta)

	window := trace.Identity
	if a.opts.tail.set() {
		window = trace.Tail(a.tailLines())
	}
	switch {
	case a.opts.printURL:
		fmt.Fprintln(a.out, meta.WebURL)
	case a.opts.follow:
		follower := trace.NewFollower(a.cfg.PollIntervalOrDefault(), window, a.rep)
		if err := follower.Follow(ctx, job, a.out); err != nil {
			return err
		}
	default:
		if err := trace.Once(ctx, job, window, a.out); err != nil {
			return err
		}
	}

	if a.opts.artifacts {
		return a.downloadArtifacts(ctx, job)
	}
	return nil
}

func (a *app) tailLines() int {
	if a.opts.tail.bare {
		return a.cfg.TailLinesOrDefault()
	}
	return a.opts.tail.n
}

// selectJob resolves the pipeline and then a job of it. A zero ID with a nil
// error means there is nothing left to do: the jobs were listed or the
// pipeline URL was printed.
func (a *app) selectJob(ctx context.Context, src domain.JobSource, project string, pos positionals) (int, error) {
	var ref selector.PipelineRef
	if pos.pipeline > 0 {
		ref.ID = pos.pipeline
		if a.opts.branch != "" {
			a.rep.Warnf("Ignoring --branch=%s because pipeline (%d) was specified", a.opts.branch, pos.pipeline)
		}
	} else {
		branch := a.opts.branch
		if branch == "" {
			current, ok := git.CurrentBranch(a.env.Dir)
			if !ok {
				return 0, errors.New("Could not determine the current branch, use --branch")
			}
			branch = current
			a.rep.Infof("Current branch: %s", branch)
		}
		ref.Branch = branch
		if pos.pipeline < 0 {
			ref.Offset = -pos.pipeline - 1
		}
	}

	resolver := &selector.Resolver{Source: src, Project: project, Report: a.rep}
	pipeline, err := resolver.ResolvePipeline(ctx, ref, !a.opts.printURL || pos.name != "")
	if err != nil {
		return 0, err
	}
	jobs, err := src.ListJobs(ctx, pipeline.ID)
	if err != nil {
		return 0, errors.Wrapf(err, "listing jobs of pipeline %d", pipeline.ID)
	}

	if pos.name != "" {
		res, err := selector.ResolveJob(selector.ByName{Pipeline: pipeline, Name: pos.name, Occurrence: pos.occurrence}, jobs, a.opts.running, a.rep)
		var notFound *selector.JobNameNotFoundError
		switch {
		case errors.As(err, &notFound):
			a.rep.Warnf("%v", notFound)
		case err != nil:
			return 0, err
		default:
			return res.JobID, nil
		}
	} else {
		a.dump("pipeline", pipeline)
		if a.opts.printURL {
			fmt.Fprintln(a.out, pipeline.WebURL)
			return 0, nil
		}
	}

	if a.opts.pick && a.env.Interactive {
		chosen, ok, err := picker.Run(ctx, pipeline, jobs, a.env.In, a.env.Err)
		if err != nil || !ok {
			return 0, err
		}
		return chosen.ID, nil
	}

	fmt.Fprintf(a.out, "Available jobs for pipeline #%d:\n", pipeline.ID)
	for _, j := range jobs {
		fmt.Fprintln(a.out, format.JobLine(j))
	}
	if err := a.out.Flush(); err != nil {
		return 0, err
	}

	res, err := selector.ResolveJob(selector.Auto{Pipeline: pipeline}, jobs, a.opts.running, a.rep)
	if err != nil {
		return 0, err
	}
	if res.Resolved() {
		return res.JobID, nil
	}
	if res.RunningIgnored {
		a.rep.Warnf("Ignoring --running because no job was running.")
	}
	if a.opts.artifacts {
		a.rep.Warnf("Ignoring --artifacts because no job was selected.")
	}
	if a.opts.printURL {
		a.rep.Warnf("Ignoring --print-url because no job was selected.")
	}
	return 0, nil
}

func (a *app) downloadArtifacts(ctx context.Context, job domain.JobHandle) error {
	meta, ok := job.Artifact()
	if !ok {
		a.rep.Warnf("Job has no artifacts.")
		return &exitError{code: 1}
	}
	a.rep.Infof("Artifacts: %s (%s)", meta.Filename, format.Size(meta.Size))
	path, err := artifact.Download(ctx, job, a.env.Dir)
	if err != nil {
		return err
	}
	a.rep.Debugf("Saved %s", path)
	return nil
}

// dump writes v as YAML to the debug channel.
func (a *app) dump(what string, v interface{}) {
	if !a.opts.debug {
		return
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		a.rep.Debugf("cannot dump %s: %v", what, err)
		return
	}
	a.rep.Debugf("%s", strings.TrimRight(string(b), "\n"))
}

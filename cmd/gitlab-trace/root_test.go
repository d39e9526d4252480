package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waabox/gitlab-trace/internal/domain"
	"github.com/waabox/gitlab-trace/internal/memsource"
)

const pipelineURL = "https://gitlab.example.com/g/p/-/pipelines/"

type harness struct {
	t       *testing.T
	dir     string
	src     *memsource.Source
	project string
	out     bytes.Buffer
	errOut  bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("GITLAB_TOKEN", "")
	t.Setenv("GITLAB_URL", "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("poll_interval = \"1ms\"\ntail_lines = 1\n"), 0600))

	job := func(id int, name string, status domain.JobStatus) domain.Job {
		return domain.Job{ID: id, Name: name, Status: status, WebURL: "https://gitlab.example.com/g/p/-/jobs/" + name}
	}
	src := &memsource.Source{
		Pipelines: map[string][]domain.Pipeline{
			"main": {
				{ID: 102, Ref: "main", WebURL: pipelineURL + "102"},
				{ID: 101, Ref: "main", WebURL: pipelineURL + "101"},
			},
		},
		PipelineJobs: map[int][]domain.Job{
			102: {job(1, "build", domain.StatusSuccess), job(2, "test", domain.StatusRunning), job(3, "test", domain.StatusPending)},
			101: {job(11, "build", domain.StatusSuccess)},
		},
		Jobs: map[int]*memsource.Job{
			1: {Meta: job(1, "build", domain.StatusSuccess), Snapshots: []memsource.Snapshot{{Trace: "a\nb\nc\n", Finished: true}}},
			2: {Meta: job(2, "test", domain.StatusRunning), Snapshots: []memsource.Snapshot{
				{Trace: "start\n"},
				{Trace: "start\nmore\n"},
				{Trace: "start\nmore\ndone\n", Finished: true},
			}},
			3: {Meta: job(3, "test", domain.StatusPending), Snapshots: []memsource.Snapshot{{Trace: "third\n", Finished: true}}},
			11: {
				Meta:         domain.Job{ID: 11, Name: "build", Artifact: &domain.Artifact{Filename: "artifacts.zip", Size: 3}},
				Snapshots:    []memsource.Snapshot{{Trace: "old\n", Finished: true}},
				ArtifactData: "zip",
			},
		},
	}
	return &harness{t: t, dir: dir, src: src}
}

func (h *harness) runContext(ctx context.Context, args ...string) int {
	h.out.Reset()
	h.errOut.Reset()
	env := &environment{
		In:  strings.NewReader(""),
		Out: &h.out,
		Err: &h.errOut,
		Dir: h.dir,
		Source: func(project string) (domain.JobSource, error) {
			h.project = project
			return h.src, nil
		},
	}
	return run(ctx, append([]string{"--config", filepath.Join(h.dir, "config.toml")}, args...), env)
}

func (h *harness) run(args ...string) int {
	return h.runContext(context.Background(), args...)
}

func TestRun_ListsJobsOfNewestPipeline(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("-p", "g/p", "-b", "main"))
	assert.True(t, strings.HasPrefix(h.out.String(), "Available jobs for pipeline #102:\n"), h.out.String())
	assert.Contains(t, h.out.String(), "   --job=1 - ")
	assert.Contains(t, h.out.String(), "   --job=3 - ")
	assert.Contains(t, h.errOut.String(), pipelineURL+"102\n")
	assert.Equal(t, "g/p", h.project)
}

func TestRun_NameSelectsLastMatch(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("-p", "g/p", "-b", "main", "-1", "test"))
	assert.Equal(t, "third\n", h.out.String())
	assert.Contains(t, h.errOut.String(), "Found multiple jobs: 2 3\nSelecting the last one: 3\n")
}

func TestRun_OccurrenceSelectsNthMatch(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("-p", "g/p", "-b", "main", "-1", "test", "1"))
	assert.Equal(t, "start\n", h.out.String())
	assert.Contains(t, h.errOut.String(), "Selecting #1: 2\n")
}

func TestRun_OccurrenceOutOfRangeIsFatal(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.run("-p", "g/p", "-b", "main", "-1", "test", "3"))
	assert.Empty(t, h.out.String())
}

func TestRun_NegativeOffsetSelectsOlderPipeline(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("-p", "g/p", "-b", "main", "-2", "build"))
	assert.Equal(t, "old\n", h.out.String())
	assert.Contains(t, h.errOut.String(), pipelineURL+"101\n")
}

func TestRun_ExplicitPipelineIgnoresBranch(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("-p", "g/p", "101", "build", "-b", "main"))
	assert.Equal(t, "old\n", h.out.String())
	assert.Contains(t, h.errOut.String(), "Ignoring --branch=main because pipeline (101) was specified\n")
	assert.Equal(t, 0, h.src.Calls("ListPipelines"))
}

func TestRun_InsufficientPipelines(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.run("-p", "g/p", "-b", "main", "-5"))
	assert.Contains(t, h.errOut.String(), "Project g/p has only 2 pipelines for branch main\n")
	assert.Empty(t, h.out.String())
}

func TestRun_NoPipelinesForBranch(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.run("-p", "g/p", "-b", "feature"))
	assert.Contains(t, h.errOut.String(), "Project g/p doesn't have any pipelines for branch feature\n")
}

func TestRun_UnknownNameFallsBackToListing(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("-p", "g/p", "-b", "main", "-1", "lint"))
	assert.Contains(t, h.errOut.String(), "Job lint not found\n")
	assert.True(t, strings.HasPrefix(h.out.String(), "Available jobs for pipeline #102:\n"))
}

func TestRun_RunningFollowsRunningJob(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("-p", "g/p", "-b", "main", "--running", "-f"))
	assert.True(t, strings.HasSuffix(h.out.String(), "start\nmore\ndone\n"), h.out.String())
	assert.Contains(t, h.errOut.String(), "Automatically selected --job=2 (test)\n")
}

func TestRun_RunningWithNothingRunning(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("-p", "g/p", "-b", "main", "--running", "-a", "-2"))
	assert.Contains(t, h.errOut.String(), "Ignoring --running because no job was running.\n")
	assert.Contains(t, h.errOut.String(), "Ignoring --artifacts because no job was selected.\n")
	assert.True(t, strings.HasPrefix(h.out.String(), "Available jobs for pipeline #101:\n"))
}

func TestRun_ExplicitJobWinsAndWarns(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("-p", "g/p", "--job", "1", "--running", "-b", "main", "102"))
	assert.Equal(t, "a\nb\nc\n", h.out.String())
	assert.Contains(t, h.errOut.String(), "Ignoring --running because --job=1 was specified\n")
	assert.Contains(t, h.errOut.String(), "Ignoring pipeline (102) because --job=1 was specified\n")
	assert.Contains(t, h.errOut.String(), "Ignoring --branch=main because --job=1 was specified\n")
	assert.Equal(t, 0, h.src.Calls("ListPipelines"))
	assert.Equal(t, 0, h.src.Calls("ListJobs"))
}

func TestRun_Tail(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("-p", "g/p", "--job", "1", "--tail", "2"))
	assert.Equal(t, "b\nc\n", h.out.String())

	require.Equal(t, 0, h.run("-p", "g/p", "--job", "1", "-t"))
	assert.Equal(t, "c\n", h.out.String(), "bare --tail uses tail_lines from the config")
}

func TestRun_PrintURLWithoutNamePrintsPipeline(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("-p", "g/p", "-b", "main", "--print-url"))
	assert.Equal(t, pipelineURL+"102\n", h.out.String())
	assert.NotContains(t, h.errOut.String(), pipelineURL)
}

func TestRun_PrintURLOfJob(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("-p", "g/p", "--job", "1", "--print-uri"))
	assert.Equal(t, "https://gitlab.example.com/g/p/-/jobs/build\n", h.out.String())
}

func TestRun_DownloadsArtifacts(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("-p", "g/p", "--job", "11", "-a"))
	assert.Equal(t, "old\n", h.out.String())
	assert.Contains(t, h.errOut.String(), "Artifacts: artifacts.zip (3 B)\n")

	data, err := os.ReadFile(filepath.Join(h.dir, "artifacts.zip"))
	require.NoError(t, err)
	assert.Equal(t, "zip", string(data))

	assert.Equal(t, 1, h.run("-p", "g/p", "--job", "11", "-a"), "an existing file is never overwritten")
}

func TestRun_NoArtifacts(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.run("-p", "g/p", "--job", "1", "-a"))
	assert.Equal(t, "a\nb\nc\n", h.out.String())
	assert.Equal(t, "Job has no artifacts.\n", h.errOut.String())
}

func TestRun_VerboseAndDebug(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("-p", "g/p", "--job", "1", "-v", "--debug"))
	assert.Contains(t, h.errOut.String(), "Job started:    not yet\n")
	assert.Contains(t, h.errOut.String(), "Job duration:   n/a\n")
	assert.Contains(t, h.errOut.String(), "name: build")
}

func TestRun_DetectsProjectAndBranch(t *testing.T) {
	h := newHarness(t)
	gitDir := filepath.Join(h.dir, ".git")
	require.NoError(t, os.Mkdir(gitDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "config"), []byte("[remote \"origin\"]\n\turl = git@gitlab.example.com:g/p.git\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0644))

	require.Equal(t, 0, h.run())
	assert.Equal(t, "g/p", h.project)
	assert.Contains(t, h.errOut.String(), "GitLab project: g/p\nCurrent branch: main\n")
}

func TestRun_ProjectNotDetected(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.run("-b", "main"))
	assert.Equal(t, "Could not determine GitLab project ID\n", h.errOut.String())
}

func TestRun_CancelledFollowExitsCleanly(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 0, h.runContext(ctx, "-p", "g/p", "--job", "2", "-f"))
	assert.Equal(t, "start\n", h.out.String())
}

func TestRun_RejectsInvalidJobID(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.run("-p", "g/p", "--job", "0"))
	assert.Contains(t, h.errOut.String(), "invalid --job=0")
}

func TestRun_RejectsNegativeTail(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.run("-p", "g/p", "--job", "1", "--tail=-5"))
	assert.Contains(t, h.errOut.String(), "cannot be negative")
	assert.Empty(t, h.out.String())
}

func TestRun_Version(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("--version"))
	assert.Contains(t, h.out.String(), "version dev")
}

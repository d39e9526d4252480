package format_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/waabox/gitlab-trace/internal/domain"
	"github.com/waabox/gitlab-trace/internal/format"
)

func TestDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{400 * time.Millisecond, "0s"},
		{59 * time.Second, "59s"},
		{60 * time.Second, "1m"},
		{61 * time.Second, "1m 1s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h 2m 3s"},
		{2 * time.Hour, "2h"},
		{time.Hour + 5*time.Second, "1h 5s"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, format.Duration(c.in), "duration %s", c.in)
	}
}

func TestJobDuration_NotStarted(t *testing.T) {
	assert.Equal(t, "n/a", format.JobDuration(domain.Job{}))

	started := time.Now()
	assert.Equal(t, "1m 30s", format.JobDuration(domain.Job{StartedAt: &started, Duration: 90 * time.Second}))
}

func TestSize(t *testing.T) {
	assert.Equal(t, "n/a", format.Size(-1))
	assert.Equal(t, "100 B", format.Size(100))
	assert.Equal(t, "1.5 KiB", format.Size(1536))
	assert.Equal(t, "20 MiB", format.Size(20*1024*1024))
}

func TestStatus_KeepsName(t *testing.T) {
	for _, s := range []domain.JobStatus{domain.StatusSuccess, domain.StatusFailed, domain.StatusSkipped} {
		assert.True(t, strings.Contains(format.Status(s), string(s)))
	}
}

func TestJobLine(t *testing.T) {
	line := format.JobLine(domain.Job{ID: 12, Name: "unit tests", Status: domain.StatusSkipped})
	assert.Equal(t, "   --job=12 - skipped - unit tests", line)
}

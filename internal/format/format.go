// Package format renders job metadata for humans.
package format

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/waabox/gitlab-trace/internal/domain"
)

var statusStyles = map[domain.JobStatus]lipgloss.Style{
	domain.StatusSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	domain.StatusFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	domain.StatusRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	domain.StatusPending: lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	domain.StatusCreated: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	domain.StatusManual:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
}

// Status returns the status name, colored when the terminal supports it.
func Status(s domain.JobStatus) string {
	style, ok := statusStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(string(s))
}

// Duration renders d as "1h 2m 3s", rounded to whole seconds.
func Duration(d time.Duration) string {
	total := int64(math.Round(d.Seconds()))
	h, rest := total/3600, total%3600
	m, s := rest/60, rest%60
	var bits []string
	if h != 0 {
		bits = append(bits, fmt.Sprintf("%dh", h))
	}
	if m != 0 {
		bits = append(bits, fmt.Sprintf("%dm", m))
	}
	if s != 0 || len(bits) == 0 {
		bits = append(bits, fmt.Sprintf("%ds", s))
	}
	return strings.Join(bits, " ")
}

// JobDuration renders the duration of job, or "n/a" if it never started.
func JobDuration(job domain.Job) string {
	if job.StartedAt == nil {
		return "n/a"
	}
	return Duration(job.Duration)
}

// Size renders a byte count in binary units; negative sizes are unknown.
func Size(n int64) string {
	if n < 0 {
		return "n/a"
	}
	return humanize.IBytes(uint64(n))
}

// Timestamp renders t, or fallback if t is nil.
func Timestamp(t *time.Time, fallback string) string {
	if t == nil {
		return fallback
	}
	return t.Format(time.RFC3339)
}

// JobLine is one row of a pipeline's job listing.
func JobLine(job domain.Job) string {
	return fmt.Sprintf("   --job=%d - %s - %s", job.ID, Status(job.Status), job.Name)
}

// Package picker is an interactive job chooser used by --pick.
package picker

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/pkg/errors"

	"github.com/waabox/gitlab-trace/internal/domain"
	"github.com/waabox/gitlab-trace/internal/format"
)

// Model is an immutable bubbletea model listing the jobs of one pipeline.
type Model struct {
	pipeline  domain.Pipeline
	jobs      []domain.Job
	cursor    int
	chosen    bool
	cancelled bool
}

// New creates a picker with the cursor on the first running job, if any.
func New(pipeline domain.Pipeline, jobs []domain.Job) Model {
	m := Model{pipeline: pipeline, jobs: jobs}
	for i, j := range jobs {
		if j.Status == domain.StatusRunning {
			m.cursor = i
			break
		}
	}
	return m
}

// MoveDown returns a new model with the cursor moved down by one.
func (m Model) MoveDown() Model {
	if m.cursor < len(m.jobs)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m Model) MoveUp() Model {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// Selected returns the chosen job once the user confirmed with enter.
func (m Model) Selected() (domain.Job, bool) {
	if !m.chosen || len(m.jobs) == 0 {
		return domain.Job{}, false
	}
	return m.jobs[m.cursor], true
}

// Cancelled reports whether the user left the picker without choosing.
func (m Model) Cancelled() bool {
	return m.cancelled
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "down", "j":
		return m.MoveDown(), nil
	case "up", "k":
		return m.MoveUp(), nil
	case "home", "g":
		m.cursor = 0
		return m, nil
	case "end", "G":
		if len(m.jobs) > 0 {
			m.cursor = len(m.jobs) - 1
		}
		return m, nil
	case "enter":
		if len(m.jobs) == 0 {
			return m, nil
		}
		m.chosen = true
		return m, tea.Quit
	case "esc", "q", "ctrl+c":
		m.cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	if m.chosen || m.cancelled {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Jobs of pipeline #%d (↑/↓ move, enter select, q cancel)\n\n", m.pipeline.ID)
	if len(m.jobs) == 0 {
		sb.WriteString("  This pipeline has no jobs.\n")
		return sb.String()
	}
	for i, j := range m.jobs {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		fmt.Fprintf(&sb, "%s%s %-25s %-10s %s\n",
			prefix,
			statusIcon(j.Status),
			truncate(j.Name, 25),
			truncate(j.Stage, 10),
			format.Status(j.Status),
		)
	}
	return sb.String()
}

func statusIcon(s domain.JobStatus) string {
	switch s {
	case domain.StatusSuccess:
		return "✓"
	case domain.StatusFailed:
		return "✗"
	case domain.StatusRunning:
		return "●"
	case domain.StatusPending, domain.StatusCreated:
		return "↷"
	case domain.StatusCanceled:
		return "○"
	case domain.StatusManual:
		return "▶"
	default:
		return "?"
	}
}

// truncate cuts s to max terminal cells, never inside a character.
func truncate(s string, max int) string {
	return ansi.Truncate(s, max, "…")
}

// Run shows the picker on out, reading keys from in, and blocks until the user
// chooses a job or cancels. ok is false on cancel.
func Run(ctx context.Context, pipeline domain.Pipeline, jobs []domain.Job, in io.Reader, out io.Writer) (domain.Job, bool, error) {
	p := tea.NewProgram(New(pipeline, jobs),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return domain.Job{}, false, ctx.Err()
		}
		return domain.Job{}, false, errors.Wrap(err, "running job picker")
	}
	job, ok := final.(Model).Selected()
	return job, ok, nil
}

// Package tui is the terminal view of a download run: a progress bar, a table
// of items and a scrolling log, fed by orchestrator events.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/wsfetch/internal/events"
	"github.com/mattjoyce/wsfetch/internal/pipeline"
)

const maxLogLines = 500

// EventMsg carries one hub event into the program.
type EventMsg events.Event

type jobRow struct {
	workshopID string
	status     string
	moved      int
}

// Model is the bubbletea model for a single run.
type Model struct {
	cancel func() bool

	width  int
	height int

	runID       string
	account     string
	destination string
	total       int
	completed   int
	percent     float64
	canceling   bool
	finished    *pipeline.FinishedEvent

	jobs     []jobRow
	jobIndex map[string]int
	logLines []string

	bar      progress.Model
	jobTable table.Model
	viewport viewport.Model
	theme    Theme
}

// New creates a model. cancel is called when the user asks to stop the run.
func New(cancel func() bool) Model {
	theme := NewDefaultTheme()

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Item", Width: 12},
			{Title: "Status", Width: 12},
			{Title: "Moved", Width: 6},
		}),
		table.WithHeight(8),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.Foreground(lipgloss.NoColor{}).Bold(false)
	t.SetStyles(s)

	return Model{
		cancel:   cancel,
		jobIndex: make(map[string]int),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		jobTable: t,
		viewport: viewport.Model{Width: 80, Height: 10},
		theme:    theme,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Finished reports whether the finished event has been seen.
func (m Model) Finished() bool { return m.finished != nil }

// Summary returns the finished event, if any.
func (m Model) Summary() (pipeline.FinishedEvent, bool) {
	if m.finished == nil {
		return pipeline.FinishedEvent{}, false
	}
	return *m.finished, true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			if m.Finished() {
				return m, tea.Quit
			}
			m.appendLog(m.theme.Dim.Render("Run in progress; press c to cancel."))
		case "ctrl+c":
			if m.Finished() {
				return m, tea.Quit
			}
			m.requestCancel()
		case "c":
			m.requestCancel()
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-20, 10)
		m.jobTable.SetWidth(max(msg.Width-6, 20))
		m.viewport.Width = max(msg.Width-6, 20)
		m.viewport.Height = max(msg.Height/3, 5)
		m.refreshLog()
		return m, nil

	case EventMsg:
		m.apply(events.Event(msg))
		return m, nil
	}
	return m, nil
}

func (m *Model) requestCancel() {
	if m.Finished() || m.canceling {
		return
	}
	m.canceling = true
	if m.cancel != nil && m.cancel() {
		m.appendLog(m.theme.StatusWarn.Render("Cancel requested..."))
		return
	}
	m.canceling = false
}

func (m *Model) apply(ev events.Event) {
	pipeline.Dispatch(ev, pipeline.Handlers{
		OnRunStarted: func(p pipeline.RunStartedEvent) {
			m.runID = p.RunID
			m.account = p.Account
			m.destination = p.Destination
		},
		OnLog: func(p pipeline.LogEvent) {
			m.appendLog(m.renderLevel(p.Level) + p.Message)
		},
		OnJobStarted: func(p pipeline.JobEvent) {
			m.total = p.Total
			m.upsertJob(p.WorkshopID, "running", 0)
		},
		OnJobComplete: func(p pipeline.JobEvent) {
			m.upsertJob(p.WorkshopID, p.Status, p.Moved)
		},
		OnProgress: func(p pipeline.ProgressEvent) {
			m.total = p.Total
			m.completed = p.Completed
			m.percent = float64(p.Percent) / 100
		},
		OnFinished: func(p pipeline.FinishedEvent) {
			m.finished = &p
			m.canceling = false
			if p.Total > 0 {
				m.total = p.Total
				m.completed = p.Completed
				m.percent = float64(p.Completed) / float64(p.Total)
			}
			m.appendLog(m.theme.Dim.Render("Press q to quit."))
		},
	})
}

func (m *Model) upsertJob(workshopID, status string, moved int) {
	if i, ok := m.jobIndex[workshopID]; ok {
		m.jobs[i].status = status
		m.jobs[i].moved = moved
	} else {
		m.jobIndex[workshopID] = len(m.jobs)
		m.jobs = append(m.jobs, jobRow{workshopID: workshopID, status: status, moved: moved})
	}

	rows := make([]table.Row, 0, len(m.jobs))
	for _, j := range m.jobs {
		rows = append(rows, table.Row{m.statusSymbol(j.status), j.workshopID, j.status, fmt.Sprintf("%d", j.moved)})
	}
	m.jobTable.SetRows(rows)
	m.jobTable.SetCursor(len(rows) - 1)
}

func (m *Model) appendLog(line string) {
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
	m.refreshLog()
}

func (m *Model) refreshLog() {
	m.viewport.SetContent(strings.Join(m.logLines, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) renderLevel(level pipeline.Level) string {
	switch level {
	case pipeline.LevelError:
		return m.theme.StatusFailed.Render("ERR ")
	case pipeline.LevelWarn:
		return m.theme.StatusWarn.Render("WRN ")
	default:
		return m.theme.Dim.Render("    ")
	}
}

func (m Model) statusSymbol(status string) string {
	switch status {
	case "running":
		return m.theme.StatusRunning.Render("◉")
	case "succeeded":
		return m.theme.StatusOK.Render("●")
	case "canceled":
		return m.theme.StatusWarn.Render("◌")
	case "failed", "timed_out", "tool_missing":
		return m.theme.StatusFailed.Render("∅")
	default:
		return m.theme.StatusQueued.Render("○")
	}
}

func (m Model) View() string {
	width := m.width
	if width == 0 {
		width = 80
	}

	status := m.theme.StatusRunning.Render("RUNNING")
	switch {
	case m.finished != nil && m.finished.Outcome == pipeline.OutcomeCanceled:
		status = m.theme.StatusWarn.Render("CANCELED")
	case m.finished != nil && m.finished.Outcome == pipeline.OutcomeNoValidInput:
		status = m.theme.StatusFailed.Render("NO VALID INPUT")
	case m.finished != nil:
		status = m.theme.StatusOK.Render("DONE")
	case m.canceling:
		status = m.theme.StatusWarn.Render("CANCELING")
	}

	header := m.theme.Border.Width(width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			fmt.Sprintf("Status: %s   Account: %s   Run: %s", status, m.account, shortID(m.runID)),
			fmt.Sprintf("Destination: %s", m.destination),
			fmt.Sprintf("%s %d/%d", m.bar.ViewAs(m.percent), m.completed, m.total),
		),
	)

	items := m.theme.Border.Width(width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("Items"),
			m.jobTable.View(),
		),
	)

	logView := m.theme.Border.Width(width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("Log"),
			m.viewport.View(),
		),
	)

	help := " [c] Cancel • [↑/↓] Scroll log"
	if m.finished != nil {
		help = " [q] Quit • [↑/↓] Scroll log"
	}

	return m.theme.Doc.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header,
			items,
			logView,
			m.theme.Dim.Render(help),
		),
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

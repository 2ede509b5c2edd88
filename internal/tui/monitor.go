// Package tui renders a live terminal monitor for a running sweep batch.
// It consumes runner progress events and shows the current case, stage
// totals, and a ripple trend over the finished electromagnetic cases.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/avirtanen/eccsweep/internal/progress"
)

const (
	recentCapacity = 8
	rippleCapacity = 120
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	frameStyle  = lipgloss.NewStyle().Padding(1, 2)
)

type (
	eventMsg  progress.Event
	closedMsg struct{}
	tickMsg   time.Time
)

// Monitor is the bubbletea model for the batch view. The event channel is
// read one message at a time; when the producer closes it the monitor
// quits on its own.
type Monitor struct {
	events <-chan progress.Event
	start  time.Time

	stage        string
	current      string
	index, total int

	completed int
	failed    int
	skipped   []string
	ripples   []float64
	recent    []string
	done      bool
}

func NewMonitor(events <-chan progress.Event) Monitor {
	return Monitor{events: events, start: time.Now()}
}

func (m Monitor) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/4, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForEvent(ch <-chan progress.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return eventMsg(e)
	}
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()
	case eventMsg:
		m.apply(progress.Event(msg))
		return m, waitForEvent(m.events)
	case closedMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *Monitor) apply(e progress.Event) {
	switch e.Kind {
	case progress.CaseStarted:
		m.stage, m.current = e.Stage, e.Case
		m.index, m.total = e.Index, e.Total
	case progress.CaseFinished:
		m.completed++
		line := okStyle.Render("done") + "  " + e.Case
		if e.Stage == "femm" {
			line += valueStyle.Render(fmt.Sprintf("  ripple %.1f%%", e.Ripple))
			m.ripples = append(m.ripples, e.Ripple)
			if len(m.ripples) > rippleCapacity {
				m.ripples = m.ripples[1:]
			}
		}
		m.push(line)
	case progress.CaseFailed:
		m.failed++
		reason := ""
		if e.Err != nil {
			reason = "  " + e.Err.Error()
		}
		m.push(failStyle.Render("fail") + "  " + e.Case + reason)
	case progress.MotorSkipped:
		m.skipped = append(m.skipped, e.Motor)
		m.push(warnStyle.Render("skip") + "  motor " + e.Motor)
	}
}

func (m *Monitor) push(line string) {
	m.recent = append(m.recent, line)
	if len(m.recent) > recentCapacity {
		m.recent = m.recent[1:]
	}
}

func (m Monitor) View() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("ECCENTRICITY SWEEP") + "\n")
	status := "running"
	if m.done {
		status = "finished"
	}
	s.WriteString(fmt.Sprintf("%s  %.1fs\n\n", status, time.Since(m.start).Seconds()))

	s.WriteString(labelStyle.Render("stage") + valueStyle.Render(orDash(m.stage)) + "\n")
	caseLine := orDash(m.current)
	if m.total > 0 && !m.done {
		caseLine = fmt.Sprintf("%s  (%d/%d)", caseLine, m.index, m.total)
	}
	s.WriteString(labelStyle.Render("case") + valueStyle.Render(caseLine) + "\n")
	if m.total > 0 {
		s.WriteString(labelStyle.Render("progress") + progressBar(m.index, m.total) + "\n")
	}
	s.WriteString(labelStyle.Render("done") + valueStyle.Render(fmt.Sprintf("%d", m.completed)) + "\n")
	s.WriteString(labelStyle.Render("failed") + valueStyle.Render(fmt.Sprintf("%d", m.failed)) + "\n")
	if len(m.skipped) > 0 {
		s.WriteString(labelStyle.Render("skipped") + warnStyle.Render(strings.Join(m.skipped, " ")) + "\n")
	}

	if len(m.ripples) > 1 {
		chart := asciigraph.Plot(m.ripples,
			asciigraph.Height(5),
			asciigraph.Width(50),
			asciigraph.Caption("torque ripple [%]"),
		)
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	if len(m.recent) > 0 {
		s.WriteString("\n")
		for _, line := range m.recent {
			s.WriteString("  " + line + "\n")
		}
	}

	s.WriteString(helpStyle.Render("q: quit view (batch keeps running)"))
	return frameStyle.Render(s.String())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// progressBar renders batch position within the current stage as a fixed
// width block bar.
func progressBar(index, total int) string {
	const width = 30
	filled := index * width / total
	if filled > width {
		filled = width
	}
	return okStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled)
}

// Run blocks until the event channel closes or the user quits the view.
// The caller keeps draining the channel afterwards, so producers never
// block on a closed view.
func Run(events <-chan progress.Event) error {
	p := tea.NewProgram(NewMonitor(events))
	_, err := p.Run()
	return err
}

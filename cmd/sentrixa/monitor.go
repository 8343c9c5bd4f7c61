// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	"github.com/sentrixa-lab/sentrixa/internal/store"
)

// monitorMaxLines is how much transcript the monitor keeps.
const monitorMaxLines = 200

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

type (
	engineEventMsg  struct{ ev simulation.Event }
	streamClosedMsg struct{}
	killDoneMsg     struct {
		report *store.IncidentReport
		err    error
	}
	deadlineMsg struct{}
)

type killFunc func(ctx context.Context) (*store.IncidentReport, error)

// monitorModel is the bubbletea model behind `simulate --tui`.
type monitorModel struct {
	sessionID string
	status    simulation.Status
	risk      int
	reason    simulation.Reason
	location  string
	lines     []string
	report    *store.IncidentReport
	errMsg    string

	events      <-chan simulation.Event
	kill        killFunc
	maxDuration time.Duration
	spinner     spinner.Model
	riskBar     progress.Model
	height      int
}

func newMonitorModel(snap simulation.Snapshot, events <-chan simulation.Event, kill killFunc, maxDuration time.Duration) monitorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := monitorModel{
		sessionID:   snap.ID,
		status:      snap.Status,
		risk:        snap.RiskScore,
		events:      events,
		kill:        kill,
		maxDuration: maxDuration,
		spinner:     sp,
		riskBar:     progress.New(progress.WithGradient("#5A56E0", "#FF4040"), progress.WithWidth(40)),
		height:      24,
	}
	for _, msg := range snap.Messages {
		m.appendLine(fmt.Sprintf("%s %s %s", msg.Timestamp.Format("15:04:05"), senderLabel(msg.Sender), msg.Content))
	}
	return m
}

func (m monitorModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, waitForEvent(m.events)}
	if m.maxDuration > 0 {
		cmds = append(cmds, tea.Tick(m.maxDuration, func(time.Time) tea.Msg { return deadlineMsg{} }))
	}
	return tea.Batch(cmds...)
}

func waitForEvent(events <-chan simulation.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return engineEventMsg{ev: ev}
	}
}

func (m monitorModel) killCmd() tea.Cmd {
	kill := m.kill
	return func() tea.Msg {
		r, err := kill(context.Background())
		return killDoneMsg{report: r, err: err}
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "k":
			if m.status == simulation.StatusActive {
				return m, m.killCmd()
			}
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.riskBar.Width = min(60, max(10, msg.Width-20))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case deadlineMsg:
		if m.status == simulation.StatusActive {
			return m, m.killCmd()
		}
		return m, nil

	case killDoneMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.status = simulation.StatusTerminated
		m.reason = simulation.ReasonManualKill
		m.report = msg.report
		return m, nil

	case engineEventMsg:
		m.apply(msg.ev)
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		return m, tea.Quit
	}
	return m, nil
}

// apply folds one engine event into the model.
func (m *monitorModel) apply(ev simulation.Event) {
	if ev.SessionID != "" && ev.SessionID != m.sessionID {
		return
	}
	if line := renderEvent(ev); line != "" {
		m.appendLine(line)
	}
	switch ev.Kind {
	case simulation.EventRisk:
		m.risk = ev.RiskScore
	case simulation.EventSessionTerminated:
		m.status = simulation.StatusTerminated
		m.risk = ev.RiskScore
		m.reason = ev.Reason
		if ev.Report != nil {
			m.report = ev.Report
		}
	case simulation.EventReportExported:
		m.location = ev.Location
	case simulation.EventExportFailed:
		m.errMsg = ev.Error
	}
}

func (m *monitorModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > monitorMaxLines {
		m.lines = m.lines[len(m.lines)-monitorMaxLines:]
	}
}

func (m monitorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Sentrixa Simulation Monitor  ") + "\n\n")

	state := string(m.status)
	if m.status == simulation.StatusActive {
		state = m.spinner.View() + " active"
	}
	b.WriteString(fmt.Sprintf("Session %s  %s\n", promptStyle.Render(m.sessionID), state))
	b.WriteString(fmt.Sprintf("Risk %3d/%d %s\n\n", m.risk, simulation.MaxRisk,
		m.riskBar.ViewAs(float64(m.risk)/float64(simulation.MaxRisk))))

	visible := max(3, m.height-14)
	start := max(0, len(m.lines)-visible)
	for _, l := range m.lines[start:] {
		b.WriteString(l + "\n")
	}

	if m.report != nil {
		b.WriteString("\n" + successStyle.Render(fmt.Sprintf("Incident %s (%s, %s)",
			m.report.IncidentID, m.reason, m.report.Summary.ContainmentAction)) + "\n")
		if m.location != "" {
			b.WriteString(dimStyle.Render("Report written to "+m.location) + "\n")
		}
	}
	if m.errMsg != "" {
		b.WriteString("\n" + errorStyle.Render(m.errMsg) + "\n")
	}

	help := "k to kill  q to quit"
	if m.status != simulation.StatusActive {
		help = "q to quit"
	}
	b.WriteString("\n" + dimStyle.Render(help))

	return boxStyle.Render(b.String())
}

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type progressMsg report

type doneMsg struct {
	err error
	rep report
}

type dashboardModel struct {
	err     error
	cancel  context.CancelFunc
	spinner spinner.Model
	rep     report
	cfg     config
	done    bool
}

func newDashboardModel(cfg config, cancel context.CancelFunc) *dashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = valueStyle
	return &dashboardModel{
		cfg:     cfg,
		cancel:  cancel,
		spinner: s,
	}
}

func (m *dashboardModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.cancel()
			return m, tea.Quit
		}

	case progressMsg:
		m.rep = report(msg)

	case doneMsg:
		m.rep = msg.rep
		m.err = msg.err
		m.done = true

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *dashboardModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Bridge Simulator"))
	fmt.Fprintf(&b, " %d workers × %d iterations × %d objects\n\n",
		m.cfg.Workers, m.cfg.Iterations, m.cfg.Objects)

	if m.done {
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render("Finished"))
		}
	} else {
		b.WriteString(m.spinner.View())
		b.WriteString(" running")
	}
	b.WriteString("\n\n")

	r := m.rep
	rows := [][2]string{
		{"elapsed", r.Elapsed.Round(time.Millisecond).String()},
		{"crossings", fmt.Sprint(r.Crossings)},
		{"violations", fmt.Sprint(r.Violations)},
		{"collected", fmt.Sprint(r.Collections)},
		{"host live", fmt.Sprint(r.Host.Live)},
		{"global refs", fmt.Sprint(r.Host.GlobalRefs)},
		{"weak refs", fmt.Sprint(r.Host.WeakRefs)},
		{"proxies", fmt.Sprint(r.Bridge.Proxies)},
		{"wrappers", fmt.Sprint(r.Bridge.Wrappers)},
		{"scheduled", fmt.Sprint(r.Bridge.ScheduledRemovals)},
		{"native live", fmt.Sprint(r.HeapLive)},
	}
	for _, row := range rows {
		value := valueStyle.Render(row[1])
		if row[0] == "violations" && r.Violations > 0 {
			value = errorStyle.Render(row[1])
		}
		b.WriteString(labelStyle.Render(row[0]))
		b.WriteString(value)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q quit"))
	return b.String()
}

func runInteractive(ctx context.Context, cfg config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Log output would corrupt the alternate screen.
	sim, err := newSimulation(ctx, cfg, zap.NewNop())
	if err != nil {
		return err
	}

	p := tea.NewProgram(newDashboardModel(cfg, cancel), tea.WithAltScreen())
	go func() {
		rep, err := sim.run(ctx, func(r report) { p.Send(progressMsg(r)) })
		p.Send(doneMsg{rep: rep, err: err})
	}()

	_, err = p.Run()
	return err
}

package main

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestDashboardModel(t *testing.T) {
	cancelled := false
	m := newDashboardModel(defaultConfig(), func() { cancelled = true })

	m.Update(progressMsg(report{Crossings: 12345, Violations: 0}))
	if view := m.View(); !strings.Contains(view, "12345") || !strings.Contains(view, "running") {
		t.Fatalf("Expected progress in view, got:\n%s", view)
	}

	m.Update(doneMsg{rep: report{Crossings: 20000, Done: true}, err: errors.New("boom")})
	view := m.View()
	if !strings.Contains(view, "20000") || !strings.Contains(view, "boom") {
		t.Fatalf("Expected final report and error in view, got:\n%s", view)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !cancelled {
		t.Fatal("Expected quit to cancel the simulation")
	}
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
}

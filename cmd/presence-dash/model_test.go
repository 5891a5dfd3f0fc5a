package main

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"presence/pkg/projector"
	"presence/pkg/statusync"
)

type fakeReconnector struct{ calls int }

func (f *fakeReconnector) ReconnectNow() { f.calls++ }

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestModel() (Model, *fakeReconnector, *atomic.Bool) {
	r := &fakeReconnector{}
	visible := &atomic.Bool{}
	m := newModel(r, visible, nil)
	m.now = func() time.Time { return testNow }
	return m, r, visible
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

// runCmd executes cmd the way the program would, including batches.
func runCmd(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if batch, ok := cmd().(tea.BatchMsg); ok {
		for _, c := range batch {
			runCmd(c)
		}
	}
}

func key(s string) tea.KeyMsg {
	if s == "esc" {
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	if s == "ctrl+c" {
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// TestDashModel_Init verifies Init schedules the countdown tick and spinner.
func TestDashModel_Init(t *testing.T) {
	m, _, visible := newTestModel()

	if !visible.Load() {
		t.Error("expected a new model to report visible")
	}
	if m.Init() == nil {
		t.Error("expected Init() to return commands, got nil")
	}
	if !strings.Contains(m.View(), "waiting for the first update") {
		t.Errorf("expected placeholder before the first frame, got:\n%s", m.View())
	}
}

func TestDashModel_RendersFrame(t *testing.T) {
	m, _, _ := newTestModel()

	m, _ = update(t, m, frameMsg{frame: projector.ViewModel{
		PageName: "Bob",
		Status:   projector.StatusView{Name: "Awake", Desc: "around"},
		Devices: []projector.DeviceLine{
			{ID: "pc", Name: "Laptop", Using: true, Text: "editor"},
			{ID: "phone", Name: "Phone", Text: "not in use"},
		},
		ReceivedAt:  "2026-03-01 12:00:00",
		LastUpdated: "2026-03-01 11:59:00",
		Timezone:    "UTC",
	}})
	m, _ = update(t, m, stateMsg{change: statusync.StateChange{State: statusync.StateOpen}})

	view := m.View()
	for _, want := range []string{"Bob", "● live", "Awake", "around", "● Laptop: editor", "○ Phone: not in use", "updated 2026-03-01 11:59:00 (UTC)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	m, _ = update(t, m, frameMsg{frame: projector.ErrorView{Message: "unknown status id"}})
	if !strings.Contains(m.View(), "error: unknown status id") {
		t.Errorf("error frame not shown:\n%s", m.View())
	}
}

func TestDashModel_ReconnectCountdown(t *testing.T) {
	m, _, _ := newTestModel()

	m, _ = update(t, m, stateMsg{change: statusync.StateChange{
		State:   statusync.StateReconnecting,
		Attempt: 2,
		RetryIn: 4 * time.Second,
		RetryAt: testNow.Add(2500 * time.Millisecond),
	}})
	if !strings.Contains(m.View(), "reconnecting in 3s (attempt 2)") {
		t.Errorf("countdown missing:\n%s", m.View())
	}

	m.now = func() time.Time { return testNow.Add(10 * time.Second) }
	if !strings.Contains(m.View(), "reconnecting in 0s") {
		t.Errorf("overdue countdown should clamp to 0s:\n%s", m.View())
	}
}

func TestDashModel_Keys(t *testing.T) {
	m, r, _ := newTestModel()
	m, _ = update(t, m, stateMsg{change: statusync.StateChange{State: statusync.StateReconnecting}})

	m, cmd := update(t, m, key("r"))
	if r.calls != 0 {
		t.Errorf("ReconnectNow ran inside Update")
	}
	runCmd(cmd)
	if r.calls != 1 {
		t.Errorf("ReconnectNow calls = %d, want 1", r.calls)
	}

	m, _ = update(t, m, key("?"))
	if !strings.Contains(m.View(), "Reconnect now") {
		t.Errorf("help overlay missing bindings:\n%s", m.View())
	}
	m, _ = update(t, m, key("esc"))
	if m.showHelp {
		t.Error("esc should close help")
	}

	for _, k := range []string{"q", "ctrl+c"} {
		_, cmd := update(t, m, key(k))
		if cmd == nil {
			t.Fatalf("%s: expected quit command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s: expected tea.QuitMsg", k)
		}
	}
}

func TestDashModel_ReconnectIgnoredWhilePolling(t *testing.T) {
	m, r, _ := newTestModel()
	m, _ = update(t, m, stateMsg{change: statusync.StateChange{State: statusync.StateDegraded}})

	m, cmd := update(t, m, key("r"))
	runCmd(cmd)
	if r.calls != 0 {
		t.Errorf("ReconnectNow called %d times in degraded mode", r.calls)
	}
	if !strings.Contains(m.View(), "polling") {
		t.Errorf("expected polling indicator:\n%s", m.View())
	}
}

func TestDashModel_FocusDrivesVisibility(t *testing.T) {
	m, _, visible := newTestModel()

	m, _ = update(t, m, tea.BlurMsg{})
	if visible.Load() {
		t.Error("blur should hide")
	}
	_, _ = update(t, m, tea.FocusMsg{})
	if !visible.Load() {
		t.Error("focus should show")
	}
}

func TestDashModel_ConfigChangeReconnects(t *testing.T) {
	m, r, _ := newTestModel()

	m, cmd := update(t, m, configChangedMsg{})
	runCmd(cmd)
	if r.calls != 1 {
		t.Errorf("ReconnectNow calls = %d, want 1", r.calls)
	}
	if !strings.Contains(m.View(), "config changed") {
		t.Errorf("notice missing:\n%s", m.View())
	}

	m, _ = update(t, m, stateMsg{change: statusync.StateChange{State: statusync.StateOpen}})
	if m.notice != "" {
		t.Errorf("notice should clear once open, got %q", m.notice)
	}
}

func TestFormatCountdown(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{time.Millisecond, "1s"},
		{time.Second, "1s"},
		{1500 * time.Millisecond, "2s"},
		{30 * time.Second, "30s"},
	}
	for _, tt := range tests {
		if got := formatCountdown(tt.in); got != tt.want {
			t.Errorf("formatCountdown(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

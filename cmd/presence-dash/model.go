package main

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"presence/pkg/projector"
	"presence/pkg/statusync"
)

// frameMsg carries a projected frame from the sync client.
type frameMsg struct{ frame projector.Frame }

// stateMsg carries a connection state change from the sync client.
type stateMsg struct{ change statusync.StateChange }

// tickMsg drives the reconnect countdown.
type tickMsg time.Time

// tickCmd returns a command that sends a tickMsg after 1 second.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// reconnector is the part of the sync client the dashboard drives.
type reconnector interface {
	ReconnectNow()
}

// reconnectCmd calls ReconnectNow off the event loop. The client may run
// its transitions, and with them OnState and p.Send, on the calling
// goroutine, which must not be the one that reads p.Send.
func reconnectCmd(r reconnector) tea.Cmd {
	return func() tea.Msg {
		r.ReconnectNow()
		return nil
	}
}

// Model is the Bubble Tea model for the presence dashboard.
type Model struct {
	sync    reconnector
	visible *atomic.Bool // read by the poll loop
	now     func() time.Time
	watch   tea.Cmd // waits for the next config change; nil when not watching

	frame projector.Frame
	state statusync.StateChange

	showHelp bool
	notice   string

	spinner spinner.Model
	styles  Styles

	width  int
	height int
}

// newModel creates a Model. visible starts true and follows terminal focus.
func newModel(sync reconnector, visible *atomic.Bool, watch tea.Cmd) Model {
	visible.Store(true)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		sync:    sync,
		visible: visible,
		now:     time.Now,
		watch:   watch,
		state:   statusync.StateChange{State: statusync.StateIdle},
		spinner: sp,
		styles:  NewStyles(DefaultTheme()),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(), m.spinner.Tick}
	if m.watch != nil {
		cmds = append(cmds, m.watch)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.FocusMsg:
		m.visible.Store(true)

	case tea.BlurMsg:
		m.visible.Store(false)

	case frameMsg:
		m.frame = msg.frame

	case stateMsg:
		m.state = msg.change
		if msg.change.State == statusync.StateOpen {
			m.notice = ""
		}

	case configChangedMsg:
		m.notice = "config changed, reconnecting"
		return m, tea.Batch(reconnectCmd(m.sync), m.watch)

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKeyPress processes keyboard input and returns updated model with optional command.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
	case "esc":
		m.showHelp = false
	case "r":
		if m.state.State.Terminal() {
			m.notice = "push unavailable here; polling"
			return m, nil
		}
		m.notice = "reconnecting"
		return m, reconnectCmd(m.sync)
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.showHelp {
		return m.renderHelpOverlay()
	}

	parts := []string{m.renderHeader(), "", m.renderBody()}
	if footer := m.renderFooter(); footer != "" {
		parts = append(parts, "", footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderHeader renders the page title and connection indicator.
func (m Model) renderHeader() string {
	title := "presence"
	if vm, ok := m.frame.(projector.ViewModel); ok && vm.PageName != "" {
		title = vm.PageName
	}
	return m.styles.Title.Render(title) + "  " + m.renderConnection()
}

// renderConnection renders the connection indicator for the current state.
func (m Model) renderConnection() string {
	switch m.state.State {
	case statusync.StateOpen:
		return m.styles.Live.Render("● live")
	case statusync.StateConnecting:
		return m.styles.Pending.Render(m.spinner.View() + " connecting")
	case statusync.StateReconnecting:
		text := fmt.Sprintf("%s reconnecting in %s (attempt %d)",
			m.spinner.View(), formatCountdown(m.state.Remaining(m.now())), m.state.Attempt)
		return m.styles.Pending.Render(text)
	case statusync.StateDegraded:
		return m.styles.Fallback.Render("◌ polling (streaming unavailable)")
	case statusync.StatePolling:
		return m.styles.Fallback.Render("◌ polling")
	default:
		return m.styles.Muted.Render("○ idle")
	}
}

// formatCountdown renders d rounded up to whole seconds.
func formatCountdown(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%ds", secs)
}

// renderBody renders the current frame.
func (m Model) renderBody() string {
	switch f := m.frame.(type) {
	case projector.ViewModel:
		return m.renderView(f)
	case projector.ErrorView:
		return m.styles.Error.Render("error: " + f.Message)
	default:
		return m.styles.Muted.Render("waiting for the first update")
	}
}

func (m Model) renderView(vm projector.ViewModel) string {
	var b strings.Builder
	b.WriteString(m.styles.Status.Render(vm.Status.Name))
	if vm.Status.Desc != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Desc.Render(vm.Status.Desc))
	}

	if len(vm.Devices) > 0 {
		b.WriteString("\n")
	}
	for _, d := range vm.Devices {
		b.WriteString("\n")
		if d.Using {
			b.WriteString(m.styles.DeviceUsing.Render("● " + d.Name + ": " + d.Text))
		} else {
			b.WriteString(m.styles.DeviceIdle.Render("○ " + d.Name + ": " + d.Text))
		}
	}

	b.WriteString("\n\n")
	meta := "received " + vm.ReceivedAt
	if vm.LastUpdated != "" {
		meta = "updated " + vm.LastUpdated + " (" + vm.Timezone + "), " + meta
	}
	b.WriteString(m.styles.Muted.Render(meta))
	return b.String()
}

// renderFooter renders the notice line and key hint.
func (m Model) renderFooter() string {
	hint := m.styles.Muted.Render("r reconnect · ? help · q quit")
	if m.notice == "" {
		return hint
	}
	return m.styles.Pending.Render(m.notice) + "  " + hint
}

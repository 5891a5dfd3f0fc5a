package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// helpEntry pairs a key or indicator with what it means.
type helpEntry struct {
	key  string
	desc string
}

var keyBindings = []helpEntry{
	{"r", "Reconnect now (skips the backoff wait)"},
	{"?", "Toggle help"},
	{"q or ctrl+c", "Quit"},
}

// indicatorLegend explains the connection indicator in the header.
var indicatorLegend = []helpEntry{
	{"● live", "Push stream open"},
	{"connecting", "Push stream requested"},
	{"reconnecting", "Waiting out the backoff delay"},
	{"◌ polling", "Pulling on the server's refresh interval"},
}

// renderHelpOverlay renders the help panel in place of the dashboard.
func (m Model) renderHelpOverlay() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.HelpTitle.Render("Keys"),
		m.renderHelpSection(keyBindings),
		m.styles.HelpTitle.Render("Connection"),
		m.renderHelpSection(indicatorLegend),
		m.styles.HelpFooter.Render("Press ? or Esc to close"),
	)
}

func (m Model) renderHelpSection(entries []helpEntry) string {
	var b strings.Builder
	keyStyle := m.styles.HelpKey.Width(16)
	for _, e := range entries {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left,
			keyStyle.Render(e.key), m.styles.HelpDesc.Render(e.desc)))
		b.WriteString("\n")
	}
	return m.styles.HelpContent.Render(b.String())
}

package main

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual styling for the presence dashboard.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
}

// DefaultTheme returns the default theme for presence-dash.
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("12"),  // Blue
		Secondary: lipgloss.Color("14"),  // Cyan
		Success:   lipgloss.Color("10"),  // Green
		Warning:   lipgloss.Color("11"),  // Yellow
		Error:     lipgloss.Color("9"),   // Red
		Muted:     lipgloss.Color("240"), // Gray
	}
}

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Title       lipgloss.Style
	Status      lipgloss.Style
	Desc        lipgloss.Style
	DeviceUsing lipgloss.Style
	DeviceIdle  lipgloss.Style
	Error       lipgloss.Style
	Muted       lipgloss.Style
	Live        lipgloss.Style
	Pending     lipgloss.Style
	Fallback    lipgloss.Style

	HelpTitle   lipgloss.Style
	HelpKey     lipgloss.Style
	HelpDesc    lipgloss.Style
	HelpContent lipgloss.Style
	HelpFooter  lipgloss.Style
}

// NewStyles builds Styles from t.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:       lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Status:      lipgloss.NewStyle().Bold(true).Foreground(t.Secondary),
		Desc:        lipgloss.NewStyle().Italic(true),
		DeviceUsing: lipgloss.NewStyle().Foreground(t.Success),
		DeviceIdle:  lipgloss.NewStyle().Foreground(t.Muted),
		Error:       lipgloss.NewStyle().Foreground(t.Error),
		Muted:       lipgloss.NewStyle().Foreground(t.Muted),
		Live:        lipgloss.NewStyle().Foreground(t.Success),
		Pending:     lipgloss.NewStyle().Foreground(t.Warning),
		Fallback:    lipgloss.NewStyle().Foreground(t.Secondary),

		HelpTitle:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary).MarginBottom(1),
		HelpKey:     lipgloss.NewStyle().Foreground(t.Secondary),
		HelpDesc:    lipgloss.NewStyle(),
		HelpContent: lipgloss.NewStyle().PaddingLeft(2),
		HelpFooter:  lipgloss.NewStyle().Foreground(t.Muted).MarginTop(1),
	}
}

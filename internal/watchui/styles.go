// Package watchui is the full-screen live quote board behind `lookout watch`.
package watchui

import "github.com/charmbracelet/lipgloss"

var (
	colorUp      = lipgloss.Color("#8BC34A")
	colorDown    = lipgloss.Color("#E53935")
	colorWarn    = lipgloss.Color("#FFC107")
	colorInfo    = lipgloss.Color("#2196F3")
	colorMuted   = lipgloss.Color("#6B7280")
	colorBorder  = lipgloss.Color("#2A3850")
	colorHeading = lipgloss.Color("#F2F2F2")
)

type styles struct {
	Title   lipgloss.Style
	Live    lipgloss.Style
	Pending lipgloss.Style
	Down    lipgloss.Style
	Muted   lipgloss.Style
	Note    lipgloss.Style
	Board   lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(colorHeading),
		Live:    lipgloss.NewStyle().Foreground(colorUp),
		Pending: lipgloss.NewStyle().Foreground(colorWarn),
		Down:    lipgloss.NewStyle().Foreground(colorDown),
		Muted:   lipgloss.NewStyle().Foreground(colorMuted),
		Note:    lipgloss.NewStyle().Foreground(colorInfo),
		Board: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder),
	}
}

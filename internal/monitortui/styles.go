package monitortui

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette, kept small and reused across views.
var (
	ColorPrimary = lipgloss.Color("#8B5CF6")
	ColorMuted   = lipgloss.Color("#6B7280")
	ColorText    = lipgloss.Color("#F8FAFC")
	ColorTextDim = lipgloss.Color("#94A3B8")

	ColorOverdue  = lipgloss.Color("#EF4444")
	ColorUrgent   = lipgloss.Color("#F59E0B")
	ColorReminder = lipgloss.Color("#06B6D4")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Background(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	SubHeaderStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim).
			Italic(true)

	ColumnHeaderStyle = lipgloss.NewStyle().
				Foreground(ColorMuted).
				Bold(true)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)
)

func severityStyle(s string) lipgloss.Style {
	switch s {
	case "overdue":
		return lipgloss.NewStyle().Foreground(ColorOverdue).Bold(true)
	case "urgent":
		return lipgloss.NewStyle().Foreground(ColorUrgent)
	default:
		return lipgloss.NewStyle().Foreground(ColorReminder)
	}
}

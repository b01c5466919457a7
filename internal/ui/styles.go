package ui

import "github.com/charmbracelet/lipgloss"

// Lip Gloss styles for the interactive list, rebuilt by SetTheme.
var (
	TitleStyle   lipgloss.Style
	SuccessStyle lipgloss.Style
	PendingStyle lipgloss.Style
	AccentStyle  lipgloss.Style
	MutedStyle   lipgloss.Style
	ErrorStyle   lipgloss.Style
	StaleStyle   lipgloss.Style
	SyncingStyle lipgloss.Style

	SelectedStyle lipgloss.Style
	DoneStyle     lipgloss.Style
	HelpStyle     lipgloss.Style
	BorderStyle   lipgloss.Style

	BoxChecked   string
	BoxUnchecked string
)

func fg(c lipgloss.Color) lipgloss.Style {
	if c == "" {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(c)
}

func applyStyles(t Theme) {
	p := t.Palette
	TitleStyle = lipgloss.NewStyle().Bold(true)
	SuccessStyle = fg(p.Success)
	PendingStyle = fg(p.Pending)
	AccentStyle = fg(p.Accent)
	MutedStyle = lipgloss.NewStyle().Faint(true)
	ErrorStyle = fg(p.Error).Bold(true)
	StaleStyle = fg(p.Stale).Bold(true)
	SyncingStyle = MutedStyle.Italic(true)

	SelectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	DoneStyle = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	HelpStyle = lipgloss.NewStyle().Faint(true)
	BorderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	if p.Border != "" {
		BorderStyle = BorderStyle.BorderForeground(p.Border)
	}

	BoxChecked = t.BoxChecked
	BoxUnchecked = t.BoxUnchecked
}

// Frame wraps inner in the rounded border used around the whole view.
func Frame(inner string) string {
	return BorderStyle.Render(inner)
}

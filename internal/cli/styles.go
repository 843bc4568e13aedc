package cli

import "github.com/charmbracelet/lipgloss"

// Theme holds the color scheme for the chat views.
type Theme struct {
	Self    lipgloss.Color
	Peer    lipgloss.Color
	Pending lipgloss.Color
	Failed  lipgloss.Color
	Online  lipgloss.Color
	Hint    lipgloss.Color
	Notice  lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Self:    lipgloss.Color("#5FAFD7"), // light blue
	Peer:    lipgloss.Color("#00D787"), // green
	Pending: lipgloss.Color("#6C6C6C"), // dim gray
	Failed:  lipgloss.Color("#FF005F"), // red
	Online:  lipgloss.Color("#00D787"), // green
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
	Notice:  lipgloss.Color("#FFAF00"), // amber
}

// Style functions for dynamic theming
func (t Theme) selfStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Self).Bold(true)
}

func (t Theme) peerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Peer).Bold(true)
}

func (t Theme) pendingStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Pending)
}

func (t Theme) failedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Failed)
}

func (t Theme) onlineStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Online)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) noticeStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Notice)
}

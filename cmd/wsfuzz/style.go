package main

import "github.com/charmbracelet/lipgloss"

var (
	colorOK    = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	colorError = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	colorWarn  = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	colorInfo  = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	colorMuted = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}
)

var (
	styleOK      = lipgloss.NewStyle().Foreground(colorOK).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleWarn    = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	styleInfo    = lipgloss.NewStyle().Foreground(colorInfo)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleHeading = lipgloss.NewStyle().Bold(true).Underline(true)
	styleKey     = lipgloss.NewStyle().Foreground(colorInfo).Width(28)
)

const (
	symbolOK   = "✓"
	symbolFail = "✗"
	symbolUp   = "↑"
	symbolDown = "↓"
)

// truncate shortens s to n runes for one-line previews.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

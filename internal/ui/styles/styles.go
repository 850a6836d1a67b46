// Package styles contains Lip Gloss style definitions.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Semantic color names - Text hierarchy
	TextPrimaryColor   = lipgloss.AdaptiveColor{Light: "#333333", Dark: "#CCCCCC"} // Main/primary text
	TextSecondaryColor = lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#BBBBBB"} // Secondary info
	TextMutedColor     = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#696969"} // Hints, help text, footers

	// Semantic color names - Status
	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"} // Live observers
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"} // Pending cleanup
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"} // Stale entries, rejections

	AccentColor = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"}

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(AccentColor)

	MutedStyle   = lipgloss.NewStyle().Foreground(TextMutedColor)
	LabelStyle   = lipgloss.NewStyle().Foreground(TextSecondaryColor)
	LiveStyle    = lipgloss.NewStyle().Foreground(StatusSuccessColor)
	PendingStyle = lipgloss.NewStyle().Foreground(StatusWarningColor)
	StaleStyle   = lipgloss.NewStyle().Foreground(StatusErrorColor)

	// Observer card in the watch view
	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(AccentColor).
			Padding(0, 1)

	// Report tables printed by the CLI
	TableStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(AccentColor).
			Padding(0, 1)
)

// ApplyTheme overrides the status colors. Empty strings keep the defaults.
func ApplyTheme(muted, errorColor, success string) {
	if muted != "" {
		TextMutedColor = lipgloss.AdaptiveColor{Light: muted, Dark: muted}
		MutedStyle = MutedStyle.Foreground(TextMutedColor)
	}
	if errorColor != "" {
		StatusErrorColor = lipgloss.AdaptiveColor{Light: errorColor, Dark: errorColor}
		StaleStyle = StaleStyle.Foreground(StatusErrorColor)
	}
	if success != "" {
		StatusSuccessColor = lipgloss.AdaptiveColor{Light: success, Dark: success}
		LiveStyle = LiveStyle.Foreground(StatusSuccessColor)
	}
}

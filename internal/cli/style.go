package cli

import "github.com/charmbracelet/lipgloss"

var (
	// titleStyle for section headers
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	// dimStyle for muted metadata text
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// successStyle for the best sweep result
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	// depthStyles color tree items by depth, cycling when the model is deeper
	depthStyles = []lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("81")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("213")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("150")),
	}
)

func depthStyle(depth int) lipgloss.Style {
	return depthStyles[depth%len(depthStyles)]
}

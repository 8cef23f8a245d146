package picker

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("#61AFEF")
	colorGreen  = lipgloss.Color("#98C379")
	colorRed    = lipgloss.Color("#E06C75")
	colorMuted  = lipgloss.Color("#636B78")
	colorBorder = lipgloss.Color("#3F4451")
)

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	itemStyle = lipgloss.NewStyle().PaddingLeft(2)

	successStyle = lipgloss.NewStyle().Foreground(colorGreen)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	hintStyle    = lipgloss.NewStyle().Foreground(colorMuted)
)

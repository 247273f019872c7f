package tui

import "github.com/charmbracelet/lipgloss"

var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)
	styleFooter  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Padding(0, 1)
	styleUser    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	styleAgent   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	styleSystem  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleThought = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("11"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// stateColor maps agent states to header colors.
var stateColor = map[string]lipgloss.Color{
	"IDLE":  lipgloss.Color("10"),
	"BUSY":  lipgloss.Color("11"),
	"ERROR": lipgloss.Color("9"),
}

// internal/tui/components/theme.go
package components

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme contains the styles used by the prompts
type Theme struct {
	Title        lipgloss.Style
	Status       lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	InfoStyle    lipgloss.Style
	Border       lipgloss.Style
	Button       lipgloss.Style
	ButtonFocus  lipgloss.Style
}

// DefaultTheme returns the default theme
func DefaultTheme() *Theme {
	primary := lipgloss.Color("#25A065")
	warning := lipgloss.Color("#FFFF00")
	errorColor := lipgloss.Color("#FF0000")
	info := lipgloss.Color("#0080FF")

	return &Theme{
		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(primary).
			Padding(0, 1).
			Bold(true),
		Status:       lipgloss.NewStyle().Faint(true),
		ErrorStyle:   lipgloss.NewStyle().Foreground(errorColor).Bold(true),
		WarningStyle: lipgloss.NewStyle().Foreground(warning),
		InfoStyle:    lipgloss.NewStyle().Foreground(info),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(0, 1),
		Button: lipgloss.NewStyle().
			Padding(0, 1).
			Background(lipgloss.Color("#444444")),
		ButtonFocus: lipgloss.NewStyle().
			Padding(0, 1).
			Background(primary).
			Bold(true),
	}
}

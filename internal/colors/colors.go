package colors

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	cyanStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

// Main colors for messages
func Error(text string) string {
	return errorStyle.Render(text)
}

func Success(text string) string {
	return successStyle.Render(text)
}

func Warning(text string) string {
	return warningStyle.Render(text)
}

func Info(text string) string {
	return infoStyle.Render(text)
}

// Additional colors for elements
func Cyan(text string) string {
	return cyanStyle.Render(text)
}

func Dim(text string) string {
	return dimStyle.Render(text)
}

func Bold(text string) string {
	return boldStyle.Render(text)
}

// SupportsColors checks NO_COLOR and whether stdout is a terminal.
func SupportsColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Safe color output (disables colors if not supported)
func SafeColor(text string, colorFunc func(string) string) string {
	if SupportsColors() {
		return colorFunc(text)
	}
	return text
}

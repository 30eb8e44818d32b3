// internal/tui/components/confirmation.go
package components

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ConfirmationType represents the type of confirmation dialog
type ConfirmationType int

const (
	ConfirmationTypeInfo ConfirmationType = iota
	ConfirmationTypeWarning
	ConfirmationTypeDanger
)

// ConfirmationComponent represents a confirmation dialog
type ConfirmationComponent struct {
	title       string
	message     string
	confirmText string
	cancelText  string
	confirmType ConfirmationType
	theme       *Theme

	selectedOption int // 0 = cancel, 1 = confirm
	width          int
	done           bool
	confirmed      bool
}

// NewConfirmationComponent creates a new confirmation component. Cancel is
// selected initially.
func NewConfirmationComponent(theme *Theme, title, message string, confirmType ConfirmationType) *ConfirmationComponent {
	c := &ConfirmationComponent{
		title:       title,
		message:     message,
		confirmText: "Confirm",
		cancelText:  "Cancel",
		confirmType: confirmType,
		theme:       theme,
	}
	switch confirmType {
	case ConfirmationTypeDanger:
		c.confirmText = "DELETE"
	case ConfirmationTypeWarning:
		c.confirmText = "Continue"
	}
	return c
}

func (c *ConfirmationComponent) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (c *ConfirmationComponent) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "left", "h":
			c.selectedOption = 0
		case "right", "l":
			c.selectedOption = 1
		case "tab":
			c.selectedOption = (c.selectedOption + 1) % 2
		case "y":
			return c.finish(true)
		case "n", "esc", "ctrl+c", "q":
			return c.finish(false)
		case "enter":
			return c.finish(c.selectedOption == 1)
		}
	}
	return c, nil
}

func (c *ConfirmationComponent) finish(confirmed bool) (tea.Model, tea.Cmd) {
	c.done = true
	c.confirmed = confirmed
	return c, tea.Quit
}

// View renders the confirmation dialog
func (c *ConfirmationComponent) View() string {
	if c.done {
		return ""
	}

	dialogWidth := 60
	if c.width > 0 && c.width < 80 {
		dialogWidth = c.width - 10
	}

	titleStyle := c.theme.Title
	messageStyle := c.theme.InfoStyle
	switch c.confirmType {
	case ConfirmationTypeWarning:
		titleStyle = c.theme.WarningStyle
		messageStyle = c.theme.WarningStyle
	case ConfirmationTypeDanger:
		titleStyle = c.theme.ErrorStyle
		messageStyle = c.theme.ErrorStyle
	}

	lines := []string{titleStyle.Render(c.title), ""}
	for _, line := range wrapText(c.message, dialogWidth-4) {
		lines = append(lines, messageStyle.Render(line))
	}
	lines = append(lines, "", c.renderButtons())

	body := lipgloss.JoinVertical(lipgloss.Center, lines...)
	return c.theme.Border.Width(dialogWidth).Render(body) + "\n"
}

// renderButtons renders the confirmation buttons
func (c *ConfirmationComponent) renderButtons() string {
	cancelStyle, confirmStyle := c.theme.Button, c.theme.Button
	if c.selectedOption == 0 {
		cancelStyle = c.theme.ButtonFocus
	} else {
		confirmStyle = c.theme.ButtonFocus
		if c.confirmType == ConfirmationTypeDanger {
			confirmStyle = c.theme.ButtonFocus.Background(lipgloss.Color("#FF0000"))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Center,
		cancelStyle.Render(c.cancelText), "  ", confirmStyle.Render(c.confirmText))
}

// Confirmed reports the user's answer once the dialog is closed.
func (c *ConfirmationComponent) Confirmed() bool {
	return c.done && c.confirmed
}

// wrapText wraps text to fit within the specified width
func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	var currentLine strings.Builder
	for _, word := range strings.Fields(text) {
		if currentLine.Len() > 0 && currentLine.Len()+len(word)+1 > width {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
		}
		if currentLine.Len() > 0 {
			currentLine.WriteString(" ")
		}
		currentLine.WriteString(word)
	}
	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}
	return lines
}

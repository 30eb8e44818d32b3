// internal/tui/components/secret_input.go
package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	kerrors "krypton.module/internal/errors"
	"krypton.module/internal/securedata"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = kerrors.New(kerrors.ErrCodeInputCancelled, "input cancelled by user").
	WithSeverity(kerrors.SeverityInfo)

// SecretInputType represents the type of secret input
type SecretInputType int

const (
	SecretInputPassphrase SecretInputType = iota
	SecretInputMnemonic
	SecretInputPayload
)

// SecretInput is a masked text prompt whose result lands in a guarded buffer.
type SecretInput struct {
	input      textinput.Model
	inputType  SecretInputType
	theme      *Theme
	title      string
	protection securedata.Protection

	// repeat asks for the value twice; first holds the first entry.
	repeat bool
	first  *securedata.Buffer

	showValue bool
	errorMsg  string

	result    *securedata.Buffer
	err       error
	cancelled bool
}

// NewSecretInput creates a secret prompt. With repeat set the value must be
// typed twice.
func NewSecretInput(theme *Theme, inputType SecretInputType, title string, repeat bool, protection securedata.Protection) *SecretInput {
	input := textinput.New()
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '•'

	switch inputType {
	case SecretInputPassphrase:
		input.Placeholder = "Enter passphrase"
		input.CharLimit = 256
	case SecretInputMnemonic:
		input.Placeholder = "Enter 24 words separated by spaces"
		input.CharLimit = 400
	case SecretInputPayload:
		input.Placeholder = "Enter secret"
		input.CharLimit = 4096
	}
	input.Focus()

	return &SecretInput{
		input:      input,
		inputType:  inputType,
		theme:      theme,
		title:      title,
		repeat:     repeat,
		protection: protection,
	}
}

func (c *SecretInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (c *SecretInput) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		c.input, cmd = c.input.Update(msg)
		return c, cmd
	}

	switch key.String() {
	case "ctrl+c", "esc":
		c.cancel()
		return c, tea.Quit
	case "ctrl+h":
		c.showValue = !c.showValue
		if c.showValue {
			c.input.EchoMode = textinput.EchoNormal
		} else {
			c.input.EchoMode = textinput.EchoPassword
		}
		return c, nil
	case "enter":
		if c.submit() {
			return c, tea.Quit
		}
		return c, nil
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	c.errorMsg = ""
	return c, cmd
}

// submit moves the typed value into a guarded buffer. It reports whether the
// prompt is finished.
func (c *SecretInput) submit() bool {
	value := c.input.Value()
	c.input.Reset()
	if value == "" {
		c.errorMsg = "value cannot be empty"
		return false
	}

	buf, err := securedata.New(len(value), c.protection, func(dst []byte) error {
		copy(dst, value)
		return nil
	})
	if err != nil {
		c.err = err
		c.releaseFirst()
		return true
	}

	if !c.repeat {
		c.result = buf
		return true
	}
	if c.first == nil {
		c.first = buf
		return false
	}

	var same bool
	err = c.first.Read(func(data []byte) error {
		var err error
		same, err = buf.Equal(data)
		return err
	})
	c.releaseFirst()
	switch {
	case err != nil:
		_ = buf.Release()
		c.err = err
		return true
	case !same:
		_ = buf.Release()
		c.errorMsg = "entries do not match, try again"
		return false
	}
	c.result = buf
	return true
}

func (c *SecretInput) releaseFirst() {
	if c.first != nil {
		_ = c.first.Release()
		c.first = nil
	}
}

func (c *SecretInput) cancel() {
	c.cancelled = true
	c.input.Reset()
	c.releaseFirst()
}

// View renders the secret prompt
func (c *SecretInput) View() string {
	if c.result != nil || c.cancelled || c.err != nil {
		return ""
	}

	var content strings.Builder
	title := c.title
	if c.first != nil {
		title = "Repeat: " + title
	}
	content.WriteString(c.theme.Title.Render(title))
	content.WriteString("\n\n")
	content.WriteString(c.input.View())
	if c.showValue {
		content.WriteString(" ")
		content.WriteString(c.theme.WarningStyle.Render("(visible)"))
	}
	if c.errorMsg != "" {
		content.WriteString("\n")
		content.WriteString(c.theme.ErrorStyle.Render("Error: " + c.errorMsg))
	}
	content.WriteString("\n")
	content.WriteString(c.theme.Status.Render(c.helpText()))
	content.WriteString("\n")
	return content.String()
}

func (c *SecretInput) helpText() string {
	baseHelp := "Enter: submit | Ctrl+H: toggle visibility | Esc: cancel"
	switch c.inputType {
	case SecretInputPassphrase:
		return baseHelp + " | use a strong passphrase"
	case SecretInputMnemonic:
		return baseHelp + " | 24 words"
	default:
		return baseHelp
	}
}

// Result returns the guarded value. The caller releases it.
func (c *SecretInput) Result() (*securedata.Buffer, error) {
	switch {
	case c.err != nil:
		return nil, c.err
	case c.cancelled || c.result == nil:
		return nil, ErrCancelled
	}
	return c.result, nil
}

// internal/tui/components/prompt.go
package components

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	kerrors "krypton.module/internal/errors"
	"krypton.module/internal/securedata"
)

// MaxLineLength bounds a secret read from a non-terminal input.
const MaxLineLength = 4096

// PromptOptions configures ReadSecret and Confirm.
type PromptOptions struct {
	Title      string
	Message    string
	Type       SecretInputType
	Repeat     bool
	Protection securedata.Protection
	// In and Out default to stdin and stderr.
	In  io.Reader
	Out io.Writer
}

func (o PromptOptions) streams() (io.Reader, io.Writer) {
	in, out := o.In, o.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	return in, out
}

// IsTerminal reports whether r is an interactive terminal.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ReadSecret prompts for a secret. On a terminal it runs a masked bubbletea
// prompt; otherwise it reads one line from the input.
func ReadSecret(ctx context.Context, opts PromptOptions) (*securedata.Buffer, error) {
	in, out := opts.streams()
	if !IsTerminal(in) {
		return ReadSecretLine(in, MaxLineLength, opts.Protection)
	}

	model := NewSecretInput(DefaultTheme(), opts.Type, opts.Title, opts.Repeat, opts.Protection)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
	if _, err := p.Run(); err != nil {
		model.cancel()
		if stderrors.Is(err, tea.ErrProgramKilled) {
			return nil, ErrCancelled
		}
		return nil, kerrors.Wrap(kerrors.ErrCodeInternal, "prompt failed", err)
	}
	return model.Result()
}

// ReadSecretLine reads up to the first newline of r into a guarded buffer of
// at most limit bytes. A trailing carriage return is dropped.
func ReadSecretLine(r io.Reader, limit int, protection securedata.Protection) (*securedata.Buffer, error) {
	n := 0
	buf, err := securedata.New(limit, protection, func(dst []byte) error {
		var one [1]byte
		for {
			m, err := r.Read(one[:])
			if m == 1 {
				if one[0] == '\n' {
					break
				}
				if n == len(dst) {
					return kerrors.NewInvalidInputError("secret", "input line too long")
				}
				dst[n] = one[0]
				n++
				continue
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
		}
		one[0] = 0
		if n > 0 && dst[n-1] == '\r' {
			n--
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer buf.Release()

	if n == 0 {
		return nil, kerrors.NewInvalidInputError("secret", "value cannot be empty")
	}
	return buf.Truncate(n)
}

// Confirm asks a yes/no question. Without a terminal it reads one line and
// accepts "y" or "yes".
func Confirm(ctx context.Context, opts PromptOptions, confirmType ConfirmationType) (bool, error) {
	in, out := opts.streams()
	if !IsTerminal(in) {
		question := opts.Title
		if opts.Message != "" {
			question = opts.Message
		}
		io.WriteString(out, question+" [y/N]: ")
		line, err := ReadSecretLine(in, 16, securedata.ReadOnly)
		if err != nil {
			if kerrors.IsCode(err, kerrors.ErrCodeInvalidInput) {
				return false, nil
			}
			return false, err
		}
		defer line.Release()

		var answer string
		err = line.Read(func(data []byte) error {
			answer = strings.ToLower(strings.TrimSpace(string(data)))
			return nil
		})
		return answer == "y" || answer == "yes", err
	}

	model := NewConfirmationComponent(DefaultTheme(), opts.Title, opts.Message, confirmType)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
	if _, err := p.Run(); err != nil {
		if stderrors.Is(err, tea.ErrProgramKilled) {
			return false, ErrCancelled
		}
		return false, kerrors.Wrap(kerrors.ErrCodeInternal, "confirmation failed", err)
	}
	return model.Confirmed(), nil
}

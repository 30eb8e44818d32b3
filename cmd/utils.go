// cmd/utils.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"krypton.module/internal/colors"
	"krypton.module/internal/config"
	"krypton.module/internal/constants"
	"krypton.module/internal/errors"
	"krypton.module/internal/keyring"
	"krypton.module/internal/securedata"
	"krypton.module/internal/security"
	"krypton.module/internal/tui/components"
)

// maxPayload bounds plaintext read for seal.
const maxPayload = 1 << 20

// session is a loaded keyring plus what is needed to write it back.
type session struct {
	ring       *keyring.Keyring
	path       string
	recipients []age.Recipient
}

func (s *session) save() error {
	return s.ring.Save(s.path, s.recipients...)
}

func (s *session) close() {
	s.ring.Close()
}

func resting() securedata.Protection {
	p, err := securedata.ParseProtection(config.Cfg.DefaultProtection)
	if err != nil || p == securedata.ReadWrite {
		return securedata.NoAccess
	}
	return p
}

// parseResting accepts the protections a secret may rest at and returns the
// name stored in the configuration.
func parseResting(s string) (string, error) {
	p, err := securedata.ParseProtection(s)
	if err != nil {
		return "", err
	}
	switch p {
	case securedata.ReadOnly:
		return constants.ProtectionReadOnly, nil
	case securedata.NoAccess:
		return constants.ProtectionNoAccess, nil
	}
	return "", errors.NewInvalidInputError(s, "secrets rest at readonly or noaccess")
}

func keyringExists() bool {
	_, err := os.Stat(config.Cfg.KeyringFile)
	return err == nil
}

// openSession loads the configured keyring. In passphrase mode the user is
// asked once; a keyring that does not exist yet asks twice.
func openSession(ctx context.Context) (*session, error) {
	exists := keyringExists()
	s, identities, err := newSession(ctx, !exists, exists)
	if err != nil {
		return nil, err
	}

	ring, err := keyring.Load(s.path, identities...)
	if err != nil {
		return nil, err
	}
	s.ring = ring
	return s, nil
}

// newSession resolves the age recipients for the configured encryption
// method, plus identities when decrypt is set. The keyring is left empty.
func newSession(ctx context.Context, repeat, decrypt bool) (*session, []age.Identity, error) {
	s := &session{path: config.Cfg.KeyringFile, ring: keyring.New()}

	var identities []age.Identity
	switch config.Cfg.Encryption {
	case constants.EncryptionRecipients:
		recipients, err := keyring.RecipientsFromFile(config.Cfg.RecipientsFile)
		if err != nil {
			return nil, nil, err
		}
		s.recipients = recipients
		if decrypt {
			if config.Cfg.IdentityFile == "" {
				return nil, nil, errors.NewConfigMissingError("identity_file")
			}
			identities, err = keyring.IdentitiesFromFile(config.Cfg.IdentityFile)
			if err != nil {
				return nil, nil, err
			}
		}

	default:
		pass, err := components.ReadSecret(ctx, components.PromptOptions{
			Title:      "Keyring passphrase",
			Type:       components.SecretInputPassphrase,
			Repeat:     repeat,
			Protection: securedata.NoAccess,
		})
		if err != nil {
			return nil, nil, err
		}
		pass = security.Track(pass, "keyring passphrase")
		defer security.Release(pass)

		recipient, err := keyring.PassphraseRecipient(pass, config.Cfg.ScryptWorkFactor)
		if err != nil {
			return nil, nil, err
		}
		s.recipients = []age.Recipient{recipient}
		if decrypt {
			identity, err := keyring.PassphraseIdentity(pass, config.Cfg.ScryptWorkFactor)
			if err != nil {
				return nil, nil, err
			}
			identities = []age.Identity{identity}
		}
	}
	return s, identities, nil
}

// openInput opens path, or stdin for "" and "-".
func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.FromOSError(err, path)
	}
	return f, nil
}

// readSecretInput reads a secret payload into guarded memory: a masked
// prompt on a terminal, the whole stream otherwise.
func readSecretInput(ctx context.Context, path, title string) (*securedata.Buffer, error) {
	if (path == "" || path == "-") && components.IsTerminal(os.Stdin) {
		return components.ReadSecret(ctx, components.PromptOptions{
			Title:      title,
			Type:       components.SecretInputPayload,
			Protection: securedata.NoAccess,
		})
	}
	in, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return securedata.ReadAll(in, maxPayload, securedata.NoAccess)
}

func readPublicInput(path string) ([]byte, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	data, err := io.ReadAll(io.LimitReader(in, maxPayload+1))
	if err != nil {
		return nil, errors.NewFileSystemError("read", path, err)
	}
	if len(data) > maxPayload {
		return nil, errors.NewInvalidInputError("input", "input too large")
	}
	return data, nil
}

// writeOutput prints data, or writes it to path through a 0600 temp file
// that is renamed into place. An interrupted write leaves nothing behind.
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	tmp, err := security.CreateTempFileWithAutoCleanup(filepath.Dir(path), ".krypton-out-*", data, "output for "+path)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.NewFileSystemError("rename", path, err)
	}
	return nil
}

// writeGuarded streams a guarded buffer to w without copying it to the heap.
func writeGuarded(w io.Writer, d securedata.Data) error {
	return d.Read(func(data []byte) error {
		_, err := w.Write(data)
		return err
	})
}

func confirm(ctx context.Context, title, message string, kind components.ConfirmationType) (bool, error) {
	return components.Confirm(ctx, components.PromptOptions{Title: title, Message: message}, kind)
}

func success(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colors.SafeColor(fmt.Sprintf(format, args...), colors.Success))
}

func info(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colors.SafeColor(fmt.Sprintf(format, args...), colors.Info))
}

func warn(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colors.SafeColor(fmt.Sprintf(format, args...), colors.Warning))
}

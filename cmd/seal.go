// File: cmd/seal.go
package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"krypton.module/internal/audit"
	"krypton.module/internal/constants"
	"krypton.module/internal/errors"
	"krypton.module/internal/keyring"
	"krypton.module/internal/keys"
	"krypton.module/internal/pairing"
	"krypton.module/internal/seal"
	"krypton.module/internal/security"
)

var (
	sealTo        string
	sealAnonymous bool
	sealOutput    string
)

// peerKey resolves the other party of a box operation: the flag value when
// given, the paired workstation key of entry otherwise.
func peerKey(flag string, entry keyring.Entry) (*[32]byte, error) {
	encoded := flag
	if encoded == "" {
		encoded = entry.PeerKey
	}
	if encoded == "" {
		return nil, errors.NewInvalidInputError("peer", fmt.Sprintf("key '%s' is not paired; pass the peer public key", entry.Name))
	}
	raw, err := pairing.FromBase64(encoded)
	if err != nil {
		return nil, err
	}
	return keys.ParsePublicKey(raw)
}

var sealCmd = &cobra.Command{
	Use:   "seal <NAME> [FILE]",
	Short: "Encrypts a payload with a secretbox or nacl-box key.",
	Long: `Encrypts FILE (or stdin, or a masked prompt on a terminal) and prints
the ciphertext as base64.

secretbox keys seal symmetrically. nacl-box keys seal to the peer given
by --to, or to the workstation the key was paired with. --anonymous seals
to the peer without authenticating the sender.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		path := ""
		if len(args) == 2 {
			path = args[1]
		}

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		entry, err := s.ring.Get(name)
		if err != nil {
			return err
		}

		var sealFn func(msg []byte) ([]byte, error)
		switch entry.Kind {
		case constants.KindSecretBox:
			kp, err := s.ring.OpenKey(name, resting())
			if err != nil {
				return err
			}
			kp = security.Track(kp, "seal key "+name)
			defer security.Release(kp)
			sealFn = sealWithSecret(kp)

		case constants.KindNaClBox:
			peer, err := peerKey(sealTo, entry)
			if err != nil {
				return err
			}
			if sealAnonymous {
				sealFn = func(msg []byte) ([]byte, error) { return sealAnonymousTo(peer, msg) }
				break
			}
			kp, err := s.ring.OpenKey(name, resting())
			if err != nil {
				return err
			}
			kp = security.Track(kp, "seal key "+name)
			defer security.Release(kp)
			sealFn = sealWithBox(peer, kp)

		default:
			return errors.NewInvalidKeyError(entry.Kind, "only secretbox and nacl-box keys seal payloads")
		}

		plain, err := readSecretInput(cmd.Context(), path, "Payload to seal")
		if err != nil {
			return err
		}
		plain = security.Track(plain, "payload")
		defer security.Release(plain)

		var sealed []byte
		if err := plain.Read(func(msg []byte) error {
			var err error
			sealed, err = sealFn(msg)
			return err
		}); err != nil {
			return err
		}

		audit.Logger.Info("Payload sealed",
			slog.String("name", name),
			slog.Bool("anonymous", sealAnonymous),
			slog.Int("bytes", plain.Len()))
		return writeOutput(sealOutput, []byte(pairing.ToBase64(sealed)+"\n"))
	},
}

func sealWithSecret(kp keys.KeyPair) func([]byte) ([]byte, error) {
	return func(msg []byte) ([]byte, error) {
		return seal.SealSecret(kp.(*keys.SymmetricKey), msg)
	}
}

func sealWithBox(peer *[32]byte, kp keys.KeyPair) func([]byte) ([]byte, error) {
	return func(msg []byte) ([]byte, error) {
		return seal.SealBox(peer, kp.(*keys.BoxKeyPair), msg)
	}
}

func sealAnonymousTo(peer *[32]byte, msg []byte) ([]byte, error) {
	return seal.SealAnonymous(peer, msg)
}

// readCiphertext reads base64 text from path or stdin.
func readCiphertext(path string) ([]byte, error) {
	data, err := readPublicInput(path)
	if err != nil {
		return nil, err
	}
	return pairing.FromBase64(strings.TrimSpace(string(data)))
}

func init() {
	rootCmd.AddCommand(sealCmd)
	sealCmd.Flags().StringVar(&sealTo, "to", "", "Base64 public key of the recipient (nacl-box keys).")
	sealCmd.Flags().StringVarP(&sealOutput, "output", "o", "", "Write the ciphertext to a file instead of stdout.")
	sealCmd.Flags().BoolVar(&sealAnonymous, "anonymous", false, "Seal without authenticating the sender (nacl-box keys).")
}

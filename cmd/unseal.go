// File: cmd/unseal.go
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"krypton.module/internal/audit"
	"krypton.module/internal/constants"
	"krypton.module/internal/errors"
	"krypton.module/internal/keys"
	"krypton.module/internal/seal"
	"krypton.module/internal/securedata"
	"krypton.module/internal/security"
)

var (
	unsealFrom      string
	unsealAnonymous bool
)

var unsealCmd = &cobra.Command{
	Use:   "unseal <NAME> [FILE]",
	Short: "Decrypts a base64 payload produced by 'seal'.",
	Long: `Decrypts the base64 ciphertext in FILE (or stdin) and writes the
plaintext to stdout. The plaintext is only held in locked memory until it
is written.`,
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

		sealed, err := readCiphertext(path)
		if err != nil {
			return err
		}

		entry, err := s.ring.Get(name)
		if err != nil {
			return err
		}
		if entry.Kind != constants.KindSecretBox && entry.Kind != constants.KindNaClBox {
			return errors.NewInvalidKeyError(entry.Kind, "only secretbox and nacl-box keys open payloads")
		}

		kp, err := s.ring.OpenKey(name, resting())
		if err != nil {
			return err
		}
		kp = security.Track(kp, "unseal key "+name)
		defer security.Release(kp)

		var plain *securedata.Buffer
		switch k := kp.(type) {
		case *keys.SymmetricKey:
			plain, err = seal.OpenSecret(k, sealed, securedata.NoAccess)
		case *keys.BoxKeyPair:
			if unsealAnonymous {
				plain, err = seal.OpenAnonymous(k, sealed, securedata.NoAccess)
				break
			}
			peer, perr := peerKey(unsealFrom, entry)
			if perr != nil {
				return perr
			}
			plain, err = seal.OpenBox(peer, k, sealed, securedata.NoAccess)
		}
		if err != nil {
			audit.Logger.Warn("Unseal failed",
				slog.String("name", name),
				slog.String("error", err.Error()))
			return err
		}
		plain = security.Track(plain, "unsealed payload")
		defer security.Release(plain)

		audit.Logger.Info("Payload unsealed",
			slog.String("name", name),
			slog.Int("bytes", plain.Len()))
		return writeGuarded(os.Stdout, plain)
	},
}

func init() {
	rootCmd.AddCommand(unsealCmd)
	unsealCmd.Flags().StringVar(&unsealFrom, "from", "", "Base64 public key of the sender (nacl-box keys).")
	unsealCmd.Flags().BoolVar(&unsealAnonymous, "anonymous", false, "Open an anonymously sealed payload (nacl-box keys).")
}

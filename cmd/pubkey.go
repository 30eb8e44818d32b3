// File: cmd/pubkey.go
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"krypton.module/internal/config"
	"krypton.module/internal/constants"
	"krypton.module/internal/errors"
	"krypton.module/internal/security"
)

var (
	pubkeyFingerprint bool
	pubkeyCopy        bool
)

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey <NAME>",
	Short: "Prints the public half of a key.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		entry, err := s.ring.Get(args[0])
		if err != nil {
			return err
		}

		var out string
		switch entry.Kind {
		case constants.KindSSHEd25519:
			pub, err := sshPublicKey(entry)
			if err != nil {
				return errors.NewKeyringCorruptError(config.Cfg.KeyringFile, err)
			}
			if pubkeyFingerprint {
				out = ssh.FingerprintSHA256(pub)
			} else {
				out = strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub)))
				if entry.Comment != "" {
					out += " " + entry.Comment
				}
			}
		case constants.KindNaClBox:
			out = entry.PublicKey
		default:
			return errors.NewInvalidKeyError(entry.Kind, "secretbox keys have no public half")
		}

		if pubkeyCopy && !programmaticMode {
			return copyWithTimeout(cmd.Context(), out, "Public key")
		}
		fmt.Println(out)
		return nil
	},
}

// copyWithTimeout copies text and blocks until the clipboard is cleared.
func copyWithTimeout(ctx context.Context, text, what string) error {
	timeout := config.GetClipboardTimeout()
	success("%s copied to clipboard. It will be cleared in %s.", what, timeout)
	return security.CopyToClipboard(ctx, text, timeout)
}

func init() {
	rootCmd.AddCommand(pubkeyCmd)
	pubkeyCmd.Flags().BoolVar(&pubkeyFingerprint, "fingerprint", false, "Print the SHA256 fingerprint instead of the key.")
	pubkeyCmd.Flags().BoolVarP(&pubkeyCopy, "copy", "c", false, "Copy to the clipboard instead of printing.")
}

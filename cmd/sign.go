// File: cmd/sign.go
package cmd

import (
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"krypton.module/internal/audit"
	"krypton.module/internal/errors"
	"krypton.module/internal/keys"
	"krypton.module/internal/security"
)

var signCmd = &cobra.Command{
	Use:   "sign <NAME> [FILE]",
	Short: "Signs a file (or stdin) with an ssh-ed25519 key.",
	Long: `Signs the contents of FILE, or stdin when FILE is omitted or "-".
The ssh wire-format signature is printed as base64.`,
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

		data, err := readPublicInput(path)
		if err != nil {
			return err
		}

		kp, err := s.ring.OpenKey(name, resting())
		if err != nil {
			return err
		}
		kp = security.Track(kp, "signing key "+name)
		defer security.Release(kp)

		sshKey, ok := kp.(*keys.SSHKey)
		if !ok {
			return errors.NewInvalidKeyError(kp.Kind(), "only ssh-ed25519 keys can sign")
		}

		sig, err := sshKey.Sign(data)
		if err != nil {
			return err
		}

		audit.Logger.Info("Data signed",
			slog.String("name", name),
			slog.Int("bytes", len(data)))
		fmt.Println(base64.StdEncoding.EncodeToString(keys.MarshalSignature(sig)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signCmd)
}

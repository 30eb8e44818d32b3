// File: cmd/verify.go
package cmd

import (
	"github.com/spf13/cobra"

	"krypton.module/internal/config"
	"krypton.module/internal/constants"
	"krypton.module/internal/errors"
	"krypton.module/internal/keys"
	"krypton.module/internal/pairing"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <NAME> <SIGNATURE> [FILE]",
	Short: "Verifies a base64 signature made by 'sign'.",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		path := ""
		if len(args) == 3 {
			path = args[2]
		}

		wire, err := pairing.FromBase64(args[1])
		if err != nil {
			return err
		}
		sig, err := keys.ParseSignature(wire)
		if err != nil {
			return err
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

		entry, err := s.ring.Get(name)
		if err != nil {
			return err
		}
		if entry.Kind != constants.KindSSHEd25519 {
			return errors.NewInvalidKeyError(entry.Kind, "only ssh-ed25519 keys verify signatures")
		}
		pub, err := sshPublicKey(entry)
		if err != nil {
			return errors.NewKeyringCorruptError(config.Cfg.KeyringFile, err)
		}

		if err := keys.Verify(pub, data, sig); err != nil {
			return err
		}
		success("Signature is valid for key '%s'.", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

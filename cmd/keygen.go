// File: cmd/keygen.go
package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"krypton.module/internal/audit"
	"krypton.module/internal/constants"
	"krypton.module/internal/errors"
	"krypton.module/internal/keyring"
	"krypton.module/internal/keys"
	"krypton.module/internal/security"
)

var (
	keygenKind    string
	keygenComment string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen <NAME>",
	Short: "Generates a new key and stores it in the keyring.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := keyring.ValidateName(name); err != nil {
			return err
		}
		if err := keys.ValidateKind(keygenKind); err != nil {
			return err
		}

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		if _, err := s.ring.Get(name); err == nil {
			return errors.NewEntryExistsError(name)
		}

		kp, err := keys.Generate(keygenKind, rand.Reader, resting())
		if err != nil {
			return err
		}
		kp = security.Track(kp, "generated key "+name)
		defer security.Release(kp)

		if err := s.ring.PutKey(name, keygenComment, kp); err != nil {
			return err
		}
		if err := s.save(); err != nil {
			return fmt.Errorf("failed to save keyring: %w", err)
		}

		audit.Logger.Info("Key generated",
			slog.String("name", name),
			slog.String("kind", kp.Kind()))
		success("Key '%s' (%s) created.", name, kp.Kind())

		switch k := kp.(type) {
		case *keys.SSHKey:
			fmt.Print(k.AuthorizedKey(keygenComment))
		case *keys.BoxKeyPair:
			fmt.Println(base64.StdEncoding.EncodeToString(k.PublicBytes()))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keygenKind, "kind", "k", constants.KindSSHEd25519, "Key kind: ssh-ed25519, nacl-box or secretbox.")
	keygenCmd.Flags().StringVar(&keygenComment, "comment", "", "Comment stored with the key.")
}

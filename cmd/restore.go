// File: cmd/restore.go
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"krypton.module/internal/audit"
	"krypton.module/internal/constants"
	"krypton.module/internal/errors"
	"krypton.module/internal/keyring"
	"krypton.module/internal/keys"
	"krypton.module/internal/securedata"
	"krypton.module/internal/security"
	"krypton.module/internal/tui/components"
)

var (
	restoreKind    string
	restoreComment string
)

var restoreCmd = &cobra.Command{
	Use:   "restore <NAME>",
	Short: "Rebuilds a key from its 24-word paper backup.",
	Long: `Reads a 24-word phrase (masked prompt on a terminal, one line from
stdin otherwise) and stores the key it encodes under NAME.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := keyring.ValidateName(name); err != nil {
			return err
		}
		if err := keys.ValidateKind(restoreKind); err != nil {
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

		words, err := components.ReadSecret(cmd.Context(), components.PromptOptions{
			Title:      "Recovery phrase for " + name,
			Type:       components.SecretInputMnemonic,
			Protection: securedata.NoAccess,
		})
		if err != nil {
			return err
		}
		words = security.Track(words, "recovery phrase")
		defer security.Release(words)

		seed, err := keys.SeedFromMnemonic(words, resting())
		if err != nil {
			return err
		}
		seed = security.Track(seed, "restored seed")
		defer security.Release(seed)

		kp, err := keys.FromSeed(restoreKind, seed)
		if err != nil {
			return err
		}
		kp = security.Track(kp, "restored key "+name)
		defer security.Release(kp)

		if err := s.ring.PutKey(name, restoreComment, kp); err != nil {
			return err
		}
		if err := s.save(); err != nil {
			return err
		}

		audit.Logger.Info("Key restored from paper backup",
			slog.String("name", name),
			slog.String("kind", kp.Kind()))
		success("Key '%s' (%s) restored.", name, kp.Kind())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().StringVarP(&restoreKind, "kind", "k", constants.KindSSHEd25519, "Kind of the key the phrase belongs to.")
	restoreCmd.Flags().StringVar(&restoreComment, "comment", "", "Comment stored with the key.")
}

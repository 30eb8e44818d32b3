// File: cmd/backup.go
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"krypton.module/internal/audit"
	"krypton.module/internal/keys"
	"krypton.module/internal/securedata"
	"krypton.module/internal/security"
	"krypton.module/internal/tui/components"
)

var backupStdout bool

var backupCmd = &cobra.Command{
	Use:   "backup <NAME>",
	Short: "Shows the 24-word paper backup of a key.",
	Long: `Encodes the 32-byte seed of a key as a 24-word BIP-39 phrase.
The phrase is copied to the clipboard and cleared after the clipboard
timeout. Use --stdout (or programmatic mode) to print it instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		seed, err := s.ring.Open(name, securedata.NoAccess)
		if err != nil {
			return err
		}
		seed = security.Track(seed, "seed of "+name)
		defer security.Release(seed)

		phrase, err := keys.Mnemonic(seed)
		if err != nil {
			return err
		}
		phrase = security.Track(phrase, "mnemonic of "+name)
		defer security.Release(phrase)

		audit.Logger.Warn("Paper backup exported", slog.String("name", name))

		if backupStdout || programmaticMode {
			if err := writeGuarded(os.Stdout, phrase); err != nil {
				return err
			}
			fmt.Println()
			return nil
		}

		ok, err := confirm(cmd.Context(), "Paper backup",
			fmt.Sprintf("Copy the recovery phrase of '%s' to the clipboard? Anyone holding it can rebuild the key.", name),
			components.ConfirmationTypeWarning)
		if err != nil {
			return err
		}
		if !ok {
			info("Cancelled.")
			return nil
		}

		// the clipboard API takes a string; this copy is left to the collector
		var text string
		if err := phrase.Read(func(data []byte) error {
			text = string(data)
			return nil
		}); err != nil {
			return err
		}
		return copyWithTimeout(cmd.Context(), text, "Recovery phrase")
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().BoolVar(&backupStdout, "stdout", false, "Print the phrase instead of copying it.")
}

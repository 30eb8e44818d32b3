// File: cmd/delete.go
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"krypton.module/internal/audit"
	"krypton.module/internal/config"
	"krypton.module/internal/tui/components"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <NAME>",
	Short: "Deletes a key from the keyring.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		if _, err := s.ring.Get(name); err != nil {
			return err
		}

		if !deleteYes {
			if programmaticMode {
				return fmt.Errorf("refusing to delete without --yes in programmatic mode")
			}
			ok, err := confirm(cmd.Context(), "Delete key",
				fmt.Sprintf("Delete key '%s' from '%s'? This cannot be undone without a paper backup.", name, config.Cfg.KeyringFile),
				components.ConfirmationTypeDanger)
			if err != nil {
				return err
			}
			if !ok {
				info("Cancelled.")
				return nil
			}
		}

		audit.Logger.Warn("Attempting key deletion", slog.String("name", name))
		if err := s.ring.Delete(name); err != nil {
			return err
		}
		if err := s.save(); err != nil {
			audit.Logger.Error("Failed to save keyring after deletion",
				slog.String("name", name),
				slog.String("error", err.Error()))
			return err
		}

		success("Key '%s' deleted.", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVar(&deleteYes, "yes", false, "Skip interactive confirmation.")
}

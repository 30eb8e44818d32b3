// File: cmd/init.go
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"krypton.module/internal/audit"
	"krypton.module/internal/colors"
	"krypton.module/internal/config"
	"krypton.module/internal/tui/components"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Creates an empty keyring file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(colors.SafeColor(
			fmt.Sprintf("Initializing keyring: %s (Encryption: %s)", config.Cfg.KeyringFile, config.Cfg.Encryption),
			colors.Info,
		))

		if keyringExists() && !initForce {
			if programmaticMode {
				return fmt.Errorf("keyring '%s' already exists; pass --force to overwrite it", config.Cfg.KeyringFile)
			}
			ok, err := confirm(cmd.Context(), "Overwrite keyring",
				fmt.Sprintf("Keyring '%s' already exists. Overwrite it? ALL KEYS WILL BE LOST!", config.Cfg.KeyringFile),
				components.ConfirmationTypeDanger)
			if err != nil {
				return err
			}
			if !ok {
				info("Cancelled.")
				return nil
			}
		}

		s, _, err := newSession(cmd.Context(), true, false)
		if err != nil {
			return err
		}
		defer s.close()

		if err := s.save(); err != nil {
			return err
		}

		audit.Logger.Info("Keyring initialized",
			slog.String("path", config.Cfg.KeyringFile),
			slog.String("encryption", config.Cfg.Encryption))
		success("Keyring successfully initialized at '%s'.", config.Cfg.KeyringFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing keyring without asking.")
}

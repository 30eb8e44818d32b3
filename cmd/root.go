// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"krypton.module/internal/audit"
	"krypton.module/internal/config"
	"krypton.module/internal/errors"
	"krypton.module/internal/securedata"
)

var (
	programmaticMode bool
	keyringFlag      string
	protectionFlag   string
)

var rootCmd = &cobra.Command{
	Use:               "krypton",
	Short:             "Keeps SSH, box and secretbox keys in locked, page-protected memory.",
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	SilenceErrors:     true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "completion" || cmd.Name() == "help" {
			return nil
		}

		if err := config.LoadConfigWithValidation(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if keyringFlag != "" {
			config.Cfg.KeyringFile = keyringFlag
		}
		if protectionFlag != "" {
			name, err := parseResting(protectionFlag)
			if err != nil {
				return err
			}
			config.Cfg.DefaultProtection = name
		}

		if err := audit.InitLogger(config.Cfg.AuditLog); err != nil {
			return fmt.Errorf("failed to initialize audit logger: %w", err)
		}
		audit.InitConsole(config.Cfg.LogLevel)
		errors.InitWithAuditLogger()

		arena := securedata.DefaultArena()
		arena.SetQuota(config.Cfg.ArenaQuota)
		arena.SetLogger(audit.Logger)

		audit.Logger.Info("Command executed", slog.String("command", cmd.CommandPath()))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		stats := securedata.DefaultArena().Stats()
		audit.Console.Debug("arena usage at exit",
			slog.Int("in_use", stats.InUse),
			slog.Int("buffers", stats.Buffers))
		return nil
	},
}

// Execute runs the root command under ctx, which is cancelled on shutdown.
func Execute(ctx context.Context) error {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	if os.Getenv("KRYPTON_PROGRAMMATIC") == "1" {
		programmaticMode = true
	}

	rootCmd.PersistentFlags().StringVar(&keyringFlag, "keyring", "", "Keyring file (overrides keyring_file).")
	rootCmd.PersistentFlags().StringVar(&protectionFlag, "protection", "", "Resting protection of loaded secrets: readonly or noaccess.")
}

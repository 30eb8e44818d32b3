// File: cmd/config.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"krypton.module/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manages the application settings.",
}

var configSetCmd = &cobra.Command{
	Use:   "set <KEY> <VALUE>",
	Short: "Sets a value for a configuration key.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])
		value := args[1]

		if err := config.Set(key, value); err != nil {
			return err
		}
		if err := config.SaveConfig(); err != nil {
			return fmt.Errorf("failed to save configuration: %w", err)
		}
		success("Configuration updated: %s = %s", key, value)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <KEY>",
	Short: "Shows the value of a configuration key.",
	Args:  cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return config.Keys, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])
		value, err := config.Get(key)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", key, value)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Shows every configuration key and its value.",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, key := range config.Keys {
			value, err := config.Get(key)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", key, value)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
}

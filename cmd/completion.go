// File: cmd/completion.go
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish]",
	Short: "Generates the completion script for a shell.",
	Long: `To load completions:

Bash:
  $ source <(krypton completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ krypton completion bash > /etc/bash_completion.d/krypton
  # macOS:
  $ krypton completion bash > /usr/local/etc/bash_completion.d/krypton

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it.  You can execute the following once:

  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ krypton completion zsh > "${fpath[1]}/_krypton"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ krypton completion fish | source

  # To load completions for each session, execute once:
  $ krypton completion fish > ~/.config/fish/completions/krypton.fish
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

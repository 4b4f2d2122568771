package cmd

import (
	"github.com/spf13/cobra"
)

// completionCmd prints a shell completion script. Metric arguments of
// series, chart, export and store commands complete to metric IDs.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for greenwatch.

To load completions in the current shell session:

  # bash
  source <(greenwatch completion bash)

  # zsh
  source <(greenwatch completion zsh)

  # fish
  greenwatch completion fish | source

Metric arguments complete to the canonical metric IDs (temperature,
humidity, outdoor, solar, mat-temp, mat-ec, water, wind).

Persist across sessions by adding the source line to your shell profile
(~/.bashrc, ~/.zshrc, ~/.config/fish/completions/greenwatch.fish, etc.).`,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cmd.Root()
		switch args[0] {
		case "bash":
			return root.GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return root.GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return root.GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		default:
			return cmd.Help()
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

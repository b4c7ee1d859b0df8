package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/keyturn/internal/config"
)

// NewCompletionCommand creates the completion command for generating shell completions.
func NewCompletionCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for keyturn.

To load completions:

Bash:
  $ source <(keyturn completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ keyturn completion bash > /etc/bash_completion.d/keyturn
  # macOS:
  $ keyturn completion bash > $(brew --prefix)/etc/bash_completion.d/keyturn

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ keyturn completion zsh > "${fpath[1]}/_keyturn"

Fish:
  $ keyturn completion fish | source

  # To load completions for each session, execute once:
  $ keyturn completion fish > ~/.config/fish/completions/keyturn.fish

PowerShell:
  PS> keyturn completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}

	return cmd
}

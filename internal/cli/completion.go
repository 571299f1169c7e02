package cli

import (
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for revgraph.

Revision arguments complete from the manifest given by --manifest or
REVGRAPH_MANIFEST.

To load completions:

Bash:
  $ source <(revgraph completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ revgraph completion bash > /etc/bash_completion.d/revgraph
  # macOS:
  $ revgraph completion bash > $(brew --prefix)/etc/bash_completion.d/revgraph

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ revgraph completion zsh > "${fpath[1]}/_revgraph"

Fish:
  $ revgraph completion fish | source

  # To load completions for each session, execute once:
  $ revgraph completion fish > ~/.config/fish/completions/revgraph.fish

PowerShell:
  PS> revgraph completion powershell | Out-String | Invoke-Expression
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

// completeRevisions offers symbolic names, branch labels and revision ids
// from the manifest.
func (c *CLI) completeRevisions(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	candidates := []string{"heads", "head", "base"}
	if l, err := c.loadMap(); err == nil {
		if labels, err := l.Map.BranchLabels(); err == nil {
			for name := range labels {
				candidates = append(candidates, name, name+"@head", name+"@base")
			}
		}
		if revs, err := l.Map.Revisions(); err == nil {
			for _, r := range revs {
				candidates = append(candidates, r.ID+"\t"+firstLine(r.Doc))
			}
		}
	}

	out := candidates[:0]
	for _, cand := range candidates {
		if strings.HasPrefix(cand, toComplete) && !slices.Contains(args, cand) {
			out = append(out, cand)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stratum/pkg/document"
	"github.com/matzehuels/stratum/pkg/node"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for stratum.

Layer ids, node ids and node kinds complete from the project file in the
current directory (or --project).

  $ source <(stratum completion bash)
  $ stratum completion zsh > "${fpath[1]}/_stratum"
  $ stratum completion fish > ~/.config/fish/completions/stratum.fish
  PS> stratum completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(os.Stdout, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
		},
	}
}

// =============================================================================
// Dynamic completions
// =============================================================================

// completionDoc reads the project file without logging; completion output
// must stay clean.
func (c *CLI) completionDoc() *document.Document {
	doc, err := document.Import(c.project, log.New(io.Discard))
	if err != nil {
		return nil
	}
	return doc
}

// completeLayerArg completes a layer id in the first position.
func (c *CLI) completeLayerArg(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	doc := c.completionDoc()
	if doc == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return doc.GraphOrder, cobra.ShellCompDirectiveNoFileComp
}

// completeLayerNode completes <layer> then <node> within it.
func (c *CLI) completeLayerNode(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return c.completeLayerArg(cmd, args, toComplete)
	}
	if len(args) != 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	doc := c.completionDoc()
	if doc == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var ids []string
	for _, n := range doc.GraphNodes[args[0]].Nodes {
		ids = append(ids, n.ID)
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

// completeNodeKind completes <layer> then a node kind.
func (c *CLI) completeNodeKind(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return c.completeLayerArg(cmd, args, toComplete)
	}
	if len(args) == 1 {
		return node.DefaultFactory().Kinds(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

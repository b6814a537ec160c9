package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stratum/pkg/document"
	"github.com/matzehuels/stratum/pkg/registry"
)

// newCommand creates the "new" command.
func (c *CLI) newCommand() *cobra.Command {
	var (
		layers int
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create an empty project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(c.project); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", c.project)
			}
			cfg, err := c.config()
			if err != nil {
				return err
			}
			reg := registry.New(registry.WithLogger(c.Logger), registry.WithConfig(cfg.Model))
			for range layers {
				if _, err := reg.NewLayer(cmd.Context(), ""); err != nil {
					return err
				}
			}
			if err := document.Export(c.project, reg.Serialize()); err != nil {
				return err
			}
			printSuccess("Created %s", StyleHighlight.Render(c.project))
			printDetail("%d layers, shape %dx%d", layers, cfg.Model.Shape[0], cfg.Model.Shape[1])
			printNextStep("Add a node", "stratum node add layer_1 Constant --set value=1")
			return nil
		},
	}
	cmd.Flags().IntVar(&layers, "layers", 1, "number of empty layers to create")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing project")
	return cmd
}

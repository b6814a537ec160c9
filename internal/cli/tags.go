package cli

import (
	"github.com/spf13/cobra"
)

// tagsCommand creates the "tags" command.
func (c *CLI) tagsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List published broadcast tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := c.openProject(cmd.Context())
			if err != nil {
				return err
			}
			printTagTable(reg)
			printBackReferences(reg.BackReferences())
			return nil
		},
	}
}

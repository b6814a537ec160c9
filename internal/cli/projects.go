package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stratum/pkg/document"
)

// projectCommand creates the "project" command group for the project store.
func (c *CLI) projectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Push and pull projects to the configured store",
	}
	cmd.AddCommand(c.projectPushCommand())
	cmd.AddCommand(c.projectPullCommand())
	cmd.AddCommand(c.projectListCommand())
	cmd.AddCommand(c.projectRemoveCommand())
	return cmd
}

// projectName defaults to the project file's stem.
func (c *CLI) projectName(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	base := filepath.Base(c.project)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (c *CLI) projectPushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "push [name]",
		Short: "Save the project file to the store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := c.openProject(ctx)
			if err != nil {
				return err
			}
			st, err := c.newStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			info, err := st.Save(ctx, c.projectName(args), reg.Serialize())
			if err != nil {
				return err
			}
			printSuccess("Pushed %s", StyleHighlight.Render(info.Name))
			printDetail("hash %s, %d bytes", shortHash(info.Hash), info.Size)
			return nil
		},
	}
}

func (c *CLI) projectPullCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "pull [name]",
		Short: "Load a stored project into the project file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := os.Stat(c.project); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", c.project)
			}
			st, err := c.newStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			name := c.projectName(args)
			doc, err := st.Load(ctx, name)
			if err != nil {
				return err
			}
			if err := document.Export(c.project, doc); err != nil {
				return fmt.Errorf("write project: %w", err)
			}
			printSuccess("Pulled %s into %s", StyleHighlight.Render(name), c.project)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing project file")
	return cmd
}

func (c *CLI) projectListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List stored projects",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.newStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			infos, err := st.List(ctx)
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				printInfo("No stored projects")
				return nil
			}
			t := newTable("NAME", "HASH", "SIZE", "UPDATED")
			for _, in := range infos {
				t.Row(in.Name, shortHash(in.Hash), fmt.Sprintf("%d", in.Size), formatRelativeTime(in.UpdatedAt))
			}
			fmt.Println(t)
			return nil
		},
	}
}

func (c *CLI) projectRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a stored project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.newStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Delete(ctx, args[0]); err != nil {
				return err
			}
			printSuccess("Deleted %s", StyleHighlight.Render(args[0]))
			return nil
		},
	}
}

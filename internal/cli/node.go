package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stratum/pkg/dag"
	"github.com/matzehuels/stratum/pkg/layer"
	"github.com/matzehuels/stratum/pkg/node"
	"github.com/matzehuels/stratum/pkg/registry"
)

// nodeCommand creates the "node" command group. Every subcommand takes the
// layer id as its first argument.
func (c *CLI) nodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "node",
		Aliases: []string{"nodes"},
		Short:   "Edit the node graph of a layer",
	}
	cmd.AddCommand(c.nodeAddCommand())
	cmd.AddCommand(c.nodeRemoveCommand())
	cmd.AddCommand(c.nodeRenameCommand())
	cmd.AddCommand(c.nodeLinkCommand())
	cmd.AddCommand(c.nodeUnlinkCommand())
	cmd.AddCommand(c.nodeSetCommand())
	cmd.AddCommand(c.nodeSubscribeCommand())
	cmd.AddCommand(c.nodeFreezeCommand())
	cmd.AddCommand(c.nodeKindsCommand())
	return cmd
}

// withLayer opens the project, runs fn on the named layer and saves.
func (c *CLI) withLayer(cmd *cobra.Command, id string, fn func(*registry.Registry, *layer.Layer) error) error {
	return c.editProject(cmd.Context(), func(reg *registry.Registry) error {
		l, ok := reg.Layer(id)
		if !ok {
			return fmt.Errorf("layer %q not found (have: %s)", id, strings.Join(reg.Order(), ", "))
		}
		return fn(reg, l)
	})
}

func (c *CLI) nodeAddCommand() *cobra.Command {
	var (
		id    string
		attrs []string
	)
	cmd := &cobra.Command{
		Use:               "add <layer> <kind>",
		Short:             "Add a node (id defaults to <kind>#<n>)",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: c.completeNodeKind,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseAttrs(attrs)
			if err != nil {
				return err
			}
			return c.withLayer(cmd, args[0], func(_ *registry.Registry, l *layer.Layer) error {
				got, err := l.AddNode(cmd.Context(), args[1], id, a)
				if err != nil {
					return err
				}
				printSuccess("Added %s %s to %s", args[1], StyleHighlight.Render(got), l.ID())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "node id")
	cmd.Flags().StringArrayVar(&attrs, "set", nil, "node parameter KEY=VALUE (repeatable)")
	return cmd
}

func (c *CLI) nodeRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "rm <layer> <node>",
		Aliases:           []string{"remove"},
		Short:             "Remove a node and its links",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: c.completeLayerNode,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLayer(cmd, args[0], func(_ *registry.Registry, l *layer.Layer) error {
				if err := l.RemoveNode(args[1]); err != nil {
					return err
				}
				printSuccess("Removed %s from %s", StyleHighlight.Render(args[1]), l.ID())
				return nil
			})
		},
	}
}

func (c *CLI) nodeRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "rename <layer> <old> <new>",
		Short:             "Rename a node",
		Args:              cobra.ExactArgs(3),
		ValidArgsFunction: c.completeLayerNode,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLayer(cmd, args[0], func(_ *registry.Registry, l *layer.Layer) error {
				if err := l.RenameNode(cmd.Context(), args[1], args[2]); err != nil {
					return err
				}
				printSuccess("Renamed %s %s %s", args[1], iconArrow, StyleHighlight.Render(args[2]))
				return nil
			})
		},
	}
}

func (c *CLI) nodeLinkCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "link <layer> <from.port> <to.port>",
		Short:             "Connect an output port to an input port",
		Args:              cobra.ExactArgs(3),
		ValidArgsFunction: c.completeLayerArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, fromPort, err := parsePortRef(args[1])
			if err != nil {
				return err
			}
			to, toPort, err := parsePortRef(args[2])
			if err != nil {
				return err
			}
			link := dag.Link{From: from, FromPort: fromPort, To: to, ToPort: toPort}
			return c.withLayer(cmd, args[0], func(_ *registry.Registry, l *layer.Layer) error {
				if err := l.AddLink(link); err != nil {
					return err
				}
				printSuccess("Linked %s %s %s", args[1], iconArrow, args[2])
				return nil
			})
		},
	}
}

func (c *CLI) nodeUnlinkCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "unlink <layer> <to.port>",
		Short:             "Remove the link feeding an input port",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: c.completeLayerArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			to, toPort, err := parsePortRef(args[1])
			if err != nil {
				return err
			}
			return c.withLayer(cmd, args[0], func(_ *registry.Registry, l *layer.Layer) error {
				if !l.RemoveLink(to, toPort) {
					return fmt.Errorf("no link into %s", args[1])
				}
				printSuccess("Unlinked %s", args[1])
				return nil
			})
		},
	}
}

func (c *CLI) nodeSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "set <layer> <node> KEY=VALUE...",
		Short:             "Change node parameters",
		Args:              cobra.MinimumNArgs(3),
		ValidArgsFunction: c.completeLayerNode,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseAttrs(args[2:])
			if err != nil {
				return err
			}
			return c.withLayer(cmd, args[0], func(_ *registry.Registry, l *layer.Layer) error {
				if err := l.SetAttrs(args[1], a); err != nil {
					return err
				}
				n, _ := l.Node(args[1])
				printSuccess("Updated %s", StyleHighlight.Render(args[1]))
				printDetail("%s", formatAttrs(n.Attrs()))
				return nil
			})
		},
	}
}

func (c *CLI) nodeSubscribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "subscribe <layer> <node> <tag>",
		Short:             "Point a Receive node at a broadcast tag",
		Args:              cobra.ExactArgs(3),
		ValidArgsFunction: c.completeLayerNode,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLayer(cmd, args[0], func(reg *registry.Registry, l *layer.Layer) error {
				if _, ok := reg.Table().Lookup(args[2]); !ok {
					printWarning("tag %s is not published (yet)", args[2])
				}
				if err := l.Subscribe(args[1], args[2]); err != nil {
					return err
				}
				printSuccess("%s.%s subscribed to %s", l.ID(), args[1], StyleHighlight.Render(args[2]))
				return nil
			})
		},
	}
}

func (c *CLI) nodeFreezeCommand() *cobra.Command {
	var thaw bool
	cmd := &cobra.Command{
		Use:               "freeze <layer> <node>",
		Short:             "Freeze a node so it keeps its last output",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: c.completeLayerNode,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLayer(cmd, args[0], func(_ *registry.Registry, l *layer.Layer) error {
				if err := l.SetFrozen(args[1], !thaw); err != nil {
					return err
				}
				state := "Frozen"
				if thaw {
					state = "Thawed"
				}
				printSuccess("%s %s", state, StyleHighlight.Render(args[1]))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&thaw, "thaw", false, "unfreeze instead")
	return cmd
}

func (c *CLI) nodeKindsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List available node kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := node.DefaultFactory()
			cfg, err := c.config()
			if err != nil {
				return err
			}
			for _, kind := range f.Kinds() {
				n, err := f.New(kind, kind, cfg.Model)
				if err != nil {
					return err
				}
				printKeyValue(kind, fmt.Sprintf("in %s  out %s",
					portList(n.Inputs()), portList(n.Outputs())))
			}
			return nil
		},
	}
}

func portList(ports []string) string {
	if len(ports) == 0 {
		return "-"
	}
	return strings.Join(ports, ",")
}

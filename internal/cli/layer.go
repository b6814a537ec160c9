package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stratum/pkg/frame"
	"github.com/matzehuels/stratum/pkg/layer"
	"github.com/matzehuels/stratum/pkg/registry"
)

// layerCommand creates the "layer" command group.
func (c *CLI) layerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "layer",
		Aliases: []string{"layers"},
		Short:   "Manage the layer stack",
	}
	cmd.AddCommand(c.layerAddCommand())
	cmd.AddCommand(c.layerRemoveCommand())
	cmd.AddCommand(c.layerMoveCommand())
	cmd.AddCommand(c.layerRenameCommand())
	cmd.AddCommand(c.layerFrameCommand())
	cmd.AddCommand(c.layerListCommand())
	return cmd
}

func (c *CLI) layerAddCommand() *cobra.Command {
	var (
		index        int
		origin, size string
		rotation     float64
	)
	cmd := &cobra.Command{
		Use:   "add [id]",
		Short: "Add a layer (id defaults to layer_<n>)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			fr, err := frameFromFlags(frame.Unit, origin, size, rotation)
			if err != nil {
				return err
			}
			return c.editProject(cmd.Context(), func(reg *registry.Registry) error {
				l := layer.New(id, reg.Config(), layer.WithFactory(reg.Factory()), layer.WithLogger(c.Logger), layer.WithFrame(fr))
				at := reg.Len()
				if cmd.Flags().Changed("index") {
					at = index
				}
				got, err := reg.InsertLayer(cmd.Context(), l, id, at)
				if err != nil {
					return err
				}
				printSuccess("Added layer %s", StyleHighlight.Render(got))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "position in the order (default: top)")
	cmd.Flags().StringVar(&origin, "origin", "", "frame origin X,Y")
	cmd.Flags().StringVar(&size, "size", "", "frame size W,H")
	cmd.Flags().Float64Var(&rotation, "rotation", 0, "frame rotation in degrees")
	return cmd
}

func (c *CLI) layerRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "rm <id>",
		Aliases:           []string{"remove"},
		Short:             "Remove a layer and withdraw its broadcasts",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeLayerArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.editProject(cmd.Context(), func(reg *registry.Registry) error {
				if err := reg.RemoveLayer(args[0]); err != nil {
					return err
				}
				printSuccess("Removed layer %s", StyleHighlight.Render(args[0]))
				return nil
			})
		},
	}
}

func (c *CLI) layerMoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "mv <id> <index>",
		Short:             "Move a layer to a position in the order",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: c.completeLayerArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("index %q: %w", args[1], err)
			}
			return c.editProject(cmd.Context(), func(reg *registry.Registry) error {
				if err := reg.MoveLayer(args[0], index); err != nil {
					return err
				}
				printOrder(reg.Order())
				return nil
			})
		},
	}
}

func (c *CLI) layerRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "rename <old> <new>",
		Short:             "Rename a layer, moving its broadcast tags",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: c.completeLayerArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.editProject(cmd.Context(), func(reg *registry.Registry) error {
				if err := reg.RenameLayer(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				printSuccess("Renamed %s %s %s", args[0], iconArrow, StyleHighlight.Render(args[1]))
				return nil
			})
		},
	}
}

func (c *CLI) layerFrameCommand() *cobra.Command {
	var (
		origin, size string
		rotation     float64
	)
	cmd := &cobra.Command{
		Use:               "frame <id>",
		Short:             "Show or change a layer's frame",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeLayerArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.editProject(cmd.Context(), func(reg *registry.Registry) error {
				l, ok := reg.Layer(args[0])
				if !ok {
					return fmt.Errorf("layer %q not found", args[0])
				}
				rot := l.Frame().Rotation
				if cmd.Flags().Changed("rotation") {
					rot = rotation
				}
				fr, err := frameFromFlags(l.Frame(), origin, size, rot)
				if err != nil {
					return err
				}
				if fr != l.Frame() {
					if err := l.SetFrame(fr); err != nil {
						return err
					}
				}
				printKeyValue("layer", l.ID())
				printKeyValue("frame", l.Frame().String())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "frame origin X,Y")
	cmd.Flags().StringVar(&size, "size", "", "frame size W,H")
	cmd.Flags().Float64Var(&rotation, "rotation", 0, "frame rotation in degrees")
	return cmd
}

func (c *CLI) layerListCommand() *cobra.Command {
	var detailed bool
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List layers bottom to top",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := c.openProject(cmd.Context())
			if err != nil {
				return err
			}
			printLayerTable(reg.Layers(), detailed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "list nodes under each layer")
	return cmd
}

// frameFromFlags applies the non-empty flag values to base.
func frameFromFlags(base frame.Frame, origin, size string, rotation float64) (frame.Frame, error) {
	fr := base
	if origin != "" {
		p, err := parsePoint(origin)
		if err != nil {
			return fr, err
		}
		fr.Origin = p
	}
	if size != "" {
		p, err := parsePoint(size)
		if err != nil {
			return fr, err
		}
		fr.Size = p
	}
	fr.Rotation = rotation
	return fr, fr.Validate()
}

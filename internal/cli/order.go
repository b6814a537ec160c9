package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stratum/pkg/registry"
)

// orderCommand creates the "order" command. With ids it sets the order
// verbatim after validating it; without ids it opens the interactive editor.
func (c *CLI) orderCommand() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "order [layer...]",
		Short: "Show or change the layer order (bottom first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := c.openProject(cmd.Context())
			if err != nil {
				return err
			}
			if check {
				printOrder(reg.Order())
				refs := reg.BackReferences()
				printBackReferences(refs)
				if len(refs) > 0 {
					return fmt.Errorf("%d subscriptions read from layers above them", len(refs))
				}
				return nil
			}

			order := args
			if len(order) == 0 {
				if order, err = c.editOrder(reg); err != nil || order == nil {
					return err
				}
			}
			if err := reg.ValidateOrder(order); err != nil {
				return err
			}
			reg.SetOrder(order)
			if err := c.saveProject(cmd.Context(), reg); err != nil {
				return err
			}
			printOrder(reg.Order())
			printBackReferences(reg.BackReferences())
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "report subscriptions gated off by the order and exit non-zero if any")
	return cmd
}

// editOrder runs the interactive editor. It returns nil when the user
// cancels or nothing changed.
func (c *CLI) editOrder(reg *registry.Registry) ([]string, error) {
	if fi, err := os.Stdin.Stat(); err != nil || fi.Mode()&os.ModeCharDevice == 0 {
		printOrder(reg.Order())
		return nil, nil
	}
	m := NewOrderModel(reg.Order())
	m.Warnings = map[string]string{}
	for _, r := range reg.BackReferences() {
		m.Warnings[r.Layer] = fmt.Sprintf("reads %s from above", r.Tag)
	}

	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, fmt.Errorf("order editor: %w", err)
	}
	result := final.(OrderModel)
	if !result.Done || !result.Changed {
		printInfo("Order unchanged")
		return nil, nil
	}
	return result.Order, nil
}

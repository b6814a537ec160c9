package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stratum/pkg/render/topology"
)

// graphCommand creates the "graph" command.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		output   string
		format   string
		detailed bool
		noCache  bool
	)
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Draw the layer and node topology as DOT or SVG",
		Long: `Graph draws one cluster per layer with its nodes and links. Broadcast
edges are dashed: green when the publisher sits below the subscriber, red
when the order gates the subscription off.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = formatFromPath(output)
			}
			reg, err := c.openProject(cmd.Context())
			if err != nil {
				return err
			}
			runner, err := c.newRunner(cmd.Context(), noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			data, cached, err := runner.Topology(cmd.Context(), reg, format, topology.Options{Detailed: detailed})
			if err != nil {
				return err
			}
			if output == "" {
				_, err := os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			c.Logger.Debug("graph rendered", "format", format, "cached", cached)
			printSuccess("Wrote %s", StyleHighlight.Render(output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "dot or svg (default: from the output extension, else dot)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include node parameters")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	return cmd
}

// formatFromPath picks svg for .svg files and dot otherwise.
func formatFromPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return topology.FormatSVG
	}
	return topology.FormatDOT
}

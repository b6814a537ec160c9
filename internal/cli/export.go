package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stratum/pkg/compositor"
	"github.com/matzehuels/stratum/pkg/pipeline"
	"github.com/matzehuels/stratum/pkg/registry"
)

// exportOpts holds the command-line flags for the export command.
type exportOpts struct {
	output  string   // elevation PNG path; the preview goes next to it
	shape   string   // raster shape WxH
	tiling  string   // export tiling WxH, persisted
	overlap float64  // tile overlap, persisted
	sources []string // LAYER/NODE[.PORT] refs, persisted
	zScale  float64  // preview vertical exaggeration
	refresh bool     // bypass the cache lookup
	noCache bool     // disable caching entirely
}

// exportCommand creates the "export" command.
func (c *CLI) exportCommand() *cobra.Command {
	var opts exportOpts
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Flatten the export sources to a 16-bit PNG and a preview",
		Long: `Export resolves every export source, flattens them into one raster over
the union of their layers' frames and writes a 16-bit elevation PNG plus an
8-bit hillshade preview named <output>_hillshade.png.

--source, --tiling and --overlap change the export stored in the project.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd.Context(), &opts, cmd.Flags().Changed("overlap"))
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output path (default: the project's export path)")
	cmd.Flags().StringVar(&opts.shape, "shape", "", "raster shape WxH (default: the project's)")
	cmd.Flags().StringVar(&opts.tiling, "tiling", "", "export tiling WxH")
	cmd.Flags().Float64Var(&opts.overlap, "overlap", 0, "tile overlap")
	cmd.Flags().StringArrayVarP(&opts.sources, "source", "s", nil, "export source LAYER/NODE[.PORT] (repeatable, replaces the stored list)")
	cmd.Flags().Float64Var(&opts.zScale, "z-scale", compositor.DefaultZScale, "preview vertical exaggeration")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute even if cached")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	return cmd
}

func (c *CLI) runExport(ctx context.Context, opts *exportOpts, overlapSet bool) error {
	reg, err := c.openProject(ctx)
	if err != nil {
		return err
	}
	changed, err := applyExportFlags(reg, opts, overlapSet)
	if err != nil {
		return err
	}
	if changed {
		if err := c.saveProject(ctx, reg); err != nil {
			return err
		}
	}

	popts := pipeline.Options{
		Document: reg.Serialize(),
		Output:   opts.output,
		ZScale:   opts.zScale,
		Refresh:  opts.refresh,
		Logger:   c.Logger,
	}
	if opts.shape != "" {
		if popts.Shape, err = parseShape(opts.shape); err != nil {
			return err
		}
	}
	spec := popts.Spec(reg.ExportSpec())
	if spec.Path == "" {
		return fmt.Errorf("no output path: pass --output or store one in the project")
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Flattening %d sources", len(spec.Sources)))
	spinner.Start()
	res, err := runner.Execute(ctx, popts)
	if err != nil {
		spinner.StopWithError("Export failed")
		return err
	}
	spinner.StopWithSuccess("Exported %s", StyleHighlight.Render(spec.Path))
	printExportStats(res.Stats.Layers, res.Stats.Nodes, len(res.Spec.Sources), res.Spec.Shape, res.CacheInfo.ExportHit)
	for _, p := range res.Paths {
		printFile(p)
	}
	prog.done("export finished", "cached", res.CacheInfo.ExportHit)
	return nil
}

// applyExportFlags writes the persisted export flags into the registry's
// export spec and reports whether anything changed.
func applyExportFlags(reg *registry.Registry, opts *exportOpts, overlapSet bool) (bool, error) {
	spec := reg.ExportSpec()
	changed := false
	if len(opts.sources) > 0 {
		spec.Sources = spec.Sources[:0:0]
		for _, s := range opts.sources {
			ref, err := parseSourceRef(s)
			if err != nil {
				return false, err
			}
			spec.Sources = append(spec.Sources, ref)
		}
		changed = true
	}
	if opts.tiling != "" {
		t, err := parseTiling(opts.tiling)
		if err != nil {
			return false, err
		}
		spec.Tiling = t
		changed = true
	}
	if overlapSet {
		spec.Overlap = opts.overlap
		changed = true
	}
	if changed && spec.Shape == [2]int{} {
		spec.Shape = reg.Config().Shape
	}
	if changed && spec.Tiling == [2]int{} {
		spec.Tiling = [2]int{1, 1}
	}
	if changed {
		reg.SetExportSpec(spec)
	}
	return changed, nil
}

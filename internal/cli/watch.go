package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stratum/pkg/compositor"
)

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 250 * time.Millisecond

// watchCommand creates the "watch" command.
func (c *CLI) watchCommand() *cobra.Command {
	var opts exportOpts
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-export whenever the project file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), &opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output path (default: the project's export path)")
	cmd.Flags().StringVar(&opts.shape, "shape", "", "raster shape WxH")
	cmd.Flags().Float64Var(&opts.zScale, "z-scale", compositor.DefaultZScale, "preview vertical exaggeration")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, opts *exportOpts) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: editors often replace the file instead of writing
	// it in place.
	abs, err := filepath.Abs(c.project)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	printInfo("Watching %s (ctrl+c to stop)", StyleHighlight.Render(c.project))

	export := func() {
		if err := c.runExport(ctx, opts, false); err != nil {
			printError("%v", err)
		}
	}
	export()

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.Logger.Warn("watch error", "err", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			c.Logger.Debug("project changed", "op", ev.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			export()
		}
	}
}

package field

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stratum/pkg/frame"
)

// DefaultBand is the width of the feathered blend band, as a fraction of each
// source's extent measured inward from its edge.
const DefaultBand = 0.02

// FlattenOption configures [Flatten].
type FlattenOption func(*flattenConfig)

type flattenConfig struct {
	band    float64
	fill    float32
	workers int
	tiling  [2]int
	overlap float64
}

// WithBand sets the blend band width (fraction of source extent).
// A band of 0 disables feathering: overlapping sources are averaged evenly.
func WithBand(b float64) FlattenOption {
	return func(c *flattenConfig) { c.band = b }
}

// WithFill sets the value of cells covered by no source (default 0).
func WithFill(v float32) FlattenOption {
	return func(c *flattenConfig) { c.fill = v }
}

// WithWorkers bounds the number of row bands evaluated concurrently.
func WithWorkers(n int) FlattenOption {
	return func(c *flattenConfig) { c.workers = n }
}

// WithTiling records tiling metadata on the output field.
func WithTiling(tiling [2]int, overlap float64) FlattenOption {
	return func(c *flattenConfig) {
		c.tiling = tiling
		c.overlap = overlap
	}
}

// Flatten composites sources into an nx×ny grid covering export.
//
// Every output cell is mapped to world space through export and then into
// each source's local coordinates through frames[k]. Sources that cover the
// cell contribute their bilinear sample weighted by a smoothstep of the
// distance to their own edge, so the blend is confined to a band of width
// [DefaultBand] along each source boundary. Interior cells of a single
// source reproduce that source exactly.
func Flatten(ctx context.Context, sources []*Field, frames []frame.Frame, export frame.Frame, nx, ny int, opts ...FlattenOption) (*Field, error) {
	if len(sources) != len(frames) {
		return nil, fmt.Errorf("flatten: %d sources but %d frames", len(sources), len(frames))
	}
	for k, s := range sources {
		if s == nil || len(s.Data) == 0 {
			return nil, fmt.Errorf("flatten: source %d has no data", k)
		}
	}

	cfg := flattenConfig{band: DefaultBand, workers: runtime.GOMAXPROCS(0), tiling: [2]int{1, 1}}
	for _, opt := range opts {
		opt(&cfg)
	}

	out := New(nx, ny)
	out.Tiling = cfg.tiling
	out.Overlap = cfg.overlap

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.workers, 1))

	rowsPerBand := max(ny/(4*max(cfg.workers, 1)), 1)
	for start := 0; start < ny; start += rowsPerBand {
		start, end := start, min(start+rowsPerBand, ny)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			flattenRows(out, sources, frames, export, start, end, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenRows(out *Field, sources []*Field, frames []frame.Frame, export frame.Frame, start, end int, cfg flattenConfig) {
	for j := start; j < end; j++ {
		v := (float64(j) + 0.5) / float64(out.NY)
		for i := 0; i < out.NX; i++ {
			u := (float64(i) + 0.5) / float64(out.NX)
			x, y := export.ToWorld(u, v)

			var acc, wsum float64
			for k, src := range sources {
				su, sv := frames[k].ToLocal(x, y)
				if su < 0 || su > 1 || sv < 0 || sv > 1 {
					continue
				}
				w := edgeWeight(su, sv, cfg.band)
				acc += w * src.Sample(su, sv)
				wsum += w
			}
			if wsum > 0 {
				out.Set(i, j, float32(acc/wsum))
			} else {
				out.Set(i, j, cfg.fill)
			}
		}
	}
}

// edgeWeight is 1 in the interior and falls to a small positive floor at the
// edge of the unit square.
func edgeWeight(u, v, band float64) float64 {
	const floor = 1e-6
	if band <= 0 {
		return 1
	}
	d := min(u, 1-u, v, 1-v)
	t := clamp(d/band, 0, 1)
	return floor + t*t*(3-2*t)
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stratum/pkg/cache"
	"github.com/matzehuels/stratum/pkg/compositor"
	"github.com/matzehuels/stratum/pkg/document"
	"github.com/matzehuels/stratum/pkg/field"
	"github.com/matzehuels/stratum/pkg/observability"
	"github.com/matzehuels/stratum/pkg/registry"
	"github.com/matzehuels/stratum/pkg/render/topology"
)

// Runner executes pipeline stages with caching. It holds no per-run state,
// so one Runner may serve concurrent runs with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	TTL    time.Duration
}

// NewRunner creates a runner. A nil keyer means DefaultKeyer and a nil cache
// disables caching.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger, TTL: cache.ExportTTL}
}

// Execute loads, replays and exports a project.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	res := &Result{}

	start := time.Now()
	doc, err := r.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	res.Stats.LoadTime = time.Since(start)

	start = time.Now()
	reg, err := r.Replay(ctx, doc, opts)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	res.Registry = reg
	res.Stats.ReplayTime = time.Since(start)
	for _, l := range reg.Layers() {
		res.Stats.Layers++
		res.Stats.Nodes += len(l.Nodes())
	}
	r.Logger.Info("replayed project", "layers", res.Stats.Layers, "nodes", res.Stats.Nodes, "duration", res.Stats.ReplayTime)

	if res.DocHash, err = DocumentHash(reg.Serialize()); err != nil {
		return nil, fmt.Errorf("hash: %w", err)
	}

	start = time.Now()
	res.Spec = opts.Spec(reg.ExportSpec())
	res.Artifacts, res.CacheInfo.ExportHit, err = r.ExportWithCacheInfo(ctx, reg, res.DocHash, res.Spec, opts)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	res.Stats.ExportTime = time.Since(start)

	if res.Spec.Path != "" {
		res.Paths, err = WriteArtifacts(res.Spec.Path, res.Artifacts)
		if err != nil {
			return nil, err
		}
	}
	r.Logger.Info("exported", "cached", res.CacheInfo.ExportHit, "paths", res.Paths, "duration", res.Stats.ExportTime)
	return res, nil
}

// Load returns opts.Document or reads opts.Path.
func (r *Runner) Load(opts Options) (*document.Document, error) {
	if opts.Document != nil {
		return opts.Document, nil
	}
	return document.Import(opts.Path, opts.Logger)
}

// Replay builds a registry from doc. Per-item load problems are logged as
// warnings; the registry is returned regardless.
func (r *Runner) Replay(ctx context.Context, doc *document.Document, opts Options) (*registry.Registry, error) {
	reg := registry.New(
		registry.WithLogger(opts.Logger),
		registry.WithFactory(opts.Factory),
		registry.WithCompositorOptions(compositor.WithZScale(opts.ZScale)),
	)
	if err := reg.Deserialize(ctx, doc); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.Logger.Warn("project loaded with problems", "err", err)
	}
	return reg, nil
}

// ExportWithCacheInfo flattens spec and encodes the result, consulting the
// cache first. It does not write files.
func (r *Runner) ExportWithCacheInfo(ctx context.Context, reg *registry.Registry, docHash string, spec compositor.Spec, opts Options) (map[string][]byte, bool, error) {
	key := r.Keyer.ExportKey(docHash, opts.ExportKeyOpts(spec))

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			var arts map[string][]byte
			if err := json.Unmarshal(data, &arts); err == nil {
				observability.Cache().OnCacheHit(ctx, "export")
				return arts, true, nil
			}
		} else if err != nil {
			r.Logger.Warn("cache read failed", "err", err)
		}
		observability.Cache().OnCacheMiss(ctx, "export")
	}

	start := time.Now()
	observability.Export().OnExportStart(ctx, len(spec.Sources), spec.Shape)
	elev, fr, err := reg.ComputeFlatten(ctx, spec)
	observability.Export().OnExportComplete(ctx, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}
	arts, err := compositor.Encode(&compositor.Result{
		Elevation: elev,
		Preview:   field.Hillshade(elev, opts.ZScale),
		Frame:     fr,
	})
	if err != nil {
		return nil, false, err
	}

	if data, err := json.Marshal(arts); err == nil {
		if err := r.Cache.Set(ctx, key, data, r.TTL); err != nil {
			r.Logger.Warn("cache write failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "export", len(data))
		}
	}
	return arts, false, nil
}

// Topology renders the project diagram, cached by document hash.
func (r *Runner) Topology(ctx context.Context, reg *registry.Registry, format string, opts topology.Options) ([]byte, bool, error) {
	hash, err := DocumentHash(reg.Serialize())
	if err != nil {
		return nil, false, err
	}
	variant := format
	if opts.Detailed {
		variant += "+detailed"
	}
	key := r.Keyer.TopologyKey(hash, variant)
	if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
		observability.Cache().OnCacheHit(ctx, "topology")
		return data, true, nil
	}
	observability.Cache().OnCacheMiss(ctx, "topology")

	data, err := topology.Render(ctx, reg, format, opts)
	if err != nil {
		return nil, false, err
	}
	if err := r.Cache.Set(ctx, key, data, cache.TopologyTTL); err == nil {
		observability.Cache().OnCacheSet(ctx, "topology", len(data))
	}
	return data, false, nil
}

// WriteArtifacts writes the elevation to path and the preview next to it.
func WriteArtifacts(path string, arts map[string][]byte) ([]string, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	targets := []struct{ name, path string }{
		{compositor.ArtifactElevation, path},
		{compositor.ArtifactPreview, compositor.PreviewPath(path)},
	}
	var written []string
	for _, t := range targets {
		data, ok := arts[t.name]
		if !ok {
			continue
		}
		if err := os.WriteFile(t.path, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", t.path, err)
		}
		written = append(written, t.path)
	}
	return written, nil
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

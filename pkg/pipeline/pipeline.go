// Package pipeline runs the load → replay → export sequence shared by the
// CLI and the HTTP server.
//
// # Stages
//
//  1. Load: read a project document from a file or take one in memory
//  2. Replay: rebuild a registry from the document and recompute every layer
//  3. Export: flatten the export sources and encode the elevation and preview
//
// Exports are cached by the hash of the document's layers plus the export
// options, so re-exporting an unchanged project skips the flatten.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	res, err := runner.Execute(ctx, pipeline.Options{Path: "alps.stratum.json"})
//	if err != nil {
//	    return err
//	}
//	png := res.Artifacts[compositor.ArtifactElevation]
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stratum/pkg/cache"
	"github.com/matzehuels/stratum/pkg/compositor"
	"github.com/matzehuels/stratum/pkg/document"
	"github.com/matzehuels/stratum/pkg/node"
	"github.com/matzehuels/stratum/pkg/registry"
)

// =============================================================================
// Options
// =============================================================================

// Options configures a pipeline run.
type Options struct {
	// Path is the project file to load when Document is nil.
	Path string `json:"path,omitempty"`

	// Output overrides the export path stored in the document. When both are
	// empty the artifacts are only returned, not written.
	Output string `json:"output,omitempty"`

	// Shape overrides the export raster shape.
	Shape [2]int `json:"shape,omitempty"`

	// ZScale is the preview's vertical exaggeration.
	ZScale float64 `json:"z_scale,omitempty"`

	// Refresh skips the cache lookup; the fresh result is still stored.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Document *document.Document `json:"-"`
	Logger   *log.Logger        `json:"-"`
	Factory  *node.Factory      `json:"-"`
}

// ValidateAndSetDefaults checks required fields and applies defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Document == nil && o.Path == "" {
		return fmt.Errorf("path or document is required")
	}
	if o.ZScale == 0 {
		o.ZScale = compositor.DefaultZScale
	}
	if o.ZScale < 0 {
		return fmt.Errorf("z_scale must be positive, got %g", o.ZScale)
	}
	if o.Shape != [2]int{} && (o.Shape[0] < 2 || o.Shape[1] < 2) {
		return fmt.Errorf("shape must be at least 2x2, got %dx%d", o.Shape[0], o.Shape[1])
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if o.Factory == nil {
		o.Factory = node.DefaultFactory()
	}
	return nil
}

// Spec applies the overrides to the document's export parameters.
func (o *Options) Spec(base compositor.Spec) compositor.Spec {
	if o.Output != "" {
		base.Path = o.Output
	}
	if o.Shape != [2]int{} {
		base.Shape = o.Shape
	}
	return base
}

// ExportKeyOpts returns the cache key options for spec.
func (o *Options) ExportKeyOpts(spec compositor.Spec) cache.ExportKeyOpts {
	sources := make([]string, len(spec.Sources))
	for i, s := range spec.Sources {
		sources[i] = s.Layer + "/" + s.Node + "." + s.Port
	}
	return cache.ExportKeyOpts{
		Shape:   spec.Shape,
		Tiling:  spec.Tiling,
		Overlap: spec.Overlap,
		Sources: sources,
		ZScale:  o.ZScale,
	}
}

// =============================================================================
// Results
// =============================================================================

// Result contains the outputs of a pipeline run.
type Result struct {
	// Registry is the replayed project.
	Registry *registry.Registry

	// DocHash is the content hash of the project's layers.
	DocHash string

	// Spec is the export that was run.
	Spec compositor.Spec

	// Artifacts holds the encoded PNGs keyed by artifact name.
	Artifacts map[string][]byte

	// Paths lists the files written, if any.
	Paths []string

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Layers     int
	Nodes      int
	LoadTime   time.Duration
	ReplayTime time.Duration
	ExportTime time.Duration
}

// CacheInfo tracks cache hits.
type CacheInfo struct {
	ExportHit bool
}

// DocumentHash hashes everything in doc except the export parameters, which
// are keyed separately.
func DocumentHash(doc *document.Document) (string, error) {
	c := *doc
	c.ExportParam = document.ExportParam{}
	return document.Hash(&c)
}

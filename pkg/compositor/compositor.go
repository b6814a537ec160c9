package compositor

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/field"
	"github.com/matzehuels/stratum/pkg/frame"
	"github.com/matzehuels/stratum/pkg/layer"
	"github.com/matzehuels/stratum/pkg/observability"
)

// PreviewSuffix is appended to the export path stem to name the preview.
const PreviewSuffix = "_hillshade.png"

// DefaultZScale is the vertical exaggeration used for the preview.
const DefaultZScale = 4.0

// SourceRef names one export input.
type SourceRef struct {
	Layer string `json:"layer_id"`
	Node  string `json:"node_id"`
	Port  string `json:"port_id"`
}

// Spec describes an export.
type Spec struct {
	Shape   [2]int      `json:"shape"`
	Tiling  [2]int      `json:"tiling"`
	Overlap float64     `json:"overlap"`
	Path    string      `json:"path"`
	Sources []SourceRef `json:"sources"`
}

// LayerIDs returns the distinct layer ids of the sources in first-seen order.
func (s Spec) LayerIDs() []string {
	seen := make(map[string]bool, len(s.Sources))
	var out []string
	for _, src := range s.Sources {
		if !seen[src.Layer] {
			seen[src.Layer] = true
			out = append(out, src.Layer)
		}
	}
	return out
}

// Layers looks layers up by id. The registry implements it.
type Layers interface {
	Layer(id string) (*layer.Layer, bool)
}

// Result is a completed export.
type Result struct {
	Elevation     *field.Field
	Preview       *field.Field
	Frame         frame.Frame
	ElevationPath string
	PreviewPath   string
}

// Option configures a [Compositor].
type Option func(*Compositor)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(c *Compositor) { c.logger = l } }

// WithZScale sets the preview's vertical exaggeration.
func WithZScale(z float64) Option { return func(c *Compositor) { c.zScale = z } }

// WithFlattenOptions passes extra options to [field.Flatten].
func WithFlattenOptions(opts ...field.FlattenOption) Option {
	return func(c *Compositor) { c.flatten = append(c.flatten, opts...) }
}

// Compositor flattens layer outputs.
type Compositor struct {
	layers  Layers
	logger  *log.Logger
	zScale  float64
	flatten []field.FlattenOption
}

// New creates a compositor over layers.
func New(layers Layers, opts ...Option) *Compositor {
	c := &Compositor{layers: layers, zScale: DefaultZScale}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	return c
}

// BBoxUnion returns the union of the bounding boxes of the named layers.
// Unknown ids are NOT_FOUND errors.
func (c *Compositor) BBoxUnion(ids []string) (frame.BBox, error) {
	box := frame.Empty
	for _, id := range ids {
		l, ok := c.layers.Layer(id)
		if !ok {
			return frame.Empty, errs.New(errs.ErrCodeNotFound, "layer %q", id)
		}
		box = box.Union(l.Frame().BBox())
	}
	return box, nil
}

// ExportFrame is the unrotated frame spanning bbox.
func ExportFrame(bbox frame.BBox) frame.Frame {
	return frame.FromBBox(bbox)
}

// Resolve looks up the data of every source. The returned slices are
// parallel to spec.Sources. Any source whose layer, node or output is missing
// fails the whole call with UNRESOLVED_EXPORT_SOURCE, as does a source node
// that is dirty and so not yet finalized.
func (c *Compositor) Resolve(spec Spec) ([]*field.Field, []frame.Frame, error) {
	data := make([]*field.Field, 0, len(spec.Sources))
	frames := make([]frame.Frame, 0, len(spec.Sources))
	for _, src := range spec.Sources {
		l, ok := c.layers.Layer(src.Layer)
		if !ok {
			return nil, nil, errs.New(errs.ErrCodeUnresolvedSource, "layer %q does not exist", src.Layer)
		}
		out, err := l.Output(src.Node, src.Port)
		if err != nil {
			return nil, nil, errs.Wrap(errs.ErrCodeUnresolvedSource, err, "%s/%s.%s", src.Layer, src.Node, src.Port)
		}
		if l.NodePending(src.Node) {
			return nil, nil, errs.New(errs.ErrCodeUnresolvedSource, "%s/%s.%s is waiting for recompute", src.Layer, src.Node, src.Port)
		}
		if out == nil {
			return nil, nil, errs.New(errs.ErrCodeUnresolvedSource, "%s/%s.%s has no data", src.Layer, src.Node, src.Port)
		}
		data = append(data, out)
		frames = append(frames, l.Frame())
	}
	return data, frames, nil
}

// Flatten resolves the sources and composites them into a raster of
// spec.Shape over the union of the participating layers' boxes.
func (c *Compositor) Flatten(ctx context.Context, spec Spec) (*field.Field, frame.Frame, error) {
	if len(spec.Sources) == 0 {
		return nil, frame.Frame{}, errs.New(errs.ErrCodeInvalidInput, "export has no sources")
	}
	if err := errs.ValidateShape(spec.Shape[0], spec.Shape[1]); err != nil {
		return nil, frame.Frame{}, err
	}
	data, frames, err := c.Resolve(spec)
	if err != nil {
		return nil, frame.Frame{}, err
	}
	box, err := c.BBoxUnion(spec.LayerIDs())
	if err != nil {
		return nil, frame.Frame{}, err
	}
	export := ExportFrame(box)

	opts := append([]field.FlattenOption{field.WithTiling(spec.Tiling, spec.Overlap)}, c.flatten...)
	out, err := field.Flatten(ctx, data, frames, export, spec.Shape[0], spec.Shape[1], opts...)
	if err != nil {
		return nil, frame.Frame{}, err
	}
	c.logger.Debug("flattened", "sources", len(data), "shape", spec.Shape, "frame", export)
	return out, export, nil
}

// Export flattens spec and writes the elevation and preview PNGs.
func (c *Compositor) Export(ctx context.Context, spec Spec) (res *Result, err error) {
	start := time.Now()
	observability.Export().OnExportStart(ctx, len(spec.Sources), spec.Shape)
	defer func() {
		observability.Export().OnExportComplete(ctx, time.Since(start), err)
	}()

	if err := errs.ValidatePath(spec.Path); err != nil {
		return nil, err
	}
	elev, fr, err := c.Flatten(ctx, spec)
	if err != nil {
		return nil, err
	}
	res = &Result{
		Elevation:     elev,
		Preview:       field.Hillshade(elev, c.zScale),
		Frame:         fr,
		ElevationPath: spec.Path,
		PreviewPath:   PreviewPath(spec.Path),
	}
	if err := writeFile(res.ElevationPath, res.Elevation, field.WritePNG16); err != nil {
		return nil, err
	}
	if err := writeFile(res.PreviewPath, res.Preview, field.WritePNG8); err != nil {
		return nil, err
	}
	c.logger.Info("exported", "path", res.ElevationPath, "preview", res.PreviewPath, "duration", time.Since(start))
	return res, nil
}

// PreviewPath derives the preview file name from the elevation path.
func PreviewPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + PreviewSuffix
}

func writeFile(path string, f *field.Field, encode func(io.Writer, *field.Field) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrap(errs.ErrCodeInvalidPath, err, "create %s", dir)
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.ErrCodeInvalidPath, err, "create %s", path)
	}
	if err := encode(out, f); err != nil {
		out.Close()
		return errs.Wrap(errs.ErrCodeInternal, err, "write %s", path)
	}
	return out.Close()
}

// Artifact names used by [Encode].
const (
	ArtifactElevation = "elevation.png"
	ArtifactPreview   = "preview.png"
)

// Encode renders a result's rasters to PNG bytes keyed by artifact name.
func Encode(res *Result) (map[string][]byte, error) {
	out := make(map[string][]byte, 2)
	var buf bytes.Buffer
	if err := field.WritePNG16(&buf, res.Elevation); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "encode elevation")
	}
	out[ArtifactElevation] = bytes.Clone(buf.Bytes())
	buf.Reset()
	if err := field.WritePNG8(&buf, res.Preview); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "encode preview")
	}
	out[ArtifactPreview] = bytes.Clone(buf.Bytes())
	return out, nil
}

package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stratum/pkg/broadcast"
	"github.com/matzehuels/stratum/pkg/compositor"
	errs "github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/event"
	"github.com/matzehuels/stratum/pkg/field"
	"github.com/matzehuels/stratum/pkg/frame"
	"github.com/matzehuels/stratum/pkg/layer"
	"github.com/matzehuels/stratum/pkg/node"
)

// Option configures a [Registry].
type Option func(*Registry)

// WithConfig sets the model configuration given to layers created by
// [Registry.NewLayer].
func WithConfig(cfg node.Config) Option { return func(r *Registry) { r.cfg = cfg } }

// WithLogger sets the logger shared with created layers.
func WithLogger(l *log.Logger) Option { return func(r *Registry) { r.logger = l } }

// WithFactory sets the node factory shared with created layers.
func WithFactory(f *node.Factory) Option { return func(r *Registry) { r.factory = f } }

// WithBus sets the event bus. The default is a fresh bus.
func WithBus(b *event.Bus) Option { return func(r *Registry) { r.bus = b } }

// WithCompositorOptions passes options to the registry's compositor.
func WithCompositorOptions(opts ...compositor.Option) Option {
	return func(r *Registry) { r.compOpts = append(r.compOpts, opts...) }
}

// Registry owns layers, their order and the broadcast table.
type Registry struct {
	layers  map[string]*layer.Layer
	order   []string
	idCount int

	cfg     node.Config
	factory *node.Factory
	logger  *log.Logger
	bus     *event.Bus
	table   *broadcast.Table

	export   compositor.Spec
	comp     *compositor.Compositor
	compOpts []compositor.Option
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		layers: make(map[string]*layer.Layer),
		cfg:    node.DefaultConfig(),
		table:  broadcast.NewTable(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	if r.factory == nil {
		r.factory = node.DefaultFactory()
	}
	if r.bus == nil {
		r.bus = event.NewBus()
	}
	r.export = compositor.Spec{Shape: r.cfg.Shape, Tiling: r.cfg.Tiling, Overlap: r.cfg.Overlap}
	r.comp = compositor.New(r, append([]compositor.Option{compositor.WithLogger(r.logger)}, r.compOpts...)...)
	r.table.OnChange(r.onTableChange)
	return r
}

// =============================================================================
// Accessors
// =============================================================================

// Table returns the broadcast table.
func (r *Registry) Table() *broadcast.Table { return r.table }

// Bus returns the event bus.
func (r *Registry) Bus() *event.Bus { return r.bus }

// Config returns the model configuration for new layers.
func (r *Registry) Config() node.Config { return r.cfg }

// Factory returns the node factory.
func (r *Registry) Factory() *node.Factory { return r.factory }

// IDCount returns the layer id counter.
func (r *Registry) IDCount() int { return r.idCount }

// Layer returns the layer with the given id.
func (r *Registry) Layer(id string) (*layer.Layer, bool) {
	l, ok := r.layers[id]
	return l, ok
}

// Layers returns the registered layers in order. Ids in the order that do
// not name a layer are skipped.
func (r *Registry) Layers() []*layer.Layer {
	out := make([]*layer.Layer, 0, len(r.order))
	for _, id := range r.order {
		if l, ok := r.layers[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Len returns the number of registered layers.
func (r *Registry) Len() int { return len(r.layers) }

// ExportSpec returns the current export specification.
func (r *Registry) ExportSpec() compositor.Spec { return r.export }

// SetExportSpec replaces the export specification.
func (r *Registry) SetExportSpec(s compositor.Spec) { r.export = s }

// =============================================================================
// Layer management
// =============================================================================

// NewLayer creates a layer with the registry's configuration and adds it at
// the end of the order. An empty id is replaced by "layer_<n>".
func (r *Registry) NewLayer(ctx context.Context, id string) (*layer.Layer, error) {
	l := layer.New(id, r.cfg, layer.WithFactory(r.factory), layer.WithLogger(r.logger))
	if _, err := r.AddLayer(ctx, l, id); err != nil {
		return nil, err
	}
	return l, nil
}

// AddLayer registers l under id at the end of the order and returns the id
// used. An empty id is replaced by "layer_<n>". A layer that already holds
// publisher output republishes it into the table.
func (r *Registry) AddLayer(ctx context.Context, l *layer.Layer, id string) (string, error) {
	return r.InsertLayer(ctx, l, id, len(r.order))
}

// InsertLayer registers l under id at position index of the order. The
// index is clamped to the valid range.
func (r *Registry) InsertLayer(ctx context.Context, l *layer.Layer, id string, index int) (string, error) {
	if id == "" {
		id = r.nextID()
	} else {
		if err := errs.ValidateID(id); err != nil {
			return "", err
		}
		if _, exists := r.layers[id]; exists {
			return "", errs.New(errs.ErrCodeDuplicateID, "layer %q already registered", id)
		}
	}

	l.SetID(id)
	r.layers[id] = l
	r.order = slices.Insert(r.order, clampIndex(index, len(r.order)), id)
	l.Attach(r.bus, r)
	l.RefreshChoices(r.table.Tags())
	r.logger.Debug("layer added", "layer", id, "order", r.order)
	r.bus.Post(event.Event{Kind: event.LayerAdded, Layer: id, Order: r.Order()})

	if len(l.Publishers()) > 0 {
		if err := l.Republish(ctx); err != nil {
			r.logger.Warn("republish failed", "layer", id, "err", err)
		}
	}
	return id, nil
}

func (r *Registry) nextID() string {
	for {
		r.idCount++
		id := fmt.Sprintf("layer_%d", r.idCount)
		if _, exists := r.layers[id]; !exists {
			return id
		}
	}
}

// RemoveLayer unregisters a layer and withdraws everything it published.
func (r *Registry) RemoveLayer(id string) error {
	l, ok := r.layers[id]
	if !ok {
		return errs.New(errs.ErrCodeNotFound, "layer %q", id)
	}
	delete(r.layers, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })

	tags := r.table.UnpublishOwner(id)
	l.Forget()
	l.Detach()
	r.logger.Debug("layer removed", "layer", id, "unpublished", tags)
	r.bus.Post(event.Event{Kind: event.LayerRemoved, Layer: id, Order: r.Order()})
	return nil
}

// RenameLayer changes a layer's id. Its publications are withdrawn under the
// old tags and republished under the new ones.
func (r *Registry) RenameLayer(ctx context.Context, oldID, newID string) error {
	l, ok := r.layers[oldID]
	if !ok {
		return errs.New(errs.ErrCodeNotFound, "layer %q", oldID)
	}
	if oldID == newID {
		return nil
	}
	if err := errs.ValidateID(newID); err != nil {
		return err
	}
	if _, exists := r.layers[newID]; exists {
		return errs.New(errs.ErrCodeDuplicateID, "layer %q already registered", newID)
	}

	r.table.UnpublishOwner(oldID)
	l.Forget()
	l.SetID(newID)
	delete(r.layers, oldID)
	r.layers[newID] = l
	r.order[slices.Index(r.order, oldID)] = newID
	r.rewriteExportSources(oldID, newID)

	r.bus.Post(event.Event{Kind: event.LayerRenamed, Layer: newID, Previous: oldID, Order: r.Order()})
	return l.Republish(ctx)
}

func (r *Registry) rewriteExportSources(oldID, newID string) {
	for i := range r.export.Sources {
		if r.export.Sources[i].Layer == oldID {
			r.export.Sources[i].Layer = newID
		}
	}
}

// =============================================================================
// Order
// =============================================================================

// Order returns a copy of the layer order.
func (r *Registry) Order() []string { return slices.Clone(r.order) }

// SetOrder replaces the layer order as given. It does not check that order
// is a permutation of the registered ids; use [Registry.ValidateOrder] first
// when the input is untrusted.
func (r *Registry) SetOrder(order []string) {
	r.order = slices.Clone(order)
	r.bus.Post(event.Event{Kind: event.LayerReordered, Order: r.Order()})
}

// ValidateOrder reports whether order is a permutation of the registered ids.
func (r *Registry) ValidateOrder(order []string) error {
	if len(order) != len(r.layers) {
		return errs.New(errs.ErrCodeInvalidInput, "order has %d ids, registry has %d layers", len(order), len(r.layers))
	}
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if _, ok := r.layers[id]; !ok {
			return errs.New(errs.ErrCodeInvalidInput, "order names unknown layer %q", id)
		}
		if seen[id] {
			return errs.New(errs.ErrCodeInvalidInput, "order repeats layer %q", id)
		}
		seen[id] = true
	}
	return nil
}

// MoveLayer moves a layer to position index of the order, clamped.
func (r *Registry) MoveLayer(id string, index int) error {
	i := slices.Index(r.order, id)
	if i < 0 {
		return errs.New(errs.ErrCodeNotFound, "layer %q", id)
	}
	order := slices.Delete(r.Order(), i, i+1)
	order = slices.Insert(order, clampIndex(index, len(order)), id)
	r.SetOrder(order)
	return nil
}

// IsAbove reports whether layer a comes after layer b in the order.
// It is false when either id is not in the order.
func (r *Registry) IsAbove(a, b string) bool {
	ia, ib := slices.Index(r.order, a), slices.Index(r.order, b)
	return ia >= 0 && ib >= 0 && ia > ib
}

func clampIndex(i, n int) int {
	return min(max(i, 0), n)
}

// =============================================================================
// Evaluation and export
// =============================================================================

// Update recomputes every dirty layer in order.
func (r *Registry) Update(ctx context.Context) error {
	var failures []error
	for _, l := range r.Layers() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.Update(ctx); err != nil {
			failures = append(failures, fmt.Errorf("layer %s: %w", l.ID(), err))
		}
	}
	return errors.Join(failures...)
}

// ComputeFlatten flattens spec without writing files. Layers with pending
// recomputes are brought up to date first.
func (r *Registry) ComputeFlatten(ctx context.Context, spec compositor.Spec) (*field.Field, frame.Frame, error) {
	if err := r.settle(ctx); err != nil {
		return nil, frame.Frame{}, err
	}
	return r.comp.Flatten(ctx, spec)
}

// settle recomputes every layer with pending work, in order. Node failures
// are logged and leave those outputs empty; only cancellation is returned.
func (r *Registry) settle(ctx context.Context) error {
	for _, l := range r.Layers() {
		if !l.Pending() {
			continue
		}
		if err := l.Update(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("recompute before export failed", "layer", l.ID(), "err", err)
		}
	}
	return nil
}

// Export flattens spec and writes the elevation and preview images. Layers
// with pending recomputes are brought up to date first.
func (r *Registry) Export(ctx context.Context, spec compositor.Spec) (*compositor.Result, error) {
	start := time.Now()
	r.bus.Post(event.Event{Kind: event.ExportStarted})
	err := r.settle(ctx)
	var res *compositor.Result
	if err == nil {
		res, err = r.comp.Export(ctx, spec)
	}
	done := event.Event{Kind: event.ExportFinished, Duration: time.Since(start)}
	if err != nil {
		done.Error = err.Error()
	}
	r.bus.Post(done)
	return res, err
}

// Compositor returns the registry's compositor.
func (r *Registry) Compositor() *compositor.Compositor { return r.comp }

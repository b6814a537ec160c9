package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/matzehuels/stratum/pkg/compositor"
	"github.com/matzehuels/stratum/pkg/dag"
	"github.com/matzehuels/stratum/pkg/document"
	"github.com/matzehuels/stratum/pkg/frame"
	"github.com/matzehuels/stratum/pkg/layer"
)

// Serialize captures the registry as a document.
func (r *Registry) Serialize() *document.Document {
	doc := document.New()
	doc.IDCount = r.idCount
	doc.GraphOrder = r.Order()
	doc.ExportParam = exportParam(r.export)
	for _, l := range r.Layers() {
		doc.GraphNodes[l.ID()] = serializeLayer(l)
	}
	return doc
}

func serializeLayer(l *layer.Layer) document.Layer {
	fr := l.Frame()
	out := document.Layer{
		ID:            l.ID(),
		IDCount:       l.IDCount(),
		ModelConfig:   l.Config(),
		Origin:        [2]float64{fr.Origin.X, fr.Origin.Y},
		Size:          [2]float64{fr.Size.X, fr.Size.Y},
		RotationAngle: fr.Rotation,
		Nodes:         []document.Node{},
		Links:         []document.Link{},
	}
	for _, n := range l.Nodes() {
		out.Nodes = append(out.Nodes, document.Node{
			Label:  n.Kind(),
			ID:     n.ID(),
			Frozen: l.Graph().IsFrozen(n.ID()),
			Attrs:  n.Attrs(),
		})
	}
	for _, lk := range l.Links() {
		out.Links = append(out.Links, document.Link{
			NodeIDFrom: lk.From, PortIDFrom: lk.FromPort,
			NodeIDTo: lk.To, PortIDTo: lk.ToPort,
		})
	}
	return out
}

func exportParam(s compositor.Spec) document.ExportParam {
	ep := document.ExportParam{
		Shape:   s.Shape,
		Tiling:  s.Tiling,
		Overlap: s.Overlap,
		Path:    s.Path,
		Sources: []document.SourceRef{},
	}
	for _, src := range s.Sources {
		ep.Sources = append(ep.Sources, document.SourceRef{LayerID: src.Layer, NodeID: src.Node, PortID: src.Port})
	}
	return ep
}

func exportSpec(ep document.ExportParam) compositor.Spec {
	s := compositor.Spec{Shape: ep.Shape, Tiling: ep.Tiling, Overlap: ep.Overlap, Path: ep.Path}
	for _, src := range ep.Sources {
		s.Sources = append(s.Sources, compositor.SourceRef{Layer: src.LayerID, Node: src.NodeID, Port: src.PortID})
	}
	return s
}

// Deserialize replaces the registry's contents with doc.
//
// Layers are rebuilt in graph_order; layers present in graph_nodes but
// missing from the order are appended after it. Every layer is then
// recomputed in order so publishers repopulate the broadcast table. Problems
// with individual nodes, links or frames are logged, skipped and returned
// joined; the rest of the document is still loaded.
func (r *Registry) Deserialize(ctx context.Context, doc *document.Document) error {
	r.Clear()

	order := slices.Clone(doc.GraphOrder)
	for _, id := range doc.LayerIDs() {
		if !slices.Contains(order, id) {
			r.logger.Warn("layer missing from graph_order, appending", "layer", id)
			order = append(order, id)
		}
	}

	var failures []error
	for _, id := range order {
		ld, ok := doc.GraphNodes[id]
		if !ok {
			r.logger.Warn("graph_order names unknown layer, skipping", "layer", id)
			failures = append(failures, fmt.Errorf("graph_order: unknown layer %q", id))
			continue
		}
		if err := r.loadLayer(ctx, id, ld); err != nil {
			failures = append(failures, err)
		}
	}

	r.idCount = doc.IDCount
	r.export = exportSpec(doc.ExportParam)
	if err := r.Update(ctx); err != nil {
		failures = append(failures, err)
	}
	r.restoreFrozen(doc)
	return errors.Join(failures...)
}

// restoreFrozen freezes the nodes flagged in doc. It runs after the first
// update so frozen nodes keep the outputs computed on load.
func (r *Registry) restoreFrozen(doc *document.Document) {
	for id, ld := range doc.GraphNodes {
		l, ok := r.layers[id]
		if !ok {
			continue
		}
		for _, n := range ld.Nodes {
			if !n.Frozen {
				continue
			}
			if err := l.SetFrozen(n.ID, true); err != nil {
				r.logger.Warn("cannot freeze node", "layer", id, "node", n.ID, "err", err)
			}
		}
	}
}

func (r *Registry) loadLayer(ctx context.Context, id string, ld document.Layer) error {
	cfg := ld.ModelConfig
	if err := cfg.Validate(); err != nil {
		r.logger.Warn("invalid model_config, using registry default", "layer", id, "err", err)
		cfg = r.cfg
	}
	fr := frame.New(frame.Point{X: ld.Origin[0], Y: ld.Origin[1]}, frame.Point{X: ld.Size[0], Y: ld.Size[1]}, ld.RotationAngle)
	if err := fr.Validate(); err != nil {
		r.logger.Warn("invalid frame, using unit frame", "layer", id, "err", err)
		fr = frame.Unit
	}

	l := layer.New(id, cfg, layer.WithFactory(r.factory), layer.WithLogger(r.logger), layer.WithFrame(fr))
	if _, err := r.AddLayer(ctx, l, id); err != nil {
		return err
	}

	var failures []error
	for _, n := range ld.Nodes {
		if _, err := l.AddNode(ctx, n.Label, n.ID, n.Attrs); err != nil {
			r.logger.Warn("skipping node", "layer", id, "node", n.ID, "label", n.Label, "err", err)
			failures = append(failures, fmt.Errorf("layer %s node %s: %w", id, n.ID, err))
		}
	}
	for _, lk := range ld.Links {
		link := dag.Link{From: lk.NodeIDFrom, FromPort: lk.PortIDFrom, To: lk.NodeIDTo, ToPort: lk.PortIDTo}
		if err := l.AddLink(link); err != nil {
			r.logger.Warn("skipping link", "layer", id, "link", link, "err", err)
			failures = append(failures, fmt.Errorf("layer %s link %s.%s: %w", id, lk.NodeIDTo, lk.PortIDTo, err))
		}
	}
	l.SetIDCount(ld.IDCount)
	return errors.Join(failures...)
}

// Clear removes every layer and empties the broadcast table.
func (r *Registry) Clear() {
	for id := range r.layers {
		_ = r.RemoveLayer(id)
	}
	r.order = nil
	r.table.Clear()
	r.idCount = 0
}

package layer

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stratum/pkg/broadcast"
	"github.com/matzehuels/stratum/pkg/dag"
	errs "github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/event"
	"github.com/matzehuels/stratum/pkg/field"
	"github.com/matzehuels/stratum/pkg/frame"
	"github.com/matzehuels/stratum/pkg/node"
)

// State is the evaluation state of a layer.
type State int

const (
	Clean State = iota
	Dirty
)

func (s State) String() string {
	if s == Clean {
		return "clean"
	}
	return "dirty"
}

// Sink receives publications from a layer and resolves tags for its
// subscribers. The registry implements it.
type Sink interface {
	OnPublish(ctx context.Context, layerID, nodeID, tag string, f frame.Frame, data *field.Field) error
	OnUnpublish(tag string)
	ResolveSource(tag string) (node.Source, error)
	Tags() []string
}

// Option configures a [Layer].
type Option func(*Layer)

// WithFactory sets the node factory. The default is [node.DefaultFactory].
func WithFactory(f *node.Factory) Option { return func(l *Layer) { l.factory = f } }

// WithLogger sets the logger. The default is log.Default().
func WithLogger(lg *log.Logger) Option { return func(l *Layer) { l.logger = lg } }

// WithFrame sets the initial frame. The default is [frame.Unit].
func WithFrame(f frame.Frame) Option { return func(l *Layer) { l.frame = f } }

// Layer is a node graph placed in world space.
type Layer struct {
	id      string
	cfg     node.Config
	factory *node.Factory
	graph   *dag.DAG
	frame   frame.Frame
	idCount int

	bus    *event.Bus
	sink   Sink
	logger *log.Logger

	state     State
	computes  int
	published map[string]string // node id -> last published tag
}

// New creates an empty layer.
func New(id string, cfg node.Config, opts ...Option) *Layer {
	l := &Layer{
		id:        id,
		cfg:       cfg,
		graph:     dag.New(),
		frame:     frame.Unit,
		published: make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.factory == nil {
		l.factory = node.DefaultFactory()
	}
	if l.logger == nil {
		l.logger = log.Default()
	}
	return l
}

// Attach connects the layer to an event bus and a publication sink.
func (l *Layer) Attach(bus *event.Bus, sink Sink) {
	l.bus = bus
	l.sink = sink
}

// Detach disconnects the layer from its bus and sink.
func (l *Layer) Detach() {
	l.bus = nil
	l.sink = nil
}

// =============================================================================
// Accessors
// =============================================================================

// ID returns the layer id.
func (l *Layer) ID() string { return l.id }

// Config returns the model configuration shared by the layer's nodes.
func (l *Layer) Config() node.Config { return l.cfg }

// Frame returns the layer's world-space frame.
func (l *Layer) Frame() frame.Frame { return l.frame }

// State reports whether the layer has pending recomputes.
func (l *Layer) State() State { return l.state }

// IDCount returns the auto-id counter.
func (l *Layer) IDCount() int { return l.idCount }

// Links returns a copy of the layer's intra-layer links.
func (l *Layer) Links() []dag.Link { return l.graph.Links() }

// Pending reports whether any unfrozen node still needs recompute.
func (l *Layer) Pending() bool { return !onlyFrozenDirty(l.graph) }

// NodePending reports whether the node is dirty and not frozen, meaning its
// outputs do not reflect its current inputs.
func (l *Layer) NodePending(id string) bool {
	return l.graph.IsDirty(id) && !l.graph.IsFrozen(id)
}

// SetIDCount restores the auto-id counter, used when loading a document.
func (l *Layer) SetIDCount(n int) { l.idCount = n }

// SetID changes the layer id. Tags derived from the old id are not touched;
// the registry unpublishes them and calls [Layer.Republish].
func (l *Layer) SetID(id string) { l.id = id }

// ComputeCount returns how many node evaluations this layer has run.
func (l *Layer) ComputeCount() int { return l.computes }

// Graph exposes the underlying graph for read-only inspection.
func (l *Layer) Graph() *dag.DAG { return l.graph }

// Node returns the node with the given id.
func (l *Layer) Node(id string) (node.Node, bool) {
	n, ok := l.graph.Node(id)
	if !ok {
		return nil, false
	}
	return n.(node.Node), true
}

// Nodes returns all nodes in insertion order.
func (l *Layer) Nodes() []node.Node {
	nodes := l.graph.Nodes()
	out := make([]node.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.(node.Node)
	}
	return out
}

// Output returns the data on a node's output port.
func (l *Layer) Output(nodeID, port string) (*field.Field, error) {
	n, ok := l.Node(nodeID)
	if !ok {
		return nil, errs.New(errs.ErrCodeNotFound, "layer %s has no node %q", l.id, nodeID)
	}
	if !slices.Contains(n.Outputs(), port) {
		return nil, errs.New(errs.ErrCodeNotFound, "node %s has no output %q", nodeID, port)
	}
	return n.Output(port), nil
}

// Publishers returns every publisher node.
func (l *Layer) Publishers() []node.Publisher {
	var out []node.Publisher
	for _, n := range l.Nodes() {
		if p, ok := n.(node.Publisher); ok {
			out = append(out, p)
		}
	}
	return out
}

// Subscribers returns every subscriber node.
func (l *Layer) Subscribers() []node.Subscriber {
	var out []node.Subscriber
	for _, n := range l.Nodes() {
		if s, ok := n.(node.Subscriber); ok {
			out = append(out, s)
		}
	}
	return out
}

// TagOf returns the tag a publisher node publishes under.
func (l *Layer) TagOf(p node.Publisher) string {
	return broadcast.Tag(l.id, p.Kind(), p.ID())
}

// =============================================================================
// Frame
// =============================================================================

// SetFrame replaces the frame. It does not recompute; every node is marked
// dirty so the next update republishes with the new placement.
func (l *Layer) SetFrame(f frame.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	l.frame = f
	l.graph.MarkAllDirty()
	l.state = Dirty
	l.post(event.Event{Kind: event.FrameChanged, Layer: l.id})
	return nil
}

// SetOrigin moves the layer.
func (l *Layer) SetOrigin(p frame.Point) error {
	f := l.frame
	f.Origin = p
	return l.SetFrame(f)
}

// SetSize resizes the layer. The size must be strictly positive.
func (l *Layer) SetSize(p frame.Point) error {
	f := l.frame
	f.Size = p
	return l.SetFrame(f)
}

// SetRotation sets the rotation in degrees.
func (l *Layer) SetRotation(deg float64) error {
	f := l.frame
	f.Rotation = deg
	return l.SetFrame(f)
}

// =============================================================================
// Evaluation
// =============================================================================

// Update recomputes every dirty node. Per-node failures are logged and
// returned joined; they never stop other nodes from computing.
func (l *Layer) Update(ctx context.Context) error {
	return l.run(ctx, func(fn dag.ComputeFunc) error { return l.graph.Update(ctx, fn) })
}

// UpdateNode recomputes id and everything downstream of it.
func (l *Layer) UpdateNode(ctx context.Context, id string) error {
	if _, ok := l.graph.Node(id); !ok {
		return errs.New(errs.ErrCodeNotFound, "layer %s has no node %q", l.id, id)
	}
	return l.run(ctx, func(fn dag.ComputeFunc) error { return l.graph.UpdateFrom(ctx, id, fn) })
}

func (l *Layer) run(ctx context.Context, pass func(dag.ComputeFunc) error) error {
	start := time.Now()
	l.post(event.Event{Kind: event.ComputeStarted, Layer: l.id})
	err := pass(l.compute)
	if onlyFrozenDirty(l.graph) {
		l.state = Clean
	}
	done := event.Event{Kind: event.ComputeFinished, Layer: l.id, Duration: time.Since(start)}
	if err != nil {
		done.Error = err.Error()
	}
	l.post(done)
	return err
}

func onlyFrozenDirty(g *dag.DAG) bool {
	for _, id := range g.Dirty() {
		if !g.IsFrozen(id) {
			return false
		}
	}
	return true
}

// compute evaluates one node and publishes publisher snapshots.
func (l *Layer) compute(ctx context.Context, id string) error {
	n, _ := l.Node(id)
	start := time.Now()
	l.post(event.Event{Kind: event.ComputeStarted, Layer: l.id, Node: id})

	err := n.Compute(ctx)
	l.computes++
	if err == nil {
		if p, ok := n.(node.Publisher); ok {
			err = l.publish(ctx, p)
		}
	}

	done := event.Event{Kind: event.ComputeFinished, Layer: l.id, Node: id, Duration: time.Since(start)}
	if err != nil {
		done.Error = err.Error()
		l.logger.Warn("node compute failed", "layer", l.id, "node", id, "kind", n.Kind(), "err", err)
	} else {
		l.logger.Debug("node computed", "layer", l.id, "node", id, "duration", done.Duration)
	}
	l.post(done)
	return err
}

// publish hands the publisher's current data to the sink under its tag. A
// publisher without data withdraws any earlier record.
func (l *Layer) publish(ctx context.Context, p node.Publisher) error {
	tag := l.TagOf(p)
	if old, ok := l.published[p.ID()]; ok && old != tag {
		l.unpublish(p.ID())
	}
	data := p.PublishData()
	if data == nil {
		l.unpublish(p.ID())
		return nil
	}
	l.published[p.ID()] = tag
	if l.sink == nil {
		return nil
	}
	return l.sink.OnPublish(ctx, l.id, p.ID(), tag, l.frame, data)
}

func (l *Layer) unpublish(nodeID string) {
	tag, ok := l.published[nodeID]
	if !ok {
		return
	}
	delete(l.published, nodeID)
	if l.sink != nil {
		l.sink.OnUnpublish(tag)
	}
}

// Republish publishes the current data of every publisher again, under tags
// derived from the current layer id. Nodes are not recomputed.
func (l *Layer) Republish(ctx context.Context) error {
	var failures []error
	for _, p := range l.Publishers() {
		if err := l.publish(ctx, p); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

// Forget drops the layer's record of what it published without notifying
// the sink. The registry uses it after clearing the layer's records itself.
func (l *Layer) Forget() {
	clear(l.published)
}

// OnSubscriberRefresh recomputes every subscriber subscribed to tag, plus
// their downstream nodes. It returns the number of subscribers refreshed.
func (l *Layer) OnSubscriberRefresh(ctx context.Context, tag string) (int, error) {
	var hits []string
	for _, s := range l.Subscribers() {
		if s.Subscription() == tag {
			hits = append(hits, s.ID())
		}
	}
	if len(hits) == 0 {
		return 0, nil
	}
	l.logger.Debug("refreshing subscribers", "layer", l.id, "tag", tag, "nodes", hits)
	return len(hits), l.run(ctx, func(fn dag.ComputeFunc) error {
		return l.graph.UpdateReachable(ctx, hits, fn)
	})
}

// RefreshChoices replaces every subscriber's list of selectable tags.
// Subscribers whose current tag is no longer offered drop their output at
// once and are marked dirty along with everything downstream of them.
func (l *Layer) RefreshChoices(tags []string) {
	for _, s := range l.Subscribers() {
		s.SetChoices(tags)
		if sub := s.Subscription(); sub != "" && !slices.Contains(tags, sub) {
			l.logger.Warn("subscription no longer published", "layer", l.id, "node", s.ID(), "tag", sub)
			s.Invalidate()
			l.graph.MarkDirty(s.ID())
			l.state = Dirty
		}
	}
}

func (l *Layer) post(e event.Event) {
	l.bus.Post(e)
}

package node

import (
	"context"
	"slices"

	"github.com/matzehuels/stratum/pkg/field"
	"github.com/matzehuels/stratum/pkg/frame"
)

// Publisher is implemented by nodes that publish a snapshot of their data
// after every successful compute. The owning layer derives the tag and
// performs the publish.
type Publisher interface {
	Node
	PublishData() *field.Field
}

// Subscriber is implemented by nodes that read a published snapshot.
type Subscriber interface {
	Node
	Subscription() string
	Subscribe(tag string)
	SetChoices(tags []string)
	Choices() []string
	Bind(r Resolver)

	// Invalidate drops the output resampled from the last snapshot.
	Invalidate()
}

// Source is a resolved snapshot: the publishing layer's frame and the data.
type Source struct {
	Frame frame.Frame
	Data  *field.Field
}

// Resolver gives a subscriber access to published snapshots and to the frame
// of the layer it lives in.
type Resolver interface {
	// ResolveSource returns the snapshot published under tag, or a
	// DANGLING_BROADCAST error when none is available.
	ResolveSource(tag string) (Source, error)

	// TargetFrame returns the subscriber's own layer frame.
	TargetFrame() (frame.Frame, bool)
}

// =============================================================================
// Broadcast
// =============================================================================

// Broadcast publishes its input and passes it through unchanged.
type Broadcast struct {
	Base
}

// NewBroadcast returns a Broadcast node.
func NewBroadcast(id string, cfg Config) Node {
	return &Broadcast{Base: NewBase(id, KindBroadcast, cfg, []string{PortIn}, []string{PortOut})}
}

func (n *Broadcast) Compute(context.Context) error {
	n.SetOutput(PortOut, n.Input(PortIn))
	return nil
}

// PublishData returns the current input. Nil means there is nothing to publish.
func (n *Broadcast) PublishData() *field.Field { return n.Input(PortIn) }

// =============================================================================
// Receive
// =============================================================================

// Receive resamples a published snapshot into its layer's frame.
//
// The source grid is mapped through the box [0,0]-source.size and the target
// grid through [0,0]-target.size; origins and rotation are not applied.
// Target cells beyond the source extent take the nearest edge value.
type Receive struct {
	Base
	tag      string
	choices  []string
	resolver Resolver
	dangling bool
}

// NewReceive returns an unsubscribed Receive node.
func NewReceive(id string, cfg Config) Node {
	return &Receive{Base: NewBase(id, KindReceive, cfg, nil, []string{PortOut})}
}

func (n *Receive) Subscription() string     { return n.tag }
func (n *Receive) Subscribe(tag string)     { n.tag = tag }
func (n *Receive) Choices() []string        { return slices.Clone(n.choices) }
func (n *Receive) SetChoices(tags []string) { n.choices = slices.Clone(tags) }
func (n *Receive) Bind(r Resolver)          { n.resolver = r }

// Dangling reports whether the last compute found no snapshot for the
// subscribed tag.
func (n *Receive) Dangling() bool { return n.dangling }

// Invalidate clears the output and marks the node dangling until its next
// compute finds a snapshot.
func (n *Receive) Invalidate() {
	n.dangling = true
	n.SetOutput(PortOut, nil)
}

func (n *Receive) Compute(context.Context) error {
	n.dangling = false
	n.SetOutput(PortOut, nil)
	if n.tag == "" || n.resolver == nil {
		return nil
	}
	src, err := n.resolver.ResolveSource(n.tag)
	if err != nil || src.Data == nil {
		n.dangling = true
		return nil
	}
	dst, ok := n.resolver.TargetFrame()
	if !ok {
		return nil
	}
	nx, ny := n.Config().Shape[0], n.Config().Shape[1]
	n.SetOutput(PortOut, field.Resample(src.Data, src.Frame.Relative(), dst.Relative(), nx, ny))
	return nil
}

func (n *Receive) Attrs() Attrs { return Attrs{"tag": n.tag} }

func (n *Receive) SetAttrs(a Attrs) error { return stringAttr(a, "tag", &n.tag) }

var (
	_ Publisher  = (*Broadcast)(nil)
	_ Subscriber = (*Receive)(nil)
)

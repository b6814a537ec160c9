package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/matzehuels/stratum/pkg/broadcast"
	errs "github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/event"
	"github.com/matzehuels/stratum/pkg/field"
	"github.com/matzehuels/stratum/pkg/frame"
	"github.com/matzehuels/stratum/pkg/node"
)

// OnPublish stores a publisher's snapshot and dispatches the tag to the
// layers above the publishing layer.
func (r *Registry) OnPublish(ctx context.Context, layerID, nodeID, tag string, f frame.Frame, data *field.Field) error {
	r.table.Publish(layerID, nodeID, tag, f, data)
	return r.DispatchBroadcast(ctx, layerID, tag)
}

// OnUnpublish withdraws tag. Subscriber choices are refreshed through the
// table's change listener.
func (r *Registry) OnUnpublish(tag string) {
	r.table.Unpublish(tag)
}

// ResolveSource returns the current snapshot published under tag, or a
// DANGLING_BROADCAST error.
func (r *Registry) ResolveSource(tag string) (node.Source, error) {
	rec, ok := r.table.Lookup(tag)
	if !ok {
		return node.Source{}, errs.New(errs.ErrCodeDanglingBroadcast, "no publisher for %q", tag)
	}
	return node.Source{Frame: rec.Frame, Data: rec.Data}, nil
}

// Tags returns the published tags, sorted.
func (r *Registry) Tags() []string { return r.table.Tags() }

// DispatchBroadcast refreshes the subscribers of tag in every layer strictly
// after origin in the order. Layers at or before origin are not touched;
// subscribers there that would have matched are logged at debug level. An
// origin with no position in the order reaches no layer.
func (r *Registry) DispatchBroadcast(ctx context.Context, origin, tag string) error {
	idx := slices.Index(r.order, origin)
	if idx < 0 {
		r.logger.Debug("broadcast from layer outside the order not dispatched", "tag", tag, "origin", origin)
		return nil
	}
	var failures []error
	for i, id := range r.order {
		l, ok := r.layers[id]
		if !ok {
			continue
		}
		if i <= idx {
			if hasSubscriber(l.Subscribers(), tag) {
				r.logger.Debug("broadcast not dispatched to lower layer", "tag", tag, "origin", origin, "layer", l.ID())
			}
			continue
		}
		n, err := l.OnSubscriberRefresh(ctx, tag)
		if err != nil {
			failures = append(failures, fmt.Errorf("layer %s: %w", l.ID(), err))
		}
		if n > 0 {
			r.logger.Debug("broadcast dispatched", "tag", tag, "origin", origin, "layer", l.ID(), "subscribers", n)
		}
	}
	return errors.Join(failures...)
}

func hasSubscriber(subs []node.Subscriber, tag string) bool {
	return slices.ContainsFunc(subs, func(s node.Subscriber) bool { return s.Subscription() == tag })
}

func (r *Registry) onTableChange(kind broadcast.ChangeKind, tag string) {
	switch kind {
	case broadcast.Added:
		r.bus.Post(event.Event{Kind: event.TagAdded, Tag: tag})
	case broadcast.Removed:
		r.bus.Post(event.Event{Kind: event.TagRemoved, Tag: tag})
	default:
		return
	}
	tags := r.table.Tags()
	for _, l := range r.Layers() {
		l.RefreshChoices(tags)
	}
}

// BackReference is a subscription that order gating will never refresh: the
// subscribed tag is published by the same layer or by a layer above it.
type BackReference struct {
	Layer string `json:"layer"`
	Node  string `json:"node"`
	Tag   string `json:"tag"`
	Owner string `json:"owner"`
}

// BackReferences lists every subscription whose publisher is not strictly
// below the subscriber.
func (r *Registry) BackReferences() []BackReference {
	var out []BackReference
	for i, id := range r.order {
		l, ok := r.layers[id]
		if !ok {
			continue
		}
		for _, s := range l.Subscribers() {
			rec, ok := r.table.Lookup(s.Subscription())
			if !ok {
				continue
			}
			if j := slices.Index(r.order, rec.Owner); j >= i {
				out = append(out, BackReference{Layer: l.ID(), Node: s.ID(), Tag: rec.Tag, Owner: rec.Owner})
			}
		}
	}
	return out
}

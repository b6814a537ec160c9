package layer

import (
	"context"
	"fmt"

	"github.com/matzehuels/stratum/pkg/dag"
	errs "github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/frame"
	"github.com/matzehuels/stratum/pkg/node"
)

// AddNode instantiates a node of the given kind, applies attrs and evaluates
// it once. An empty id is replaced by "<kind>#<n>" from the layer counter.
//
// Subscriber nodes are bound to the layer's resolver and receive the current
// tag choices before their first evaluation. The evaluation result is logged
// but does not fail the call; structural errors (DUPLICATE_ID,
// UNKNOWN_NODE_TYPE, INVALID_INPUT) do and leave the layer unchanged.
func (l *Layer) AddNode(ctx context.Context, kind, id string, attrs node.Attrs) (string, error) {
	if id == "" {
		id = l.nextID(kind)
	} else {
		if err := errs.ValidateID(id); err != nil {
			return "", err
		}
		if _, exists := l.graph.Node(id); exists {
			return "", errs.New(errs.ErrCodeDuplicateID, "layer %s already has node %q", l.id, id)
		}
	}

	n, err := l.factory.New(kind, id, l.cfg)
	if err != nil {
		return "", err
	}
	if len(attrs) > 0 {
		if err := n.SetAttrs(attrs); err != nil {
			return "", err
		}
	}
	if s, ok := n.(node.Subscriber); ok {
		s.Bind(resolver{l})
		if l.sink != nil {
			s.SetChoices(l.sink.Tags())
		}
	}
	if err := l.graph.AddNode(n); err != nil {
		return "", err
	}
	l.state = Dirty

	if err := l.UpdateNode(ctx, id); err != nil {
		l.logger.Warn("initial evaluation failed", "layer", l.id, "node", id, "err", err)
	}
	return id, nil
}

func (l *Layer) nextID(kind string) string {
	for {
		l.idCount++
		id := fmt.Sprintf("%s#%d", kind, l.idCount)
		if _, exists := l.graph.Node(id); !exists {
			return id
		}
	}
}

// RemoveNode deletes a node and its links. A publisher's record is withdrawn
// before the node goes away.
func (l *Layer) RemoveNode(id string) error {
	if _, ok := l.graph.Node(id); !ok {
		return errs.New(errs.ErrCodeNotFound, "layer %s has no node %q", l.id, id)
	}
	l.unpublish(id)
	if err := l.graph.RemoveNode(id); err != nil {
		return err
	}
	l.state = Dirty
	return nil
}

// RenameNode changes a node id. A publisher's record under the old tag is
// withdrawn and republished under the new one.
func (l *Layer) RenameNode(ctx context.Context, oldID, newID string) error {
	if err := errs.ValidateID(newID); err != nil {
		return err
	}
	n, ok := l.Node(oldID)
	if !ok {
		return errs.New(errs.ErrCodeNotFound, "layer %s has no node %q", l.id, oldID)
	}
	if _, exists := l.graph.Node(newID); exists {
		return errs.New(errs.ErrCodeDuplicateID, "layer %s already has node %q", l.id, newID)
	}
	l.unpublish(oldID)
	if err := l.graph.RenameNode(oldID, newID); err != nil {
		return err
	}
	if p, ok := n.(node.Publisher); ok {
		return l.publish(ctx, p)
	}
	return nil
}

// AddLink connects two node ports. A link that would create a cycle is
// rejected with CYCLIC_GRAPH and the graph is unchanged.
func (l *Layer) AddLink(link dag.Link) error {
	if err := l.graph.AddLink(link); err != nil {
		return err
	}
	l.state = Dirty
	return nil
}

// RemoveLink removes the link feeding to.toPort.
func (l *Layer) RemoveLink(to, toPort string) bool {
	if !l.graph.RemoveLink(to, toPort) {
		return false
	}
	l.state = Dirty
	return true
}

// SetAttrs updates a node's parameters and marks it dirty.
func (l *Layer) SetAttrs(nodeID string, attrs node.Attrs) error {
	n, ok := l.Node(nodeID)
	if !ok {
		return errs.New(errs.ErrCodeNotFound, "layer %s has no node %q", l.id, nodeID)
	}
	if err := n.SetAttrs(attrs); err != nil {
		return err
	}
	l.graph.MarkDirty(nodeID)
	l.state = Dirty
	return nil
}

// Subscribe points a subscriber node at tag and marks it dirty.
func (l *Layer) Subscribe(nodeID, tag string) error {
	n, ok := l.Node(nodeID)
	if !ok {
		return errs.New(errs.ErrCodeNotFound, "layer %s has no node %q", l.id, nodeID)
	}
	s, ok := n.(node.Subscriber)
	if !ok {
		return errs.New(errs.ErrCodeInvalidInput, "node %s (%s) is not a subscriber", nodeID, n.Kind())
	}
	s.Subscribe(tag)
	l.graph.MarkDirty(nodeID)
	l.state = Dirty
	return nil
}

// SetFrozen freezes or thaws a node.
func (l *Layer) SetFrozen(nodeID string, frozen bool) error {
	if err := l.graph.SetFrozen(nodeID, frozen); err != nil {
		return errs.Wrap(errs.ErrCodeNotFound, err, "layer %s", l.id)
	}
	if !frozen {
		l.state = Dirty
	}
	return nil
}

// resolver gives subscriber nodes access to published snapshots.
type resolver struct{ l *Layer }

func (r resolver) ResolveSource(tag string) (node.Source, error) {
	if r.l.sink == nil {
		return node.Source{}, errs.New(errs.ErrCodeDanglingBroadcast, "layer %s is not attached", r.l.id)
	}
	return r.l.sink.ResolveSource(tag)
}

func (r resolver) TargetFrame() (frame.Frame, bool) { return r.l.frame, true }

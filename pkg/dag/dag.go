package dag

import (
	"context"
	"errors"
	"slices"

	"github.com/matzehuels/stratum/pkg/field"
	errs "github.com/matzehuels/stratum/pkg/errors"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] and [DAG.RenameNode] when
	// the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] and [DAG.RenameNode] when
	// a node with the same ID already exists in the graph.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownNode is returned when an operation names a node that does not exist.
	ErrUnknownNode = errors.New("unknown node")

	// ErrUnknownPort is returned by [DAG.AddLink] when a port is not declared
	// by the node on that side of the link.
	ErrUnknownPort = errors.New("unknown port")

	// ErrPortInUse is returned by [DAG.AddLink] when the target input port
	// already has an incoming link. Each input accepts exactly one link.
	ErrPortInUse = errors.New("input port already linked")

	// ErrGraphHasCycle is returned by [DAG.AddLink] when the link would close a
	// directed cycle, and by [DAG.Validate] when one is found.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Node is the view of a computation node the evaluator needs: an identity
// and named ports carrying fields.
type Node interface {
	ID() string
	SetID(id string)
	Inputs() []string
	Outputs() []string
	SetInput(port string, f *field.Field)
	Output(port string) *field.Field
}

// Link connects an output port of one node to an input port of another.
type Link struct {
	From     string `json:"node_id_from"`
	FromPort string `json:"port_id_from"`
	To       string `json:"node_id_to"`
	ToPort   string `json:"port_id_to"`
}

// ComputeFunc evaluates one node. The evaluator has already copied upstream
// outputs into the node's inputs when it is called.
type ComputeFunc func(ctx context.Context, id string) error

type entry struct {
	node   Node
	dirty  bool
	frozen bool
}

// DAG is a port-linked directed acyclic graph of computation nodes with
// per-node dirty tracking.
//
// The zero value is not usable - use New to create a valid DAG instance.
// DAG is not safe for concurrent use without external synchronization.
type DAG struct {
	nodes    map[string]*entry
	order    []string // insertion order
	links    []Link
	outgoing map[string][]string // nodeID -> children IDs (one per link)
	incoming map[string][]string // nodeID -> parent IDs (one per link)
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{
		nodes:    make(map[string]*entry),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// AddNode adds a node to the graph. New nodes start dirty.
// Returns ErrInvalidNodeID if the node ID is empty, or ErrDuplicateNodeID
// (coded DUPLICATE_ID) if a node with the same ID already exists.
func (d *DAG) AddNode(n Node) error {
	id := n.ID()
	if id == "" {
		return ErrInvalidNodeID
	}
	if _, exists := d.nodes[id]; exists {
		return errs.Wrap(errs.ErrCodeDuplicateID, ErrDuplicateNodeID, "node %q", id)
	}
	d.nodes[id] = &entry{node: n, dirty: true}
	d.order = append(d.order, id)
	return nil
}

// RemoveNode removes a node and every link touching it. Downstream nodes
// lose the corresponding inputs and are marked dirty.
func (d *DAG) RemoveNode(id string) error {
	if _, ok := d.nodes[id]; !ok {
		return errs.Wrap(errs.ErrCodeNotFound, ErrUnknownNode, "node %q", id)
	}
	for _, l := range d.Links() {
		if l.From == id || l.To == id {
			d.RemoveLink(l.To, l.ToPort)
		}
	}
	delete(d.nodes, id)
	delete(d.outgoing, id)
	delete(d.incoming, id)
	d.order = slices.DeleteFunc(d.order, func(s string) bool { return s == id })
	return nil
}

// RenameNode changes a node's ID, updating all links and indices.
func (d *DAG) RenameNode(oldID, newID string) error {
	if newID == "" {
		return ErrInvalidNodeID
	}
	e, ok := d.nodes[oldID]
	if !ok {
		return errs.Wrap(errs.ErrCodeNotFound, ErrUnknownNode, "node %q", oldID)
	}
	if _, exists := d.nodes[newID]; exists {
		return errs.Wrap(errs.ErrCodeDuplicateID, ErrDuplicateNodeID, "node %q", newID)
	}

	e.node.SetID(newID)
	delete(d.nodes, oldID)
	d.nodes[newID] = e
	for i, id := range d.order {
		if id == oldID {
			d.order[i] = newID
		}
	}

	for i := range d.links {
		if d.links[i].From == oldID {
			d.links[i].From = newID
		}
		if d.links[i].To == oldID {
			d.links[i].To = newID
		}
	}
	d.reindex()
	return nil
}

// AddLink connects from.fromPort to to.toPort.
//
// The link is validated before it is committed: both nodes and ports must
// exist, the input must be free, and the link must not close a cycle. A link
// that would create a cycle is rejected with a CYCLIC_GRAPH error and the
// graph is left unchanged. On success the target and its descendants are
// marked dirty.
func (d *DAG) AddLink(l Link) error {
	src, ok := d.nodes[l.From]
	if !ok {
		return errs.Wrap(errs.ErrCodeNotFound, ErrUnknownNode, "link source %q", l.From)
	}
	dst, ok := d.nodes[l.To]
	if !ok {
		return errs.Wrap(errs.ErrCodeNotFound, ErrUnknownNode, "link target %q", l.To)
	}
	if !slices.Contains(src.node.Outputs(), l.FromPort) {
		return errs.Wrap(errs.ErrCodeInvalidInput, ErrUnknownPort, "%s has no output %q", l.From, l.FromPort)
	}
	if !slices.Contains(dst.node.Inputs(), l.ToPort) {
		return errs.Wrap(errs.ErrCodeInvalidInput, ErrUnknownPort, "%s has no input %q", l.To, l.ToPort)
	}
	for _, existing := range d.links {
		if existing.To == l.To && existing.ToPort == l.ToPort {
			return errs.Wrap(errs.ErrCodeInvalidInput, ErrPortInUse, "%s.%s", l.To, l.ToPort)
		}
	}
	if l.From == l.To || d.reachable(l.To, l.From) {
		return errs.Wrap(errs.ErrCodeCyclicGraph, ErrGraphHasCycle, "link %s.%s -> %s.%s", l.From, l.FromPort, l.To, l.ToPort)
	}

	d.links = append(d.links, l)
	d.outgoing[l.From] = append(d.outgoing[l.From], l.To)
	d.incoming[l.To] = append(d.incoming[l.To], l.From)
	d.MarkDirty(l.To)
	return nil
}

// RemoveLink removes the link feeding to.toPort, if any, clears that input
// and marks the target dirty. It reports whether a link was removed.
func (d *DAG) RemoveLink(to, toPort string) bool {
	idx := slices.IndexFunc(d.links, func(l Link) bool { return l.To == to && l.ToPort == toPort })
	if idx < 0 {
		return false
	}
	l := d.links[idx]
	d.links = slices.Delete(d.links, idx, idx+1)

	if i := slices.Index(d.outgoing[l.From], l.To); i >= 0 {
		d.outgoing[l.From] = slices.Delete(d.outgoing[l.From], i, i+1)
	}
	if i := slices.Index(d.incoming[l.To], l.From); i >= 0 {
		d.incoming[l.To] = slices.Delete(d.incoming[l.To], i, i+1)
	}
	if e, ok := d.nodes[to]; ok {
		e.node.SetInput(toPort, nil)
		d.MarkDirty(to)
	}
	return true
}

// Node returns the node with the given ID and true, or nil and false if not found.
func (d *DAG) Node(id string) (Node, bool) {
	e, ok := d.nodes[id]
	if !ok {
		return nil, false
	}
	return e.node, true
}

// Nodes returns all nodes in insertion order.
func (d *DAG) Nodes() []Node {
	out := make([]Node, len(d.order))
	for i, id := range d.order {
		out[i] = d.nodes[id].node
	}
	return out
}

// NodeIDs returns all node IDs in insertion order.
func (d *DAG) NodeIDs() []string { return slices.Clone(d.order) }

// Links returns a copy of all links in insertion order.
func (d *DAG) Links() []Link { return slices.Clone(d.links) }

// NodeCount returns the number of nodes in the graph.
func (d *DAG) NodeCount() int { return len(d.nodes) }

// Children returns the IDs of nodes fed by this node. The returned slice
// should not be modified.
func (d *DAG) Children(id string) []string { return d.outgoing[id] }

// Parents returns the IDs of nodes feeding this node. The returned slice
// should not be modified.
func (d *DAG) Parents(id string) []string { return d.incoming[id] }

// Validate checks graph integrity: every link endpoint exists and the graph
// is acyclic. Returns ErrUnknownNode or ErrGraphHasCycle.
//
// Cycle detection runs in O(N+E) time using depth-first search.
func (d *DAG) Validate() error {
	for _, l := range d.links {
		if _, ok := d.nodes[l.From]; !ok {
			return ErrUnknownNode
		}
		if _, ok := d.nodes[l.To]; !ok {
			return ErrUnknownNode
		}
	}
	return d.detectCycles()
}

func (d *DAG) detectCycles() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(d.nodes))
	var hasCycle bool

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, child := range d.outgoing[id] {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				hasCycle = true
				return
			}
		}
		color[id] = black
	}

	for _, id := range d.order {
		if color[id] == white {
			dfs(id)
			if hasCycle {
				return ErrGraphHasCycle
			}
		}
	}
	return nil
}

// reachable reports whether to can be reached from from along links.
func (d *DAG) reachable(from, to string) bool {
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == to {
			return true
		}
		for _, c := range d.outgoing[id] {
			if !seen[c] {
				seen[c] = true
				stack = append(stack, c)
			}
		}
	}
	return false
}

func (d *DAG) reindex() {
	d.outgoing = make(map[string][]string)
	d.incoming = make(map[string][]string)
	for _, l := range d.links {
		d.outgoing[l.From] = append(d.outgoing[l.From], l.To)
		d.incoming[l.To] = append(d.incoming[l.To], l.From)
	}
}

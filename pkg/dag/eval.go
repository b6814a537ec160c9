package dag

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// MarkDirty marks id and every node reachable from it as needing recompute.
func (d *DAG) MarkDirty(id string) {
	if _, ok := d.nodes[id]; !ok {
		return
	}
	for _, n := range d.descendants(id) {
		d.nodes[n].dirty = true
	}
}

// MarkAllDirty marks every node as needing recompute.
func (d *DAG) MarkAllDirty() {
	for _, e := range d.nodes {
		e.dirty = true
	}
}

// IsDirty reports whether the node needs recompute.
func (d *DAG) IsDirty(id string) bool {
	e, ok := d.nodes[id]
	return ok && e.dirty
}

// Dirty returns the IDs of all dirty nodes in insertion order.
func (d *DAG) Dirty() []string {
	var out []string
	for _, id := range d.order {
		if d.nodes[id].dirty {
			out = append(out, id)
		}
	}
	return out
}

// SetFrozen freezes or thaws a node. Frozen nodes keep their last outputs and
// are skipped by Update; thawing marks the node dirty.
func (d *DAG) SetFrozen(id string, frozen bool) error {
	e, ok := d.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}
	e.frozen = frozen
	if !frozen {
		d.MarkDirty(id)
	}
	return nil
}

// IsFrozen reports whether the node is frozen.
func (d *DAG) IsFrozen(id string) bool {
	e, ok := d.nodes[id]
	return ok && e.frozen
}

// TopoOrder returns node IDs in a topological order. Ties are broken by
// insertion order so the result is deterministic.
func (d *DAG) TopoOrder() []string {
	indeg := make(map[string]int, len(d.nodes))
	for _, id := range d.order {
		indeg[id] = len(d.incoming[id])
	}

	out := make([]string, 0, len(d.order))
	ready := make([]string, 0, len(d.order))
	for _, id := range d.order {
		if indeg[id] == 0 {
			ready = append(ready, id)
		}
	}
	pos := make(map[string]int, len(d.order))
	for i, id := range d.order {
		pos[id] = i
	}

	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)
		for _, c := range d.outgoing[id] {
			indeg[c]--
			if indeg[c] == 0 {
				ready = append(ready, c)
				slices.SortStableFunc(ready, func(a, b string) int { return pos[a] - pos[b] })
			}
		}
	}
	return out
}

// Update evaluates every dirty, non-frozen node in topological order.
//
// Before a node is computed its inputs are refreshed from the outputs of
// the linked upstream nodes. A failing node is still marked clean so that it
// is not retried until something upstream changes; failures never stop the
// remaining nodes from being evaluated. All failures are returned joined.
func (d *DAG) Update(ctx context.Context, fn ComputeFunc) error {
	return d.update(ctx, fn, nil)
}

// UpdateFrom marks id and its descendants dirty and evaluates only that
// reachable set.
func (d *DAG) UpdateFrom(ctx context.Context, id string, fn ComputeFunc) error {
	return d.UpdateReachable(ctx, []string{id}, fn)
}

// UpdateReachable marks every root and its descendants dirty and evaluates
// only nodes reachable from the roots. Dirty nodes elsewhere stay dirty.
func (d *DAG) UpdateReachable(ctx context.Context, roots []string, fn ComputeFunc) error {
	reach := make(map[string]bool)
	for _, id := range roots {
		if _, ok := d.nodes[id]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownNode, id)
		}
		d.MarkDirty(id)
		for _, r := range d.descendants(id) {
			reach[r] = true
		}
	}
	return d.update(ctx, fn, reach)
}

func (d *DAG) update(ctx context.Context, fn ComputeFunc, only map[string]bool) error {
	var failures []error
	for _, id := range d.TopoOrder() {
		e := d.nodes[id]
		if !e.dirty || e.frozen || (only != nil && !only[id]) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		d.pullInputs(id)
		if err := fn(ctx, id); err != nil {
			failures = append(failures, fmt.Errorf("node %s: %w", id, err))
		}
		e.dirty = false
	}
	return errors.Join(failures...)
}

// descendants returns id and every node reachable from it.
func (d *DAG) descendants(id string) []string {
	seen := map[string]bool{id: true}
	out := []string{id}
	for i := 0; i < len(out); i++ {
		for _, c := range d.outgoing[out[i]] {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

func (d *DAG) pullInputs(id string) {
	n := d.nodes[id].node
	for _, l := range d.links {
		if l.To != id {
			continue
		}
		if src, ok := d.nodes[l.From]; ok {
			n.SetInput(l.ToPort, src.node.Output(l.FromPort))
		}
	}
}

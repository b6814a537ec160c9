// Package layer implements a single layer: a node graph placed in world
// space by a frame.
//
// A [Layer] owns a [dag.DAG] of nodes created through a node factory. It is
// the only place that knows about cross-layer data flow: after a publisher
// node computes, the layer derives the node's tag and hands a snapshot to its
// [Sink] (the registry); subscriber nodes are bound to a resolver that reads
// snapshots back through the same sink.
//
// # State
//
// A layer is either [Clean] or [Dirty]. Any node, link, attribute or frame
// mutation makes it Dirty; [Layer.Update] recomputes every dirty node and
// makes it Clean again. Frame mutations never recompute on their own.
//
// # Events
//
// Node evaluations are bracketed by ComputeStarted and ComputeFinished events
// on the attached [event.Bus]. A layer without a bus or sink works standalone:
// publishes go nowhere and subscribers see no data.
//
// Layer is not safe for concurrent use.
package layer

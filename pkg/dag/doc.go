// Package dag provides the port-linked node graph evaluated inside a layer.
//
// # Overview
//
// Every layer owns one [DAG]. Nodes expose named input and output ports that
// carry scalar fields; a [Link] connects one output port to one input port.
// The graph stays acyclic at all times: [DAG.AddLink] rejects a link that
// would close a cycle before anything is committed, so a rejected link leaves
// the graph exactly as it was.
//
// # Evaluation
//
// Each node carries a dirty flag. Adding a node, linking into it or calling
// [DAG.MarkDirty] marks the node and everything downstream of it dirty.
// [DAG.Update] walks the graph in [DAG.TopoOrder], copies upstream outputs
// into the inputs of each dirty node and hands the node to a [ComputeFunc]:
//
//	g := dag.New()
//	g.AddNode(src)
//	g.AddNode(dst)
//	g.AddLink(dag.Link{From: "src", FromPort: "out", To: "dst", ToPort: "in"})
//	err := g.Update(ctx, func(ctx context.Context, id string) error {
//	    n, _ := g.Node(id)
//	    return compute(ctx, n)
//	})
//
// A failing node does not stop the pass. Every failure is collected and
// returned as a single joined error once all dirty nodes have been visited.
//
// Frozen nodes ([DAG.SetFrozen]) keep their last outputs and are skipped.
//
// # Errors
//
// Structural failures are returned as coded errors from pkg/errors wrapping
// the sentinels declared here, so callers can branch on either:
//
//	errors.Is(err, dag.ErrGraphHasCycle)
//	errs.Is(err, errs.ErrCodeCyclicGraph)
package dag

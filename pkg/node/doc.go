// Package node defines the computation nodes evaluated inside a layer graph.
//
// Every node implements [Node]: an identity, a kind name, named ports and a
// Compute method. Concrete kinds embed [Base], which stores ports and the
// shared model [Config].
//
// Two kinds take part in cross-layer data flow and are discovered by
// interface query rather than by kind name:
//
//   - [Publisher]: publishes a snapshot of its input under a tag after each
//     successful compute (the Broadcast kind)
//   - [Subscriber]: reads a published snapshot through a [Resolver] and
//     resamples it into its own layer's frame (the Receive kind)
//
// Nodes are created through a [Factory] keyed by kind name. An unknown kind
// yields an UNKNOWN_NODE_TYPE error the caller can recover from:
//
//	f := node.DefaultFactory()
//	n, err := f.New("Constant", "Constant#1", node.DefaultConfig())
package node

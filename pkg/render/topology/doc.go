// Package topology draws a project's layers, nodes and broadcasts as a
// Graphviz diagram.
//
// Each layer becomes a cluster, drawn bottom to top in registry order.
// Links inside a layer are solid edges labelled with their ports. Every
// subscription is drawn as a dashed edge from the publisher to the
// subscriber; subscriptions that order gating never refreshes (the
// publisher is not below the subscriber) are drawn in red.
//
//	dot := topology.ToDOT(reg, topology.Options{Detailed: true})
//	svg, err := topology.RenderSVG(ctx, dot)
//
// SVG rendering runs Graphviz in-process through
// [github.com/goccy/go-graphviz].
package topology

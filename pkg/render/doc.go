// Package render groups the diagram renderers.
//
// The only renderer is [topology], which draws a registry's layers, nodes,
// links and broadcast edges through Graphviz as DOT or SVG. The pipeline
// caches its output by document hash and format.
//
// [topology]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/render/topology
package render

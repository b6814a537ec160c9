package topology

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/stratum/pkg/broadcast"
	"github.com/matzehuels/stratum/pkg/layer"
	"github.com/matzehuels/stratum/pkg/node"
	"github.com/matzehuels/stratum/pkg/registry"
)

// Formats accepted by [Render].
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds node parameters to the labels.
	Detailed bool
}

// ToDOT converts the registry to Graphviz DOT source.
func ToDOT(r *registry.Registry, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph stratum {\n")
	buf.WriteString("  rankdir=BT;\n")
	buf.WriteString("  compound=true;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("  edge [fontsize=9];\n")

	layers := r.Layers()
	for i, l := range layers {
		writeCluster(&buf, i, l, opts)
	}

	buf.WriteString("\n")
	for i, l := range layers {
		for _, s := range l.Subscribers() {
			tag := s.Subscription()
			if tag == "" {
				continue
			}
			owner, _, pubID, ok := broadcast.SplitTag(tag)
			if !ok {
				continue
			}
			if _, exists := r.Table().Lookup(tag); !exists {
				continue
			}
			color := "darkgreen"
			if !slices.ContainsFunc(layers[:i], func(o *layer.Layer) bool { return o.ID() == owner }) {
				color = "red"
			}
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed, color=%s, constraint=false, label=%q];\n",
				nodeKey(owner, pubID), nodeKey(l.ID(), s.ID()), color, "broadcast")
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func writeCluster(buf *bytes.Buffer, index int, l *layer.Layer, opts Options) {
	fmt.Fprintf(buf, "\n  subgraph %q {\n", "cluster_"+l.ID())
	fmt.Fprintf(buf, "    label=%q;\n", fmt.Sprintf("%s [%d] %s", l.ID(), index, l.Frame()))
	buf.WriteString("    style=\"rounded\";\n")
	for _, n := range l.Nodes() {
		fmt.Fprintf(buf, "    %q [%s];\n", nodeKey(l.ID(), n.ID()), strings.Join(fmtAttrs(n, opts.Detailed), ", "))
	}
	for _, lk := range l.Links() {
		fmt.Fprintf(buf, "    %q -> %q [label=%q];\n",
			nodeKey(l.ID(), lk.From), nodeKey(l.ID(), lk.To), lk.FromPort+"→"+lk.ToPort)
	}
	buf.WriteString("  }\n")
}

func nodeKey(layerID, nodeID string) string { return layerID + "::" + nodeID }

func fmtLabel(n node.Node, detailed bool) string {
	label := n.ID() + "\n" + n.Kind()
	if !detailed {
		return label
	}
	attrs := n.Attrs()
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		label += fmt.Sprintf("\n%s: %v", k, attrs[k])
	}
	return label
}

func fmtAttrs(n node.Node, detailed bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", fmtLabel(n, detailed))}
	switch n.(type) {
	case node.Publisher:
		attrs = append(attrs, "fillcolor=lightblue")
	case node.Subscriber:
		attrs = append(attrs, "fillcolor=lightyellow", "style=\"rounded,filled,dashed\"")
	}
	return attrs
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

// Render produces the diagram in the given format.
func Render(ctx context.Context, r *registry.Registry, format string, opts Options) ([]byte, error) {
	dot := ToDOT(r, opts)
	switch format {
	case FormatDOT, "":
		return []byte(dot), nil
	case FormatSVG:
		return RenderSVG(ctx, dot)
	}
	return nil, fmt.Errorf("unsupported format %q (must be dot or svg)", format)
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the diagram scales with
// its container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}

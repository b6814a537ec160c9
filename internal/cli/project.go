package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/matzehuels/stratum/pkg/compositor"
	"github.com/matzehuels/stratum/pkg/document"
	errs "github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/frame"
	"github.com/matzehuels/stratum/pkg/node"
	"github.com/matzehuels/stratum/pkg/registry"
)

// =============================================================================
// Project files
// =============================================================================

// openProject loads the project file into a fresh registry. Per-item load
// problems are logged and otherwise ignored.
func (c *CLI) openProject(ctx context.Context) (*registry.Registry, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	doc, err := document.Import(c.project, c.Logger)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no project at %s (create one with 'stratum new')", c.project)
		}
		return nil, err
	}
	reg := registry.New(registry.WithLogger(c.Logger), registry.WithConfig(cfg.Model))
	logEvents(c.Logger, reg.Bus())
	if err := reg.Deserialize(ctx, doc); err != nil {
		c.Logger.Warn("project loaded with problems", "path", c.project, "err", err)
	}
	return reg, nil
}

// saveProject recomputes reg and writes it to the project file.
func (c *CLI) saveProject(ctx context.Context, reg *registry.Registry) error {
	if err := reg.Update(ctx); err != nil {
		c.Logger.Warn("recompute reported errors", "err", err)
	}
	if err := document.Export(c.project, reg.Serialize()); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	c.Logger.Debug("saved project", "path", c.project)
	return nil
}

// editProject opens the project, applies fn and saves.
func (c *CLI) editProject(ctx context.Context, fn func(*registry.Registry) error) error {
	reg, err := c.openProject(ctx)
	if err != nil {
		return err
	}
	if err := fn(reg); err != nil {
		return err
	}
	return c.saveProject(ctx, reg)
}

// =============================================================================
// Argument parsing
// =============================================================================

// parseShape parses "WxH".
func parseShape(s string) ([2]int, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return [2]int{}, errs.New(errs.ErrCodeInvalidInput, "shape %q: want WIDTHxHEIGHT", s)
	}
	nx, err1 := strconv.Atoi(w)
	ny, err2 := strconv.Atoi(h)
	if err1 != nil || err2 != nil {
		return [2]int{}, errs.New(errs.ErrCodeInvalidInput, "shape %q: want WIDTHxHEIGHT", s)
	}
	if err := errs.ValidateShape(nx, ny); err != nil {
		return [2]int{}, err
	}
	return [2]int{nx, ny}, nil
}

// parsePoint parses "X,Y".
func parsePoint(s string) (frame.Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return frame.Point{}, errs.New(errs.ErrCodeInvalidInput, "point %q: want X,Y", s)
	}
	x, err1 := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	y, err2 := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err1 != nil || err2 != nil {
		return frame.Point{}, errs.New(errs.ErrCodeInvalidInput, "point %q: want X,Y", s)
	}
	return frame.Point{X: x, Y: y}, nil
}

// parseSourceRef parses "layer/node[.port]"; the port defaults to "output".
func parseSourceRef(s string) (compositor.SourceRef, error) {
	layerID, rest, ok := strings.Cut(s, "/")
	if !ok || layerID == "" || rest == "" {
		return compositor.SourceRef{}, errs.New(errs.ErrCodeInvalidInput, "source %q: want LAYER/NODE[.PORT]", s)
	}
	nodeID, port := rest, node.PortOut
	if i := strings.LastIndex(rest, "."); i > 0 {
		nodeID, port = rest[:i], rest[i+1:]
	}
	return compositor.SourceRef{Layer: layerID, Node: nodeID, Port: port}, nil
}

// parseAttrs parses "key=value" pairs. Numbers become float64, "true" and
// "false" become bool, anything else stays a string.
func parseAttrs(pairs []string) (node.Attrs, error) {
	attrs := make(node.Attrs, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, errs.New(errs.ErrCodeInvalidInput, "attribute %q: want KEY=VALUE", p)
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			attrs[k] = f
		} else if b, err := strconv.ParseBool(v); err == nil && (v == "true" || v == "false") {
			attrs[k] = b
		} else {
			attrs[k] = v
		}
	}
	return attrs, nil
}

// parsePortRef parses "node.port".
func parsePortRef(s string) (nodeID, port string, err error) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return "", "", errs.New(errs.ErrCodeInvalidInput, "port %q: want NODE.PORT", s)
	}
	return s[:i], s[i+1:], nil
}

// parseTiling parses "WxH" tile counts, each at least 1.
func parseTiling(s string) ([2]int, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	nx, err1 := strconv.Atoi(w)
	ny, err2 := strconv.Atoi(h)
	if !ok || err1 != nil || err2 != nil || nx < 1 || ny < 1 {
		return [2]int{}, errs.New(errs.ErrCodeInvalidInput, "tiling %q: want COLSxROWS", s)
	}
	return [2]int{nx, ny}, nil
}

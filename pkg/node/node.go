package node

import (
	"context"
	"fmt"
	"math"

	"github.com/matzehuels/stratum/pkg/dag"
	"github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/field"
)

// Config is the model configuration shared by every node of a layer. It
// fixes the raster shape nodes produce and the tiling metadata carried on
// their fields.
type Config struct {
	Shape   [2]int  `json:"shape" toml:"shape" yaml:"shape"`
	Tiling  [2]int  `json:"tiling" toml:"tiling" yaml:"tiling"`
	Overlap float64 `json:"overlap" toml:"overlap" yaml:"overlap"`
}

// DefaultConfig returns a 256×256 single-tile configuration.
func DefaultConfig() Config {
	return Config{Shape: [2]int{256, 256}, Tiling: [2]int{1, 1}, Overlap: 0.25}
}

// Validate checks the shape and tiling.
func (c Config) Validate() error {
	if err := errors.ValidateShape(c.Shape[0], c.Shape[1]); err != nil {
		return err
	}
	if c.Tiling[0] < 1 || c.Tiling[1] < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "tiling must be at least 1x1, got %dx%d", c.Tiling[0], c.Tiling[1])
	}
	if c.Overlap < 0 || c.Overlap >= 1 || math.IsNaN(c.Overlap) {
		return errors.New(errors.ErrCodeInvalidInput, "overlap must be in [0,1), got %g", c.Overlap)
	}
	return nil
}

// Attrs holds node parameters by name. Values decoded from JSON arrive as
// float64, string or bool.
type Attrs map[string]any

// Node is a computation node with named field ports.
type Node interface {
	dag.Node

	// Kind is the factory name of the node, persisted as its label.
	Kind() string

	// Input returns the field currently bound to an input port.
	Input(port string) *field.Field

	// Compute recomputes every output from the current inputs.
	Compute(ctx context.Context) error

	// Attrs returns a copy of the node parameters.
	Attrs() Attrs

	// SetAttrs replaces known parameters. Unknown keys are ignored; a known
	// key with the wrong type is rejected with INVALID_INPUT.
	SetAttrs(a Attrs) error
}

// Base implements the bookkeeping part of [Node]. Concrete kinds embed it and
// provide Compute, plus Attrs/SetAttrs when they have parameters.
type Base struct {
	id      string
	kind    string
	inputs  []string
	outputs []string
	in      map[string]*field.Field
	out     map[string]*field.Field
	cfg     Config
}

// NewBase returns a Base with the given ports.
func NewBase(id, kind string, cfg Config, inputs, outputs []string) Base {
	return Base{
		id:      id,
		kind:    kind,
		inputs:  inputs,
		outputs: outputs,
		in:      make(map[string]*field.Field, len(inputs)),
		out:     make(map[string]*field.Field, len(outputs)),
		cfg:     cfg,
	}
}

func (b *Base) ID() string        { return b.id }
func (b *Base) SetID(id string)   { b.id = id }
func (b *Base) Kind() string      { return b.kind }
func (b *Base) Inputs() []string  { return b.inputs }
func (b *Base) Outputs() []string { return b.outputs }
func (b *Base) Config() Config    { return b.cfg }

func (b *Base) SetInput(port string, f *field.Field) { b.in[port] = f }
func (b *Base) Input(port string) *field.Field       { return b.in[port] }
func (b *Base) Output(port string) *field.Field      { return b.out[port] }

// SetOutput stores f on an output port.
func (b *Base) SetOutput(port string, f *field.Field) { b.out[port] = f }

// Attrs returns nil; kinds without parameters keep this default.
func (b *Base) Attrs() Attrs { return nil }

// SetAttrs ignores all keys.
func (b *Base) SetAttrs(Attrs) error { return nil }

// newField allocates an output field of the configured shape and tiling.
func (b *Base) newField() *field.Field {
	f := field.New(b.cfg.Shape[0], b.cfg.Shape[1])
	f.Tiling = b.cfg.Tiling
	f.Overlap = b.cfg.Overlap
	return f
}

// =============================================================================
// Attribute helpers
// =============================================================================

func floatAttr(a Attrs, key string, dst *float64) error {
	v, ok := a[key]
	if !ok {
		return nil
	}
	switch x := v.(type) {
	case float64:
		*dst = x
	case float32:
		*dst = float64(x)
	case int:
		*dst = float64(x)
	case int64:
		*dst = float64(x)
	default:
		return errors.New(errors.ErrCodeInvalidInput, "attribute %q: want number, got %T", key, v)
	}
	if math.IsNaN(*dst) || math.IsInf(*dst, 0) {
		return errors.New(errors.ErrCodeInvalidInput, "attribute %q is not finite", key)
	}
	return nil
}

func stringAttr(a Attrs, key string, dst *string) error {
	v, ok := a[key]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return errors.New(errors.ErrCodeInvalidInput, "attribute %q: want string, got %T", key, v)
	}
	*dst = s
	return nil
}

func describe(n Node) string { return fmt.Sprintf("%s(%s)", n.Kind(), n.ID()) }

package node

import (
	"context"
	"math"

	"github.com/matzehuels/stratum/pkg/errors"
)

// Kind names registered by [DefaultFactory].
const (
	KindConstant  = "Constant"
	KindGradient  = "Gradient"
	KindAdd       = "Add"
	KindScale     = "Scale"
	KindClamp     = "Clamp"
	KindBroadcast = "Broadcast"
	KindReceive   = "Receive"
)

// Port names shared by the built-in kinds.
const (
	PortIn  = "input"
	PortA   = "a"
	PortB   = "b"
	PortOut = "output"
)

// =============================================================================
// Constant
// =============================================================================

// Constant outputs a uniform field.
type Constant struct {
	Base
	Value float64
}

// NewConstant returns a Constant node producing zeros.
func NewConstant(id string, cfg Config) Node {
	return &Constant{Base: NewBase(id, KindConstant, cfg, nil, []string{PortOut})}
}

func (n *Constant) Compute(context.Context) error {
	out := n.newField()
	v := float32(n.Value)
	for i := range out.Data {
		out.Data[i] = v
	}
	n.SetOutput(PortOut, out)
	return nil
}

func (n *Constant) Attrs() Attrs { return Attrs{"value": n.Value} }

func (n *Constant) SetAttrs(a Attrs) error { return floatAttr(a, "value", &n.Value) }

// =============================================================================
// Gradient
// =============================================================================

// Gradient outputs a linear ramp from Lo to Hi along direction Angle (degrees,
// counter-clockwise from +x).
type Gradient struct {
	Base
	Angle, Lo, Hi float64
}

// NewGradient returns a Gradient ramping 0→1 along +x.
func NewGradient(id string, cfg Config) Node {
	return &Gradient{Base: NewBase(id, KindGradient, cfg, nil, []string{PortOut}), Hi: 1}
}

func (n *Gradient) Compute(context.Context) error {
	out := n.newField()
	rad := n.Angle * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	span := math.Abs(c) + math.Abs(s)
	for j := 0; j < out.NY; j++ {
		v := (float64(j)+0.5)/float64(out.NY) - 0.5
		for i := 0; i < out.NX; i++ {
			u := (float64(i)+0.5)/float64(out.NX) - 0.5
			t := (u*c+v*s)/span + 0.5
			out.Set(i, j, float32(n.Lo+(n.Hi-n.Lo)*t))
		}
	}
	n.SetOutput(PortOut, out)
	return nil
}

func (n *Gradient) Attrs() Attrs { return Attrs{"angle": n.Angle, "lo": n.Lo, "hi": n.Hi} }

func (n *Gradient) SetAttrs(a Attrs) error {
	for key, dst := range map[string]*float64{"angle": &n.Angle, "lo": &n.Lo, "hi": &n.Hi} {
		if err := floatAttr(a, key, dst); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Add
// =============================================================================

// Add outputs the cell-wise sum of its two inputs. With one input missing it
// passes the other through; with both missing it has no output.
type Add struct {
	Base
}

// NewAdd returns an Add node.
func NewAdd(id string, cfg Config) Node {
	return &Add{Base: NewBase(id, KindAdd, cfg, []string{PortA, PortB}, []string{PortOut})}
}

func (n *Add) Compute(context.Context) error {
	a, b := n.Input(PortA), n.Input(PortB)
	switch {
	case a == nil && b == nil:
		n.SetOutput(PortOut, nil)
	case a == nil:
		n.SetOutput(PortOut, b.Clone())
	case b == nil:
		n.SetOutput(PortOut, a.Clone())
	default:
		if !a.SameShape(b) {
			return errors.New(errors.ErrCodeInvalidInput, "%s: input shapes differ (%s vs %s)", describe(n), a, b)
		}
		out := a.Clone()
		for i := range out.Data {
			out.Data[i] += b.Data[i]
		}
		n.SetOutput(PortOut, out)
	}
	return nil
}

// =============================================================================
// Scale
// =============================================================================

// Scale outputs input*Factor + Offset.
type Scale struct {
	Base
	Factor, Offset float64
}

// NewScale returns an identity Scale node.
func NewScale(id string, cfg Config) Node {
	return &Scale{Base: NewBase(id, KindScale, cfg, []string{PortIn}, []string{PortOut}), Factor: 1}
}

func (n *Scale) Compute(context.Context) error {
	in := n.Input(PortIn)
	if in == nil {
		n.SetOutput(PortOut, nil)
		return nil
	}
	k, o := float32(n.Factor), float32(n.Offset)
	n.SetOutput(PortOut, in.Clone().Map(func(v float32) float32 { return v*k + o }))
	return nil
}

func (n *Scale) Attrs() Attrs { return Attrs{"factor": n.Factor, "offset": n.Offset} }

func (n *Scale) SetAttrs(a Attrs) error {
	if err := floatAttr(a, "factor", &n.Factor); err != nil {
		return err
	}
	return floatAttr(a, "offset", &n.Offset)
}

// =============================================================================
// Clamp
// =============================================================================

// Clamp limits its input to [Lo, Hi].
type Clamp struct {
	Base
	Lo, Hi float64
}

// NewClamp returns a Clamp node limiting to [0, 1].
func NewClamp(id string, cfg Config) Node {
	return &Clamp{Base: NewBase(id, KindClamp, cfg, []string{PortIn}, []string{PortOut}), Hi: 1}
}

func (n *Clamp) Compute(context.Context) error {
	if n.Lo > n.Hi {
		return errors.New(errors.ErrCodeInvalidInput, "%s: lo %g exceeds hi %g", describe(n), n.Lo, n.Hi)
	}
	in := n.Input(PortIn)
	if in == nil {
		n.SetOutput(PortOut, nil)
		return nil
	}
	lo, hi := float32(n.Lo), float32(n.Hi)
	n.SetOutput(PortOut, in.Clone().Map(func(v float32) float32 { return min(max(v, lo), hi) }))
	return nil
}

func (n *Clamp) Attrs() Attrs { return Attrs{"lo": n.Lo, "hi": n.Hi} }

func (n *Clamp) SetAttrs(a Attrs) error {
	if err := floatAttr(a, "lo", &n.Lo); err != nil {
		return err
	}
	return floatAttr(a, "hi", &n.Hi)
}

var (
	_ Node = (*Constant)(nil)
	_ Node = (*Gradient)(nil)
	_ Node = (*Add)(nil)
	_ Node = (*Scale)(nil)
	_ Node = (*Clamp)(nil)
)

// Package frame places layers in the shared world space.
//
// A [Frame] is an axis-aligned placement: an origin, a size and a rotation
// in degrees. Rotation is carried and persisted but not applied by any of
// the resampling paths; every mapping in this package is axis-aligned.
//
// Local coordinates are normalized to [0,1]² so that a raster of any shape
// can be addressed independently of its resolution:
//
//	f := frame.New(frame.Point{X: 10, Y: 5}, frame.Point{X: 2, Y: 1}, 0)
//	x, y := f.ToWorld(0.5, 0.5) // (11, 5.5)
//	u, v := f.ToLocal(x, y)     // (0.5, 0.5)
package frame

import (
	"fmt"
	"math"

	"github.com/matzehuels/stratum/pkg/errors"
)

// Point is a 2-D point or vector in world units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Frame is the placement of a layer in world space.
type Frame struct {
	Origin   Point
	Size     Point
	Rotation float64 // degrees, not applied by resampling
}

// Unit is the frame at the world origin with size (1,1).
var Unit = Frame{Size: Point{X: 1, Y: 1}}

// New returns a frame with the given origin, size and rotation.
func New(origin, size Point, rotation float64) Frame {
	return Frame{Origin: origin, Size: size, Rotation: rotation}
}

// Validate reports an INVALID_INPUT error when the size is not strictly positive
// or any component is not finite.
func (f Frame) Validate() error {
	for _, v := range []float64{f.Origin.X, f.Origin.Y, f.Size.X, f.Size.Y, f.Rotation} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New(errors.ErrCodeInvalidInput, "frame has non-finite component")
		}
	}
	if f.Size.X <= 0 || f.Size.Y <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "frame size must be positive, got (%g, %g)", f.Size.X, f.Size.Y)
	}
	return nil
}

// BBox returns [origin, origin+size]. Rotation is ignored.
func (f Frame) BBox() BBox {
	return BBox{
		XMin: f.Origin.X,
		XMax: f.Origin.X + f.Size.X,
		YMin: f.Origin.Y,
		YMax: f.Origin.Y + f.Size.Y,
	}
}

// Relative returns the box [0,0]–size, the frame's extent in its own
// coordinates with the origin dropped.
func (f Frame) Relative() BBox {
	return BBox{XMax: f.Size.X, YMax: f.Size.Y}
}

// ToWorld maps normalized local coordinates to world coordinates.
func (f Frame) ToWorld(u, v float64) (x, y float64) {
	return f.Origin.X + u*f.Size.X, f.Origin.Y + v*f.Size.Y
}

// ToLocal maps world coordinates to normalized local coordinates.
// Points outside the frame map outside [0,1].
func (f Frame) ToLocal(x, y float64) (u, v float64) {
	return (x - f.Origin.X) / f.Size.X, (y - f.Origin.Y) / f.Size.Y
}

// String implements fmt.Stringer.
func (f Frame) String() string {
	return fmt.Sprintf("origin=(%g,%g) size=(%g,%g) rot=%g",
		f.Origin.X, f.Origin.Y, f.Size.X, f.Size.Y, f.Rotation)
}

// FromBBox builds the frame covering b with zero rotation.
func FromBBox(b BBox) Frame {
	return Frame{
		Origin: Point{X: b.XMin, Y: b.YMin},
		Size:   Point{X: b.XMax - b.XMin, Y: b.YMax - b.YMin},
	}
}

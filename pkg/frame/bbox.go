package frame

import "math"

// BBox is an axis-aligned bounding box.
type BBox struct {
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
	YMin float64 `json:"ymin"`
	YMax float64 `json:"ymax"`
}

// Empty is the identity for Union: every box unioned with Empty is itself.
var Empty = BBox{
	XMin: math.Inf(1), XMax: math.Inf(-1),
	YMin: math.Inf(1), YMax: math.Inf(-1),
}

// Width returns XMax-XMin.
func (b BBox) Width() float64 { return b.XMax - b.XMin }

// Height returns YMax-YMin.
func (b BBox) Height() float64 { return b.YMax - b.YMin }

// Valid reports whether the box has a strictly positive area.
func (b BBox) Valid() bool { return b.XMax > b.XMin && b.YMax > b.YMin }

// Contains reports whether (x, y) lies inside b, edges included.
func (b BBox) Contains(x, y float64) bool {
	return x >= b.XMin && x <= b.XMax && y >= b.YMin && y <= b.YMax
}

// Union returns the componentwise min/max of b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		XMin: math.Min(b.XMin, o.XMin),
		XMax: math.Max(b.XMax, o.XMax),
		YMin: math.Min(b.YMin, o.YMin),
		YMax: math.Max(b.YMax, o.YMax),
	}
}

// Union folds boxes with [BBox.Union]. It returns [Empty] for no boxes.
func Union(boxes ...BBox) BBox {
	out := Empty
	for _, b := range boxes {
		out = out.Union(b)
	}
	return out
}

// Map converts a point expressed in box from into the normalized coordinates
// of box to. It is the frame-to-frame mapping used by resampling: a point at
// fraction (u, v) of from lands at the returned fraction of to.
func Map(from, to BBox, u, v float64) (float64, float64) {
	x := from.XMin + u*from.Width()
	y := from.YMin + v*from.Height()
	return (x - to.XMin) / to.Width(), (y - to.YMin) / to.Height()
}

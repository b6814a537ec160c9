package field

import (
	"fmt"
	"math"
)

// Field is a dense 2-D scalar grid. Data is row-major: index j*NX+i.
//
// The zero value is an empty field; use [New] to allocate one.
type Field struct {
	NX, NY  int
	Tiling  [2]int
	Overlap float64
	Data    []float32
}

// New allocates a zero-filled nx×ny field with a single tile.
func New(nx, ny int) *Field {
	return &Field{
		NX:     nx,
		NY:     ny,
		Tiling: [2]int{1, 1},
		Data:   make([]float32, nx*ny),
	}
}

// Constant allocates an nx×ny field filled with v.
func Constant(nx, ny int, v float32) *Field {
	f := New(nx, ny)
	for i := range f.Data {
		f.Data[i] = v
	}
	return f
}

// Shape returns (NX, NY).
func (f *Field) Shape() (int, int) { return f.NX, f.NY }

// At returns the sample at cell (i, j).
func (f *Field) At(i, j int) float32 { return f.Data[j*f.NX+i] }

// Set stores v at cell (i, j).
func (f *Field) Set(i, j int, v float32) { f.Data[j*f.NX+i] = v }

// Clone returns a deep copy. Clone of nil is nil.
func (f *Field) Clone() *Field {
	if f == nil {
		return nil
	}
	out := *f
	out.Data = make([]float32, len(f.Data))
	copy(out.Data, f.Data)
	return &out
}

// MinMax returns the smallest and largest sample.
// An empty field returns (0, 0).
func (f *Field) MinMax() (lo, hi float32) {
	if len(f.Data) == 0 {
		return 0, 0
	}
	lo, hi = f.Data[0], f.Data[0]
	for _, v := range f.Data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Mean returns the arithmetic mean of all samples.
func (f *Field) Mean() float64 {
	if len(f.Data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range f.Data {
		sum += float64(v)
	}
	return sum / float64(len(f.Data))
}

// Map applies fn to every sample in place and returns f.
func (f *Field) Map(fn func(float32) float32) *Field {
	for i, v := range f.Data {
		f.Data[i] = fn(v)
	}
	return f
}

// SameShape reports whether f and o have identical dimensions.
func (f *Field) SameShape(o *Field) bool {
	return f != nil && o != nil && f.NX == o.NX && f.NY == o.NY
}

// Equal reports whether f and o have the same shape and every sample differs
// by at most tol.
func (f *Field) Equal(o *Field, tol float64) bool {
	if !f.SameShape(o) {
		return false
	}
	for i := range f.Data {
		if math.Abs(float64(f.Data[i]-o.Data[i])) > tol {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (f *Field) String() string {
	if f == nil {
		return "field(nil)"
	}
	lo, hi := f.MinMax()
	return fmt.Sprintf("field(%dx%d, [%g, %g])", f.NX, f.NY, lo, hi)
}

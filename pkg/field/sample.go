package field

import (
	"math"

	"github.com/matzehuels/stratum/pkg/frame"
)

// Sample bilinearly interpolates f at normalized local coordinates (u, v).
// Coordinates outside [0,1]² are clamped to the nearest edge sample.
func (f *Field) Sample(u, v float64) float64 {
	x := clamp(u*float64(f.NX)-0.5, 0, float64(f.NX-1))
	y := clamp(v*float64(f.NY)-0.5, 0, float64(f.NY-1))

	i0, j0 := int(math.Floor(x)), int(math.Floor(y))
	i1, j1 := min(i0+1, f.NX-1), min(j0+1, f.NY-1)
	tx, ty := x-float64(i0), y-float64(j0)

	a := float64(f.At(i0, j0))*(1-tx) + float64(f.At(i1, j0))*tx
	b := float64(f.At(i0, j1))*(1-tx) + float64(f.At(i1, j1))*tx
	return a*(1-ty) + b*ty
}

// Resample produces an nx×ny field covering dst by sampling src, which covers
// srcBox. Each target cell is mapped through dst into src-local coordinates
// and bilinearly interpolated; cells falling outside srcBox take the nearest
// edge value.
func Resample(src *Field, srcBox, dst frame.BBox, nx, ny int) *Field {
	out := New(nx, ny)
	out.Tiling = src.Tiling
	out.Overlap = src.Overlap
	for j := 0; j < ny; j++ {
		v := (float64(j) + 0.5) / float64(ny)
		for i := 0; i < nx; i++ {
			u := (float64(i) + 0.5) / float64(nx)
			su, sv := frame.Map(dst, srcBox, u, v)
			out.Set(i, j, float32(src.Sample(su, sv)))
		}
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

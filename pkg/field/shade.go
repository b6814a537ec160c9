package field

import "math"

// Hillshade derives a shaded-relief field in [0,1] from an elevation field,
// lit from azimuth 315° at 45° altitude. zScale exaggerates relief; cells
// use unit spacing in normalized local units scaled by the grid size.
func Hillshade(f *Field, zScale float64) *Field {
	const (
		azimuth  = 315.0 * math.Pi / 180
		altitude = 45.0 * math.Pi / 180
	)
	zenith := math.Pi/2 - altitude

	out := New(f.NX, f.NY)
	out.Tiling, out.Overlap = f.Tiling, f.Overlap
	dx, dy := 1/float64(f.NX), 1/float64(f.NY)

	for j := 0; j < f.NY; j++ {
		for i := 0; i < f.NX; i++ {
			l := float64(f.At(max(i-1, 0), j))
			r := float64(f.At(min(i+1, f.NX-1), j))
			b := float64(f.At(i, max(j-1, 0)))
			t := float64(f.At(i, min(j+1, f.NY-1)))

			gx := zScale * (r - l) / (2 * dx)
			gy := zScale * (t - b) / (2 * dy)
			slope := math.Atan(math.Hypot(gx, gy))
			aspect := math.Atan2(gy, -gx)

			shade := math.Cos(zenith)*math.Cos(slope) +
				math.Sin(zenith)*math.Sin(slope)*math.Cos(azimuth-aspect)
			out.Set(i, j, float32(clamp(shade, 0, 1)))
		}
	}
	return out
}

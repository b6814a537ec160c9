// Package field provides the scalar-grid primitives the layer graphs compute on.
//
// A [Field] is a dense, row-major 2-D grid of float32 samples with the tiling
// and overlap metadata used by tiled evaluation. Cell (i, j) sits at the
// normalized local position ((i+0.5)/nx, (j+0.5)/ny), so a field of any
// resolution can be addressed through [Field.Sample] with coordinates in
// [0,1]².
//
// The package covers the numeric operations the orchestration layers rely on:
//
//   - [Resample]: bilinear frame-to-frame resampling between two boxes
//   - [Flatten]: multi-source compositing into one export grid, blended with
//     a feathered weight near each source's edge
//   - [Hillshade]: a shaded-relief preview derived from an elevation grid
//   - [WritePNG16] and [WritePNG8]: grayscale raster writers
//
// Flatten splits the output into row bands and evaluates them in parallel;
// the call still blocks until every band is done.
package field

// Package compositor flattens selected layer outputs into one raster.
//
// An export [Spec] names a list of (layer, node, port) sources, the output
// grid shape and tiling metadata. The export frame is the axis-aligned union
// of the participating layers' bounding boxes; every output cell is mapped
// to world space through that frame and sampled from the sources that cover
// it, with a feathered band along each source edge.
//
// [Compositor.Export] additionally writes two PNG files: the elevation as
// 16-bit grayscale and a hillshaded 8-bit preview next to it.
package compositor

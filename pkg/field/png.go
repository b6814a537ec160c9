package field

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
)

// WritePNG16 encodes f as a 16-bit grayscale PNG, normalized to the field's
// own [min, max]. Row j=0 is written at the bottom of the image.
func WritePNG16(w io.Writer, f *Field) error {
	img := image.NewGray16(image.Rect(0, 0, f.NX, f.NY))
	norm := normalizer(f)
	for j := 0; j < f.NY; j++ {
		for i := 0; i < f.NX; i++ {
			img.SetGray16(i, f.NY-1-j, color.Gray16{Y: uint16(math.Round(norm(f.At(i, j)) * math.MaxUint16))})
		}
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png16: %w", err)
	}
	return nil
}

// WritePNG8 encodes f as an 8-bit grayscale PNG, normalized like [WritePNG16].
func WritePNG8(w io.Writer, f *Field) error {
	img := image.NewGray(image.Rect(0, 0, f.NX, f.NY))
	norm := normalizer(f)
	for j := 0; j < f.NY; j++ {
		for i := 0; i < f.NX; i++ {
			img.SetGray(i, f.NY-1-j, color.Gray{Y: uint8(math.Round(norm(f.At(i, j)) * math.MaxUint8))})
		}
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png8: %w", err)
	}
	return nil
}

// normalizer maps the field's range onto [0,1]. A flat field maps to 0.
func normalizer(f *Field) func(float32) float64 {
	lo, hi := f.MinMax()
	span := float64(hi - lo)
	if span == 0 {
		return func(float32) float64 { return 0 }
	}
	return func(v float32) float64 { return clamp(float64(v-lo)/span, 0, 1) }
}

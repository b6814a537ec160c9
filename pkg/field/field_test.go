package field

import (
	"bytes"
	"context"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/stratum/pkg/frame"
)

// ramp returns an nx×ny field whose value is the cell's i index.
func ramp(nx, ny int) *Field {
	f := New(nx, ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			f.Set(i, j, float32(i))
		}
	}
	return f
}

func TestSampleConstant(t *testing.T) {
	f := Constant(8, 4, 3.5)
	for _, uv := range [][2]float64{{0, 0}, {0.5, 0.5}, {1, 1}, {-1, 2}} {
		assert.InDelta(t, 3.5, f.Sample(uv[0], uv[1]), 1e-6)
	}
}

func TestSampleBilinear(t *testing.T) {
	f := ramp(4, 4)
	// Cell centres sit at (i+0.5)/4.
	assert.InDelta(t, 0, f.Sample(0.125, 0.5), 1e-9)
	assert.InDelta(t, 1, f.Sample(0.375, 0.5), 1e-9)
	assert.InDelta(t, 0.5, f.Sample(0.25, 0.5), 1e-9)
	// Clamped beyond the last centre.
	assert.InDelta(t, 3, f.Sample(1, 0.5), 1e-9)
}

func TestResampleIdentity(t *testing.T) {
	src := ramp(6, 3)
	box := frame.BBox{XMax: 2, YMax: 1}
	out := Resample(src, box, box, 6, 3)
	assert.True(t, out.Equal(src, 1e-5))
}

func TestResampleHalfExtent(t *testing.T) {
	src := ramp(8, 2)
	// Target covers the left half of the source box.
	out := Resample(src, frame.BBox{XMax: 2, YMax: 1}, frame.BBox{XMax: 1, YMax: 1}, 4, 2)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, float64(i)*2+0.5, float64(out.At(i, 0)), 1e-5)
	}
}

func TestFlattenTiledConstants(t *testing.T) {
	left := Constant(16, 16, 1)
	right := Constant(16, 16, 5)
	frames := []frame.Frame{
		frame.New(frame.Point{}, frame.Point{X: 1, Y: 1}, 0),
		frame.New(frame.Point{X: 1}, frame.Point{X: 1, Y: 1}, 0),
	}
	export := frame.FromBBox(frame.Union(frames[0].BBox(), frames[1].BBox()))

	out, err := Flatten(context.Background(), []*Field{left, right}, frames, export, 64, 32)
	require.NoError(t, err)

	for j := 0; j < 32; j++ {
		for i := 0; i < 32; i++ {
			assert.InDelta(t, 1, float64(out.At(i, j)), 1e-4)
		}
		for i := 32; i < 64; i++ {
			assert.InDelta(t, 5, float64(out.At(i, j)), 1e-4)
		}
	}
}

func TestFlattenOverlapBlendsSmoothly(t *testing.T) {
	a := Constant(32, 32, 0)
	b := Constant(32, 32, 10)
	frames := []frame.Frame{
		frame.New(frame.Point{}, frame.Point{X: 1, Y: 1}, 0),
		frame.New(frame.Point{X: 0.5}, frame.Point{X: 1, Y: 1}, 0),
	}
	export := frame.FromBBox(frame.Union(frames[0].BBox(), frames[1].BBox()))

	out, err := Flatten(context.Background(), []*Field{a, b}, frames, export, 60, 20, WithBand(0.25))
	require.NoError(t, err)

	row := 10
	prev := -1.0
	for i := 0; i < 60; i++ {
		v := float64(out.At(i, row))
		assert.GreaterOrEqual(t, v, prev-1e-6, "blend must be monotone across the overlap")
		prev = v
	}
	assert.InDelta(t, 0, float64(out.At(2, row)), 1e-4)
	assert.InDelta(t, 10, float64(out.At(57, row)), 1e-4)
}

func TestFlattenUncoveredUsesFill(t *testing.T) {
	src := Constant(4, 4, 2)
	frames := []frame.Frame{frame.New(frame.Point{}, frame.Point{X: 1, Y: 1}, 0)}
	export := frame.New(frame.Point{X: 5, Y: 5}, frame.Point{X: 1, Y: 1}, 0)

	out, err := Flatten(context.Background(), []*Field{src}, frames, export, 4, 4, WithFill(-1))
	require.NoError(t, err)
	lo, hi := out.MinMax()
	assert.Equal(t, float32(-1), lo)
	assert.Equal(t, float32(-1), hi)
}

func TestFlattenRejectsMismatchedInputs(t *testing.T) {
	_, err := Flatten(context.Background(), []*Field{Constant(2, 2, 0)}, nil, frame.Unit, 2, 2)
	assert.Error(t, err)

	_, err = Flatten(context.Background(), []*Field{nil}, []frame.Frame{frame.Unit}, frame.Unit, 2, 2)
	assert.Error(t, err)
}

func TestFlattenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Flatten(ctx, []*Field{Constant(2, 2, 0)}, []frame.Frame{frame.Unit}, frame.Unit, 64, 64)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHillshadeFlat(t *testing.T) {
	shade := Hillshade(Constant(8, 8, 4), 1)
	want := math.Cos(math.Pi / 4)
	for _, v := range shade.Data {
		assert.InDelta(t, want, float64(v), 1e-6)
	}
}

func TestWritePNG(t *testing.T) {
	f := ramp(5, 3)

	var buf16 bytes.Buffer
	require.NoError(t, WritePNG16(&buf16, f))
	img, err := png.Decode(&buf16)
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())

	var buf8 bytes.Buffer
	require.NoError(t, WritePNG8(&buf8, Constant(2, 2, 1)))
	_, err = png.Decode(&buf8)
	require.NoError(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	f := Constant(2, 2, 1)
	c := f.Clone()
	c.Set(0, 0, 9)
	assert.Equal(t, float32(1), f.At(0, 0))
	assert.Nil(t, (*Field)(nil).Clone())
}

package frame

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/stratum/pkg/errors"
)

func TestBBoxIgnoresRotation(t *testing.T) {
	f := New(Point{X: 1, Y: 2}, Point{X: 3, Y: 4}, 45)
	assert.Equal(t, BBox{XMin: 1, XMax: 4, YMin: 2, YMax: 6}, f.BBox())
}

func TestUnionOverlappingFrames(t *testing.T) {
	a := New(Point{}, Point{X: 1, Y: 1}, 0)
	b := New(Point{X: 0.5, Y: 0.5}, Point{X: 1, Y: 1}, 0)

	got := Union(a.BBox(), b.BBox())
	assert.Equal(t, BBox{XMin: 0, XMax: 1.5, YMin: 0, YMax: 1.5}, got)
}

func TestUnionEmpty(t *testing.T) {
	got := Union()
	assert.False(t, got.Valid())
	assert.Equal(t, Empty, got)

	one := BBox{XMin: -1, XMax: 1, YMin: -2, YMax: 2}
	assert.Equal(t, one, Union(one))
}

func TestFromBBox(t *testing.T) {
	f := FromBBox(BBox{XMin: -1, XMax: 3, YMin: 2, YMax: 2.5})
	assert.Equal(t, Point{X: -1, Y: 2}, f.Origin)
	assert.Equal(t, Point{X: 4, Y: 0.5}, f.Size)
	assert.Zero(t, f.Rotation)
}

func TestLocalWorldRoundTrip(t *testing.T) {
	f := New(Point{X: 10, Y: 5}, Point{X: 2, Y: 1}, 0)

	x, y := f.ToWorld(0.5, 0.5)
	assert.InDelta(t, 11, x, 1e-12)
	assert.InDelta(t, 5.5, y, 1e-12)

	u, v := f.ToLocal(x, y)
	assert.InDelta(t, 0.5, u, 1e-12)
	assert.InDelta(t, 0.5, v, 1e-12)

	u, v = f.ToLocal(9, 5)
	assert.Less(t, u, 0.0)
	assert.InDelta(t, 0, v, 1e-12)
}

func TestRelative(t *testing.T) {
	f := New(Point{X: 7, Y: 8}, Point{X: 2, Y: 3}, 0)
	assert.Equal(t, BBox{XMax: 2, YMax: 3}, f.Relative())
}

func TestMap(t *testing.T) {
	src := BBox{XMax: 2, YMax: 2}
	dst := BBox{XMax: 1, YMax: 1}

	// The centre of a 1x1 target sits at a quarter of a 2x2 source.
	u, v := Map(dst, src, 0.5, 0.5)
	assert.InDelta(t, 0.25, u, 1e-12)
	assert.InDelta(t, 0.25, v, 1e-12)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Unit.Validate())

	err := New(Point{}, Point{X: 0, Y: 1}, 0).Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	err = New(Point{X: math.NaN()}, Point{X: 1, Y: 1}, 0).Validate()
	assert.Error(t, err)
}

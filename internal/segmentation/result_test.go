package segmentation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spheroid-editor/pkg/geometry"
)

func square(id string, x, y, size float64) Polygon {
	return Polygon{
		ID:   id,
		Kind: KindExternal,
		Points: []geometry.Point2D{
			{X: x, Y: y},
			{X: x + size, Y: y},
			{X: x + size, Y: y + size},
			{X: x, Y: y + size},
		},
	}
}

func TestSanitizeDropsInvalidPolygons(t *testing.T) {
	r := &Result{
		ImageID: "img1",
		Polygons: []Polygon{
			square("ok", 0, 0, 10),
			{ID: "too-few", Points: []geometry.Point2D{{X: 0, Y: 0}, {X: 1, Y: 1}}},
			{ID: "", Points: square("x", 0, 0, 5).Points},
			{ID: "nan", Points: []geometry.Point2D{{X: math.NaN(), Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}},
		},
	}

	r.Sanitize()

	require.Len(t, r.Polygons, 1)
	assert.Equal(t, "ok", r.Polygons[0].ID)
}

func TestSanitizeDefaultsKind(t *testing.T) {
	r := &Result{Polygons: []Polygon{
		{ID: "p1", Points: square("", 0, 0, 10).Points, Kind: ""},
		{ID: "p2", Points: square("", 20, 0, 10).Points, Kind: KindInternal},
	}}

	r.Sanitize()

	require.Len(t, r.Polygons, 2)
	assert.Equal(t, KindExternal, r.Polygons[0].Kind)
	assert.Equal(t, KindInternal, r.Polygons[1].Kind)
}

func TestResultLookupAndRemove(t *testing.T) {
	r := &Result{Polygons: []Polygon{square("a", 0, 0, 5), square("b", 10, 0, 5)}}

	require.NotNil(t, r.Polygon("b"))
	assert.Nil(t, r.Polygon("missing"))

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	require.Len(t, r.Polygons, 1)
	assert.Equal(t, "b", r.Polygons[0].ID)
}

func TestPolygonContains(t *testing.T) {
	p := square("a", 0, 0, 10)
	assert.True(t, p.Contains(geometry.Point2D{X: 5, Y: 5}))
	assert.False(t, p.Contains(geometry.Point2D{X: 15, Y: 5}))
}

package segmentation

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// maskWithHole draws a filled white square with a black hole punched in
// the middle, plus a tiny speckle blob that should be filtered out.
func maskWithHole() *image.Gray {
	m := image.NewGray(image.Rect(0, 0, 128, 128))
	for y := 20; y < 100; y++ {
		for x := 20; x < 100; x++ {
			m.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	for y := 50; y < 70; y++ {
		for x := 50; x < 70; x++ {
			m.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	for y := 110; y < 113; y++ {
		for x := 110; x < 113; x++ {
			m.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return m
}

func TestPolygonsFromMask(t *testing.T) {
	polygons, err := PolygonsFromMask(maskWithHole())
	require.NoError(t, err)
	require.Len(t, polygons, 2)

	var external, internal *Polygon
	for i := range polygons {
		switch polygons[i].Kind {
		case KindExternal:
			external = &polygons[i]
		case KindInternal:
			internal = &polygons[i]
		}
		assert.NotEmpty(t, polygons[i].ID)
	}
	require.NotNil(t, external)
	require.NotNil(t, internal)

	// The outline encloses roughly the 80x80 square; the hole roughly
	// the 20x20 cutout. Contour tracing follows pixel centers, so allow
	// a boundary's worth of slack.
	assert.InDelta(t, 80*80, external.Area(), 400)
	assert.InDelta(t, 20*20, internal.Area(), 100)
}

func TestPolygonsFromMaskRejectsEmpty(t *testing.T) {
	_, err := PolygonsFromMask(image.NewGray(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
}

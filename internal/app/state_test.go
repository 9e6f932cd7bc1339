package app

import (
	"context"
	goimage "image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spheroid-editor/internal/segmentation"
	"spheroid-editor/pkg/geometry"
)

type fakeInvalidator struct {
	invalidated []string
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, imageID string) {
	f.invalidated = append(f.invalidated, imageID)
}

func squarePoints(x, y, size float64) []geometry.Point2D {
	return []geometry.Point2D{
		{X: x, Y: y},
		{X: x + size, Y: y},
		{X: x + size, Y: y + size},
		{X: x, Y: y + size},
	}
}

func stateWithPolygon(t *testing.T) (*State, *fakeInvalidator, string) {
	t.Helper()
	s := NewState()
	inv := &fakeInvalidator{}
	s.SetThumbnailInvalidator(inv)

	id, err := s.CreatePolygon("img1", squarePoints(0, 0, 10))
	require.NoError(t, err)
	inv.invalidated = nil
	return s, inv, id
}

func TestCreatePolygonValidation(t *testing.T) {
	s := NewState()

	_, err := s.CreatePolygon("img1", squarePoints(0, 0, 10)[:2])
	assert.Error(t, err)

	id, err := s.CreatePolygon("img1", squarePoints(0, 0, 10))
	require.NoError(t, err)
	assert.True(t, s.HasPolygon("img1", id))
	assert.True(t, s.Modified)
}

func TestVertexEditing(t *testing.T) {
	s, _, id := stateWithPolygon(t)

	require.NoError(t, s.MoveVertex("img1", id, 0, geometry.Point2D{X: -5, Y: -5}))
	p := s.Segmentation("img1").Polygon(id)
	assert.Equal(t, geometry.Point2D{X: -5, Y: -5}, p.Points[0])

	require.NoError(t, s.InsertVertex("img1", id, 1, geometry.Point2D{X: 5, Y: -2}))
	p = s.Segmentation("img1").Polygon(id)
	require.Len(t, p.Points, 5)
	assert.Equal(t, geometry.Point2D{X: 5, Y: -2}, p.Points[1])

	require.NoError(t, s.RemoveVertex("img1", id, 1))
	assert.Len(t, s.Segmentation("img1").Polygon(id).Points, 4)

	assert.Error(t, s.MoveVertex("img1", id, 99, geometry.Point2D{}))
	assert.Error(t, s.MoveVertex("img1", "missing", 0, geometry.Point2D{}))
}

func TestRemoveVertexKeepsMinimumThree(t *testing.T) {
	s := NewState()
	id, err := s.CreatePolygon("img1", []geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 5, Y: 10}})
	require.NoError(t, err)

	assert.Error(t, s.RemoveVertex("img1", id, 0))
	assert.Len(t, s.Segmentation("img1").Polygon(id).Points, 3)
}

func TestDeletePolygon(t *testing.T) {
	s, inv, id := stateWithPolygon(t)

	require.NoError(t, s.DeletePolygon("img1", id))
	assert.False(t, s.HasPolygon("img1", id))
	assert.Equal(t, []string{"img1"}, inv.invalidated)

	assert.Error(t, s.DeletePolygon("img1", id))
}

func TestSlicePolygonSplitsInTwo(t *testing.T) {
	s, _, id := stateWithPolygon(t)

	// Vertical cut through the middle of the 10x10 square.
	leftID, rightID, err := s.SlicePolygon("img1", id,
		geometry.Point2D{X: 5, Y: -1}, geometry.Point2D{X: 5, Y: 11})
	require.NoError(t, err)

	r := s.Segmentation("img1")
	assert.Nil(t, r.Polygon(id))
	left := r.Polygon(leftID)
	right := r.Polygon(rightID)
	require.NotNil(t, left)
	require.NotNil(t, right)

	assert.InDelta(t, 100, left.Area()+right.Area(), 1e-6)
	assert.Equal(t, segmentation.KindExternal, left.Kind)
}

func TestSlicePolygonRejectsMiss(t *testing.T) {
	s, _, id := stateWithPolygon(t)

	_, _, err := s.SlicePolygon("img1", id,
		geometry.Point2D{X: 50, Y: -1}, geometry.Point2D{X: 50, Y: 11})
	assert.Error(t, err)
	assert.NotNil(t, s.Segmentation("img1").Polygon(id))
}

func TestSetSegmentationInvalidatesThumbnails(t *testing.T) {
	s := NewState()
	inv := &fakeInvalidator{}
	s.SetThumbnailInvalidator(inv)

	var changed []interface{}
	s.On(EventSegmentationChanged, func(data interface{}) { changed = append(changed, data) })

	s.SetSegmentation(&segmentation.Result{
		ImageID: "img1",
		Polygons: []segmentation.Polygon{
			{ID: "p1", Points: squarePoints(0, 0, 10), Kind: segmentation.KindExternal},
			{ID: "bad", Points: squarePoints(0, 0, 10)[:2]},
		},
	})

	// Replacement sanitizes, invalidates, and notifies.
	r := s.Segmentation("img1")
	require.Len(t, r.Polygons, 1)
	assert.Equal(t, []string{"img1"}, inv.invalidated)
	assert.Equal(t, []interface{}{"img1"}, changed)
}

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, goimage.NewRGBA(goimage.Rect(0, 0, 16, 16))))
}

func TestWorkspaceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "well_a1.png")
	writeTestPNG(t, imgPath)

	s := NewState()
	rec, err := s.AddImage(imgPath)
	require.NoError(t, err)
	_, err = s.CreatePolygon(rec.ID, squarePoints(1, 1, 5))
	require.NoError(t, err)

	wsPath := filepath.Join(dir, "plate.sphws")
	require.NoError(t, s.SaveWorkspace(wsPath))
	assert.False(t, s.Modified)

	loaded := NewState()
	require.NoError(t, loaded.LoadWorkspace(wsPath))

	images := loaded.Images()
	require.Len(t, images, 1)
	assert.Equal(t, rec.ID, images[0].ID)
	r := loaded.Segmentation(rec.ID)
	require.NotNil(t, r)
	assert.Len(t, r.Polygons, 1)
}

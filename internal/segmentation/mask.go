package segmentation

import (
	"fmt"
	"image"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"spheroid-editor/pkg/geometry"
)

// minMaskArea filters speckle contours out of backend masks, in square
// pixels.
const minMaskArea = 100.0

// PolygonsFromMask extracts polygon outlines from a binary mask image.
// White pixels are foreground. Top-level contours become external
// polygons, their direct children become internal ones (holes). Contours
// below the minimum area are discarded.
func PolygonsFromMask(mask image.Image) ([]Polygon, error) {
	bounds := mask.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("extracting polygons: empty mask")
	}

	// Flatten to a single-channel binary mat.
	data := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := mask.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			if r+g+b > 0 {
				data[y*w+x] = 255
			}
		}
	}

	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, data)
	if err != nil {
		return nil, fmt.Errorf("building mask mat: %w", err)
	}
	defer mat.Close()

	hierarchy := gocv.NewMat()
	defer hierarchy.Close()
	contours := gocv.FindContoursWithParams(mat, &hierarchy, gocv.RetrievalCComp, gocv.ChainApproxSimple)
	defer contours.Close()

	var polygons []Polygon
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if gocv.ContourArea(contour) < minMaskArea {
			continue
		}

		points := make([]geometry.Point2D, 0, contour.Size())
		for j := 0; j < contour.Size(); j++ {
			pt := contour.At(j)
			points = append(points, geometry.Point2D{X: float64(pt.X), Y: float64(pt.Y)})
		}
		if len(points) < 3 {
			continue
		}

		// RetrievalCComp yields a two-level hierarchy; a parent index
		// marks the contour as a hole.
		kind := KindExternal
		if hierarchy.Cols() > i {
			if parent := hierarchy.GetVeciAt(0, i)[3]; parent >= 0 {
				kind = KindInternal
			}
		}

		polygons = append(polygons, Polygon{
			ID:     uuid.NewString(),
			Points: points,
			Kind:   kind,
		})
	}

	return polygons, nil
}

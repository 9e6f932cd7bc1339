// Package segmentation holds the domain model for spheroid segmentation
// results: polygon outlines delivered by the ML backend, mask extraction,
// and shape measurements.
package segmentation

import (
	"log"

	"spheroid-editor/pkg/geometry"
)

// PolygonKind distinguishes outer spheroid outlines from holes.
type PolygonKind string

const (
	KindExternal PolygonKind = "external"
	KindInternal PolygonKind = "internal"
)

// Polygon is one closed outline in image pixel coordinates. Points are an
// implicit ring; the last vertex connects back to the first.
type Polygon struct {
	ID         string             `json:"id"`
	Points     []geometry.Point2D `json:"points"`
	Kind       PolygonKind        `json:"kind"`
	ClassLabel string             `json:"class_label,omitempty"`
}

// Area returns the polygon's enclosed area in square pixels.
func (p Polygon) Area() float64 {
	return geometry.PolygonArea(p.Points)
}

// Bounds returns the polygon's axis-aligned bounding box.
func (p Polygon) Bounds() geometry.Rect {
	return geometry.PolygonBounds(p.Points)
}

// Contains reports whether an image-space point lies inside the polygon.
func (p Polygon) Contains(pt geometry.Point2D) bool {
	return geometry.PointInPolygon(pt, p.Points)
}

// Result is the full segmentation output for one image. Width and height
// echo the dimensions the backend segmented, when it reports them.
type Result struct {
	ImageID     string    `json:"image_id"`
	ImageWidth  int       `json:"image_width,omitempty"`
	ImageHeight int       `json:"image_height,omitempty"`
	Polygons    []Polygon `json:"polygons"`
}

// Polygon returns the polygon with the given id, or nil.
func (r *Result) Polygon(id string) *Polygon {
	for i := range r.Polygons {
		if r.Polygons[i].ID == id {
			return &r.Polygons[i]
		}
	}
	return nil
}

// Remove deletes the polygon with the given id, reporting whether it was
// present.
func (r *Result) Remove(id string) bool {
	for i := range r.Polygons {
		if r.Polygons[i].ID == id {
			r.Polygons = append(r.Polygons[:i], r.Polygons[i+1:]...)
			return true
		}
	}
	return false
}

// Sanitize drops polygons that cannot be rendered or edited: fewer than
// three vertices, an empty id, or non-finite coordinates. Dropped entries
// are logged, valid ones are kept untouched.
func (r *Result) Sanitize() {
	kept := r.Polygons[:0]
	for _, p := range r.Polygons {
		if p.ID == "" {
			log.Printf("Segmentation: dropping polygon with empty id in image %s", r.ImageID)
			continue
		}
		if len(p.Points) < 3 {
			log.Printf("Segmentation: dropping degenerate polygon %s (%d points)", p.ID, len(p.Points))
			continue
		}
		finite := true
		for _, pt := range p.Points {
			if !pt.IsFinite() {
				finite = false
				break
			}
		}
		if !finite {
			log.Printf("Segmentation: dropping polygon %s with non-finite coordinates", p.ID)
			continue
		}
		if p.Kind != KindInternal {
			p.Kind = KindExternal
		}
		kept = append(kept, p)
	}
	r.Polygons = kept
}

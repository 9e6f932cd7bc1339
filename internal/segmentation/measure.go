package segmentation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"spheroid-editor/pkg/geometry"
)

// Measurements are the shape descriptors computed for one spheroid
// outline. All lengths are in pixels.
type Measurements struct {
	Area               float64          `json:"area"`
	Perimeter          float64          `json:"perimeter"`
	Circularity        float64          `json:"circularity"`
	EquivalentDiameter float64          `json:"equivalent_diameter"`
	FeretDiameter      float64          `json:"feret_diameter"`
	Solidity           float64          `json:"solidity"`
	Centroid           geometry.Point2D `json:"centroid"`
}

// Measure computes shape descriptors for a polygon outline. Degenerate
// polygons measure as zeros.
func Measure(p Polygon) Measurements {
	if len(p.Points) < 3 {
		return Measurements{}
	}

	area := geometry.PolygonArea(p.Points)
	perimeter := geometry.PolygonPerimeter(p.Points)

	m := Measurements{
		Area:      area,
		Perimeter: perimeter,
		Centroid:  geometry.PolygonCentroid(p.Points),
	}
	if perimeter > 0 {
		m.Circularity = 4 * math.Pi * area / (perimeter * perimeter)
	}
	m.EquivalentDiameter = math.Sqrt(4 * area / math.Pi)

	hull := geometry.ConvexHull(p.Points)
	m.FeretDiameter = feretDiameter(hull)
	if hullArea := geometry.PolygonArea(hull); hullArea > 0 {
		m.Solidity = area / hullArea
	}

	return m
}

// feretDiameter is the maximum caliper distance, taken over hull vertex
// pairs.
func feretDiameter(hull []geometry.Point2D) float64 {
	var max float64
	for i := 0; i < len(hull); i++ {
		for j := i + 1; j < len(hull); j++ {
			if d := hull[i].Distance(hull[j]); d > max {
				max = d
			}
		}
	}
	return max
}

// Summary aggregates one descriptor across a population of spheroids.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize computes population statistics over a set of values.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	s := Summary{
		Count: len(sorted),
		Mean:  stat.Mean(sorted, nil),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
	}
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	s.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	return s
}

// AreaSummary summarizes spheroid areas across a result, skipping holes.
func AreaSummary(r *Result) Summary {
	var areas []float64
	for _, p := range r.Polygons {
		if p.Kind == KindInternal {
			continue
		}
		areas = append(areas, Measure(p).Area)
	}
	return Summarize(areas)
}

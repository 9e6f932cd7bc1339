package geometry

import "math"

// PolygonBounds returns the axis-aligned bounding box of a point sequence.
func PolygonBounds(points []Point2D) Rect {
	if len(points) == 0 {
		return Rect{}
	}

	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY

	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// PolygonArea returns the unsigned area of a simple polygon (shoelace formula).
func PolygonArea(points []Point2D) float64 {
	if len(points) < 3 {
		return 0
	}

	var sum float64
	n := len(points)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += points[i].X*points[j].Y - points[j].X*points[i].Y
	}
	return math.Abs(sum) / 2
}

// PolygonPerimeter returns the total edge length of a closed polygon.
func PolygonPerimeter(points []Point2D) float64 {
	if len(points) < 2 {
		return 0
	}

	var total float64
	n := len(points)
	for i := 0; i < n; i++ {
		total += points[i].Distance(points[(i+1)%n])
	}
	return total
}

// PolygonCentroid returns the centroid of a simple polygon. Degenerate
// polygons (zero area) fall back to the vertex average.
func PolygonCentroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}

	var cx, cy, signed float64
	n := len(points)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := points[i].X*points[j].Y - points[j].X*points[i].Y
		signed += cross
		cx += (points[i].X + points[j].X) * cross
		cy += (points[i].Y + points[j].Y) * cross
	}

	if math.Abs(signed) < 1e-12 {
		var sx, sy float64
		for _, p := range points {
			sx += p.X
			sy += p.Y
		}
		return Point2D{X: sx / float64(n), Y: sy / float64(n)}
	}

	signed /= 2
	return Point2D{X: cx / (6 * signed), Y: cy / (6 * signed)}
}

// PointInPolygon reports whether the point lies inside the polygon,
// using the ray-casting rule.
func PointInPolygon(p Point2D, polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	n := len(polygon)
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := polygon[i], polygon[j]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

// ConvexHull computes the convex hull of a set of points using the
// monotone chain algorithm. Returns the hull in counter-clockwise order.
func ConvexHull(points []Point2D) []Point2D {
	if len(points) < 3 {
		return points
	}

	pts := make([]Point2D, len(points))
	copy(pts, points)

	// Sort lexicographically by X, then Y (insertion sort; inputs are small)
	for i := 1; i < len(pts); i++ {
		for j := i; j > 0 && (pts[j].X < pts[j-1].X ||
			(pts[j].X == pts[j-1].X && pts[j].Y < pts[j-1].Y)); j-- {
			pts[j], pts[j-1] = pts[j-1], pts[j]
		}
	}

	n := len(pts)
	hull := make([]Point2D, 0, 2*n)

	// Lower hull
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// Upper hull
	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	return hull[:len(hull)-1]
}

// SegmentIntersection returns the intersection point of segments a1-a2 and
// b1-b2, and whether they intersect within both segments.
func SegmentIntersection(a1, a2, b1, b2 Point2D) (Point2D, bool) {
	d1 := a2.Sub(a1)
	d2 := b2.Sub(b1)

	denom := d1.X*d2.Y - d1.Y*d2.X
	if math.Abs(denom) < 1e-12 {
		return Point2D{}, false // Parallel or collinear
	}

	diff := b1.Sub(a1)
	t := (diff.X*d2.Y - diff.Y*d2.X) / denom
	u := (diff.X*d1.Y - diff.Y*d1.X) / denom

	if t < 0 || t > 1 || u < 0 || u > 1 {
		return Point2D{}, false
	}

	return Point2D{X: a1.X + t*d1.X, Y: a1.Y + t*d1.Y}, true
}

// SlicePolygon splits a simple polygon along the line segment a-b. The cut
// must cross the polygon boundary exactly twice; otherwise the polygon is
// returned unchanged with ok=false. On success the two resulting vertex
// rings are returned.
func SlicePolygon(points []Point2D, a, b Point2D) (first, second []Point2D, ok bool) {
	if len(points) < 3 {
		return nil, nil, false
	}

	type cut struct {
		edge  int // Index of the edge's starting vertex
		point Point2D
	}

	var cuts []cut
	n := len(points)
	for i := 0; i < n; i++ {
		p, hit := SegmentIntersection(points[i], points[(i+1)%n], a, b)
		if hit {
			cuts = append(cuts, cut{edge: i, point: p})
		}
	}

	if len(cuts) != 2 {
		return nil, nil, false
	}

	c0, c1 := cuts[0], cuts[1]

	// Walk from the first cut to the second along the ring.
	first = append(first, c0.point)
	for i := (c0.edge + 1) % n; i != (c1.edge+1)%n; i = (i + 1) % n {
		first = append(first, points[i])
	}
	first = append(first, c1.point)

	// The remainder forms the second ring.
	second = append(second, c1.point)
	for i := (c1.edge + 1) % n; i != (c0.edge+1)%n; i = (i + 1) % n {
		second = append(second, points[i])
	}
	second = append(second, c0.point)

	if len(first) < 3 || len(second) < 3 {
		return nil, nil, false
	}
	return first, second, true
}

// cross returns the z-component of (b-a) x (c-a).
func cross(a, b, c Point2D) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

package geometry

import "math"

// simplifyMinPoints is the vertex count below which simplification is
// skipped entirely; small outlines are already cheap to render.
const simplifyMinPoints = 10

// ToleranceFor derives a simplification tolerance from image dimensions:
// 0.5% of the smaller dimension, so aggressiveness scales with resolution.
func ToleranceFor(width, height float64) float64 {
	m := math.Min(width, height)
	if m <= 0 {
		return 1.0
	}
	return m * 0.005
}

// Simplify reduces the vertex count of an outline using the Douglas-Peucker
// algorithm. The first and last points are always preserved and no dropped
// point deviates from the simplified outline by more than tolerance.
// Outlines with at most simplifyMinPoints vertices are returned unchanged.
func Simplify(points []Point2D, tolerance float64) []Point2D {
	if len(points) <= simplifyMinPoints || tolerance <= 0 {
		return points
	}
	return douglasPeucker(points, tolerance)
}

// douglasPeucker recursively simplifies a point chain.
func douglasPeucker(points []Point2D, epsilon float64) []Point2D {
	if len(points) <= 2 {
		return points
	}

	// Find point with maximum distance from line between first and last points
	dmax := 0.0
	index := 0
	end := len(points) - 1

	for i := 1; i < end; i++ {
		d := perpendicularDistance(points[i], points[0], points[end])
		if d > dmax {
			dmax = d
			index = i
		}
	}

	// If max distance is greater than epsilon, recursively simplify
	if dmax > epsilon {
		left := douglasPeucker(points[:index+1], epsilon)
		right := douglasPeucker(points[index:], epsilon)

		// Build result (avoid duplicating the split point)
		result := make([]Point2D, 0, len(left)+len(right)-1)
		result = append(result, left[:len(left)-1]...)
		result = append(result, right...)
		return result
	}

	// All points between first and last are within epsilon
	return []Point2D{points[0], points[end]}
}

// perpendicularDistance calculates the perpendicular distance from point p
// to the line through a and b.
func perpendicularDistance(p, a, b Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y

	if dx == 0 && dy == 0 {
		return p.Distance(a)
	}

	num := math.Abs(dy*p.X - dx*p.Y + b.X*a.Y - b.Y*a.X)
	den := math.Sqrt(dx*dx + dy*dy)
	return num / den
}

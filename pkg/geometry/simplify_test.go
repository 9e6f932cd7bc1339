package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// circlePoints generates n points on a circle of the given radius around (cx, cy).
func circlePoints(n int, cx, cy, radius float64) []Point2D {
	points := make([]Point2D, n)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		points[i] = Point2D{
			X: cx + radius*math.Cos(angle),
			Y: cy + radius*math.Sin(angle),
		}
	}
	return points
}

// maxDeviation returns the maximum distance from any original point to the
// nearest segment of the simplified outline.
func maxDeviation(original, simplified []Point2D) float64 {
	var worst float64
	for _, p := range original {
		best := math.Inf(1)
		for i := 0; i < len(simplified)-1; i++ {
			d := pointToSegment(p, simplified[i], simplified[i+1])
			if d < best {
				best = d
			}
		}
		if best > worst {
			worst = best
		}
	}
	return worst
}

func pointToSegment(p, a, b Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	if dx == 0 && dy == 0 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return p.Distance(Point2D{X: a.X + t*dx, Y: a.Y + t*dy})
}

func TestSimplifySmallOutlineUnchanged(t *testing.T) {
	tri := []Point2D{{0, 0}, {10, 0}, {5, 8}}
	assert.Equal(t, tri, Simplify(tri, 5.0))

	ten := circlePoints(10, 0, 0, 100)
	assert.Equal(t, ten, Simplify(ten, 50.0))
}

func TestSimplifyNeverIncreasesPointCount(t *testing.T) {
	points := circlePoints(50, 100, 100, 80)
	simplified := Simplify(points, 2.0)
	assert.LessOrEqual(t, len(simplified), len(points))
}

func TestSimplifyPreservesEndpoints(t *testing.T) {
	points := circlePoints(120, 500, 500, 300)
	simplified := Simplify(points, 4.0)
	require.GreaterOrEqual(t, len(simplified), 2)
	assert.Equal(t, points[0], simplified[0])
	assert.Equal(t, points[len(points)-1], simplified[len(simplified)-1])
}

func TestSimplifyIdempotent(t *testing.T) {
	points := circlePoints(200, 500, 500, 400)
	once := Simplify(points, 5.0)
	twice := Simplify(once, 5.0)
	assert.Equal(t, once, twice)
}

func TestSimplifyCircleReduction(t *testing.T) {
	// 200-point near-circular outline on a 1000x1000 image; tolerance is
	// 0.5% of the smaller dimension.
	points := circlePoints(200, 500, 500, 400)
	tol := ToleranceFor(1000, 1000)
	require.InDelta(t, 5.0, tol, 1e-9)

	simplified := Simplify(points, tol)
	assert.LessOrEqual(t, len(simplified), len(points)/2,
		"expected at least 50%% reduction, got %d of %d", len(simplified), len(points))
	assert.LessOrEqual(t, maxDeviation(points, simplified), tol+1e-9)
}

func TestSimplifyCollinearCollapse(t *testing.T) {
	points := make([]Point2D, 20)
	for i := range points {
		points[i] = Point2D{X: float64(i), Y: 0}
	}
	simplified := Simplify(points, 0.5)
	assert.Equal(t, []Point2D{{0, 0}, {19, 0}}, simplified)
}

func TestToleranceForScalesWithResolution(t *testing.T) {
	assert.InDelta(t, 2.5, ToleranceFor(500, 800), 1e-9)
	assert.InDelta(t, 10.0, ToleranceFor(4000, 2000), 1e-9)
	assert.Equal(t, 1.0, ToleranceFor(0, 0))
}

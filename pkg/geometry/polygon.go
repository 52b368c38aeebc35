package geometry

import "math"

const onEdgeEpsilon = 1e-9

// EffectiveVertices returns the number of distinct vertices in the polygon.
// Repeated consecutive points collapse; a quadrilateral recorded with a
// duplicated corner counts as 3.
func EffectiveVertices(polygon []Point) int {
	if len(polygon) == 0 {
		return 0
	}
	distinct := 0
	for i, p := range polygon {
		prev := polygon[(i+len(polygon)-1)%len(polygon)]
		if p != prev || len(polygon) == 1 {
			distinct++
		}
	}
	return distinct
}

// Contains tests whether p lies inside the polygon using ray casting.
// The test is inclusive: a point exactly on an edge or vertex counts as
// inside, matching OpenCV's pointPolygonTest >= 0 convention.
func Contains(polygon []Point, p Point) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}

	for i := 0; i < n; i++ {
		if onSegment(polygon[i], polygon[(i+1)%n], p) {
			return true
		}
	}

	inside := false
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		pi, pj := polygon[i], polygon[j]
		if ((pi.Y > p.Y) != (pj.Y > p.Y)) &&
			(p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
	}
	return inside
}

// onSegment reports whether p lies on the closed segment a-b.
func onSegment(a, b, p Point) bool {
	cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	if math.Abs(cross) > onEdgeEpsilon*math.Max(1, a.Distance(b)) {
		return false
	}
	return p.X >= math.Min(a.X, b.X)-onEdgeEpsilon && p.X <= math.Max(a.X, b.X)+onEdgeEpsilon &&
		p.Y >= math.Min(a.Y, b.Y)-onEdgeEpsilon && p.Y <= math.Max(a.Y, b.Y)+onEdgeEpsilon
}

// Centroid computes the area centroid of a simple polygon. Degenerate
// polygons (zero signed area) fall back to the vertex mean so label
// placement still lands somewhere sensible.
func Centroid(polygon []Point) Point {
	n := len(polygon)
	if n == 0 {
		return Point{}
	}

	var area, cx, cy float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := polygon[i].X*polygon[j].Y - polygon[j].X*polygon[i].Y
		area += cross
		cx += (polygon[i].X + polygon[j].X) * cross
		cy += (polygon[i].Y + polygon[j].Y) * cross
	}

	if math.Abs(area) < onEdgeEpsilon {
		var sumX, sumY float64
		for _, p := range polygon {
			sumX += p.X
			sumY += p.Y
		}
		return Point{X: sumX / float64(n), Y: sumY / float64(n)}
	}

	area *= 0.5
	return Point{X: cx / (6 * area), Y: cy / (6 * area)}
}

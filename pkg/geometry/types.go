// Package geometry provides the planar primitives used by the occupancy
// pipeline. All coordinates are pixels in the video source's native
// resolution; nothing here knows about display scaling.
package geometry

import (
	"image"
	"math"
)

// Point is a 2D point with floating-point coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt creates a new Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// FromImagePoint converts an image.Point to a Point.
func FromImagePoint(p image.Point) Point {
	return Point{X: float64(p.X), Y: float64(p.Y)}
}

// ToImagePoint converts to an image.Point, truncating toward zero.
func (p Point) ToImagePoint() image.Point {
	return image.Pt(int(p.X), int(p.Y))
}

// Distance returns the Euclidean distance to another point.
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// RectCenter returns the center of an axis-aligned rectangle.
func RectCenter(r image.Rectangle) Point {
	return Point{
		X: float64(r.Min.X+r.Max.X) / 2,
		Y: float64(r.Min.Y+r.Max.Y) / 2,
	}
}

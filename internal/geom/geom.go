// Package geom has the small planar types shared by corner detection,
// perspective correction and overlays.
package geom

import "math"

// Point is a position in image space. Y grows downward.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quad is a quadrilateral in [topLeft, topRight, bottomRight, bottomLeft]
// order, i.e. clockwise on screen.
type Quad [4]Point

// Corner indices into a Quad.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// CornerNames maps corner indices to their JSON-facing names.
var CornerNames = [4]string{"top_left", "top_right", "bottom_right", "bottom_left"}

// CornerIndex returns the index for a corner name, or -1.
func CornerIndex(name string) int {
	for i, n := range CornerNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Rect returns the full-frame quad of a w×h image: (0,0),(w,0),(w,h),(0,h).
func Rect(w, h float64) Quad {
	return Quad{{0, 0}, {w, 0}, {w, h}, {0, h}}
}

// Centroid returns the mean of pts. It returns the zero Point for an empty
// slice.
func Centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(pts))
	return Point{X: c.X / n, Y: c.Y / n}
}

// Clamp limits p to the closed rectangle [0,w]×[0,h].
func (p Point) Clamp(w, h float64) Point {
	return Point{X: math.Max(0, math.Min(p.X, w)), Y: math.Max(0, math.Min(p.Y, h))}
}

// Area returns the absolute area of q by the shoelace formula.
func (q Quad) Area() float64 {
	var s float64
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		s += q[i].X*q[j].Y - q[j].X*q[i].Y
	}
	return math.Abs(s) / 2
}

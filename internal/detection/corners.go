package detection

import (
	"math"
	"sort"

	"github.com/ironsheep/docscan-mcp/internal/geom"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
	"github.com/ironsheep/docscan-mcp/internal/raster"
)

// Line deduplication tolerances.
const (
	DuplicateRho   = 10.0
	DuplicateTheta = 5 * math.Pi / 180
)

// FrameMargin is how far outside the image, as a fraction of each
// dimension, an intersection may fall and still count as a corner.
const FrameMargin = 0.1

// Params controls corner detection.
type Params struct {
	EdgeLow        float64
	EdgeHigh       float64
	HoughThreshold int
}

// DefaultParams returns the thresholds used for document corners.
func DefaultParams() Params {
	return Params{EdgeLow: 50, EdgeHigh: 150, HoughThreshold: 80}
}

// Result describes one corner detection run.
type Result struct {
	Corners       geom.Quad    `json:"corners"`
	Fallback      bool         `json:"fallback"`
	EdgePoints    int          `json:"edge_points"`
	LineCount     int          `json:"line_count"`
	Lines         []Line       `json:"lines"`
	Intersections []geom.Point `json:"intersections"`
	ParallelPairs int          `json:"parallel_pairs"`
}

// FilterDocumentLines picks up to four candidate document edges from lines,
// which must be sorted by votes, strongest first.
//
// Near-duplicates of a stronger line (within DuplicateRho and
// DuplicateTheta, wrapping θ≈0 onto θ≈π) are dropped first. The rest are
// split by θ into [0°,45°)∪[135°,180°) and [45°,135°) and the two
// strongest of each group are kept, first group first. Fewer than four
// input lines are returned as given.
func FilterDocumentLines(lines []Line) []Line {
	if len(lines) < 4 {
		return append([]Line(nil), lines...)
	}

	var first, second []Line
	for _, l := range dedupeLines(lines) {
		// Hough θ values are whole degrees; the epsilon keeps 45° and 135°
		// on the right side of the boundary despite float rounding.
		deg := l.Degrees() + 1e-9
		if deg < 45 || deg >= 135 {
			if len(first) < 2 {
				first = append(first, l)
			}
		} else if len(second) < 2 {
			second = append(second, l)
		}
	}
	return append(first, second...)
}

func dedupeLines(lines []Line) []Line {
	kept := make([]Line, 0, len(lines))
	for _, l := range lines {
		dup := false
		for _, k := range kept {
			if nearDuplicate(l, k) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, l)
		}
	}
	return kept
}

func nearDuplicate(a, b Line) bool {
	dTheta := math.Abs(a.Theta - b.Theta)
	if dTheta <= DuplicateTheta {
		return math.Abs(a.Rho-b.Rho) <= DuplicateRho
	}
	// (ρ, θ) and (-ρ, θ-π) are the same line.
	if math.Pi-dTheta <= DuplicateTheta {
		return math.Abs(a.Rho+b.Rho) <= DuplicateRho
	}
	return false
}

// Intersect returns the crossing point of two lines. ok is false when the
// lines are parallel (|det| < 1e-10).
func Intersect(a, b Line) (p geom.Point, ok bool) {
	cos1, sin1 := math.Cos(a.Theta), math.Sin(a.Theta)
	cos2, sin2 := math.Cos(b.Theta), math.Sin(b.Theta)

	det := cos1*sin2 - sin1*cos2
	if math.Abs(det) < 1e-10 {
		return geom.Point{}, false
	}
	return geom.Point{
		X: (sin2*a.Rho - sin1*b.Rho) / det,
		Y: (cos1*b.Rho - cos2*a.Rho) / det,
	}, true
}

// ComputeIntersections intersects every pair of lines in (i, j>i) order.
// It also returns how many pairs were skipped as parallel.
func ComputeIntersections(lines []Line) (points []geom.Point, parallel int) {
	for i := 0; i < len(lines); i++ {
		for j := i + 1; j < len(lines); j++ {
			p, ok := Intersect(lines[i], lines[j])
			if !ok {
				parallel++
				continue
			}
			points = append(points, p)
		}
	}
	return points, parallel
}

// SortCorners orders four points as topLeft, topRight, bottomRight,
// bottomLeft. Any other count yields the w×h image frame and fallback=true.
//
// Points are assigned to quadrants around their centroid; when several
// share a quadrant the first one wins. If a quadrant ends up empty, as
// happens when points sit on the centroid axes, the points are instead
// taken clockwise by angle starting from the one with the smallest x+y
// (ties: smaller y). Either way the result depends only on the set of
// points, not their order.
func SortCorners(points []geom.Point, w, h float64) (q geom.Quad, fallback bool) {
	if len(points) != 4 {
		return geom.Rect(w, h), true
	}

	c := geom.Centroid(points)
	var filled [4]bool
	for _, p := range points {
		idx := -1
		switch {
		case p.X < c.X && p.Y < c.Y:
			idx = geom.TopLeft
		case p.X > c.X && p.Y < c.Y:
			idx = geom.TopRight
		case p.X > c.X && p.Y > c.Y:
			idx = geom.BottomRight
		case p.X < c.X && p.Y > c.Y:
			idx = geom.BottomLeft
		}
		if idx >= 0 && !filled[idx] {
			q[idx] = p
			filled[idx] = true
		}
	}
	if filled[0] && filled[1] && filled[2] && filled[3] {
		return q, false
	}
	return sortClockwise(points, c), false
}

func sortClockwise(points []geom.Point, c geom.Point) geom.Quad {
	pts := append([]geom.Point(nil), points...)
	// With y pointing down, increasing atan2 angle is clockwise on screen.
	sort.Slice(pts, func(i, j int) bool {
		ai := math.Atan2(pts[i].Y-c.Y, pts[i].X-c.X)
		aj := math.Atan2(pts[j].Y-c.Y, pts[j].X-c.X)
		if ai != aj {
			return ai < aj
		}
		return geom.Distance(pts[i], c) < geom.Distance(pts[j], c)
	})

	start := 0
	for i, p := range pts {
		s, best := p.X+p.Y, pts[start].X+pts[start].Y
		if s < best || (s == best && p.Y < pts[start].Y) {
			start = i
		}
	}

	var q geom.Quad
	for i := range q {
		q[i] = pts[(start+i)%len(pts)]
	}
	return q
}

// inFrame drops points further than FrameMargin outside a w×h image. Two
// nearly parallel edges of the same document cross far away from it.
func inFrame(points []geom.Point, w, h float64) []geom.Point {
	mx, my := w*FrameMargin, h*FrameMargin
	var out []geom.Point
	for _, p := range points {
		if p.X >= -mx && p.X <= w+mx && p.Y >= -my && p.Y <= h+my {
			out = append(out, p)
		}
	}
	return out
}

// DetectCorners finds the document quadrilateral in src: Canny edges,
// Hough lines, line filtering, pairwise intersections, corner sort. When
// four corners cannot be found the image frame is returned with
// Fallback set. The only error is an invalid src.
func DetectCorners(src *raster.Buffer, c imaging.Convolver, p Params) (*Result, error) {
	points, err := imaging.NewCanny(c).Detect(src, p.EdgeLow, p.EdgeHigh)
	if err != nil {
		return nil, err
	}

	lines := HoughLines(points, src.Width, src.Height, p.HoughThreshold)
	candidates := FilterDocumentLines(lines)

	w, h := float64(src.Width), float64(src.Height)
	crossings, parallel := ComputeIntersections(candidates)
	crossings = inFrame(crossings, w, h)

	corners, fallback := SortCorners(crossings, w, h)
	return &Result{
		Corners:       corners,
		Fallback:      fallback,
		EdgePoints:    len(points),
		LineCount:     len(lines),
		Lines:         candidates,
		Intersections: crossings,
		ParallelPairs: parallel,
	}, nil
}

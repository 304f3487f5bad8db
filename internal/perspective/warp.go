package perspective

import (
	"math"

	"github.com/ironsheep/docscan-mcp/internal/geom"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
	"github.com/ironsheep/docscan-mcp/internal/raster"
)

// Default output size of a corrected document.
const (
	DefaultWidth  = 800
	DefaultHeight = 1000
)

// boundsEpsilon absorbs float noise on samples that land exactly on the
// left or top edge of the source.
const boundsEpsilon = 1e-9

// WarpStats counts the destination pixels that could not be sampled
// normally.
type WarpStats struct {
	// Degenerate pixels had a projective denominator of ~0 and were read
	// from source (0, 0).
	Degenerate int `json:"degenerate"`
	// OutOfBounds pixels mapped outside the source, or to a NaN or
	// infinite coordinate, and stay transparent.
	OutOfBounds int `json:"out_of_bounds"`
}

// Add accumulates o into s.
func (s *WarpStats) Add(o WarpStats) {
	s.Degenerate += o.Degenerate
	s.OutOfBounds += o.OutOfBounds
}

// Warper renders a w×h destination by sampling src through m, which maps
// destination coordinates to source coordinates.
type Warper interface {
	Warp(src *raster.Buffer, m Matrix, w, h int) (*raster.Buffer, WarpStats, error)
}

// ReferenceWarper renders one row after another.
type ReferenceWarper struct{}

// Warp implements Warper.
func (ReferenceWarper) Warp(src *raster.Buffer, m Matrix, w, h int) (*raster.Buffer, WarpStats, error) {
	if err := src.Validate(); err != nil {
		return nil, WarpStats{}, err
	}
	dst, err := raster.New(w, h)
	if err != nil {
		return nil, WarpStats{}, err
	}

	var stats WarpStats
	for y := 0; y < h; y++ {
		stats.Add(WarpRow(src, dst, m, y))
	}
	return dst, stats, nil
}

// WarpRow fills row y of dst. Rows are independent, so callers may render
// them concurrently.
func WarpRow(src, dst *raster.Buffer, m Matrix, y int) WarpStats {
	var stats WarpStats
	sw, sh := float64(src.Width), float64(src.Height)

	for x := 0; x < dst.Width; x++ {
		sx, sy, ok := m.Apply(float64(x), float64(y))
		if !ok {
			stats.Degenerate++
		}
		if sx < 0 && sx > -boundsEpsilon {
			sx = 0
		}
		if sy < 0 && sy > -boundsEpsilon {
			sy = 0
		}
		// NaN fails every comparison, so it is rejected explicitly.
		if math.IsNaN(sx) || math.IsNaN(sy) || sx < 0 || sx >= sw || sy < 0 || sy >= sh {
			stats.OutOfBounds++
			continue
		}

		r, g, b := Bilinear(src, sx, sy)
		o := dst.Offset(x, y)
		dst.Pix[o] = r
		dst.Pix[o+1] = g
		dst.Pix[o+2] = b
		dst.Pix[o+3] = 255
	}
	return stats
}

// Bilinear interpolates the colour channels of src at (x, y), which must
// lie inside the image. Reads past the last row or column are clamped.
func Bilinear(src *raster.Buffer, x, y float64) (r, g, b uint8) {
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	x1, y1 := x0+1, y0+1
	if x1 >= src.Width {
		x1 = src.Width - 1
	}
	if y1 >= src.Height {
		y1 = src.Height - 1
	}
	fx, fy := x-float64(x0), y-float64(y0)

	p00 := src.Offset(x0, y0)
	p10 := src.Offset(x1, y0)
	p01 := src.Offset(x0, y1)
	p11 := src.Offset(x1, y1)

	var out [3]uint8
	for c := 0; c < 3; c++ {
		top := float64(src.Pix[p00+c])*(1-fx) + float64(src.Pix[p10+c])*fx
		bottom := float64(src.Pix[p01+c])*(1-fx) + float64(src.Pix[p11+c])*fx
		out[c] = imaging.ClampByte(top*(1-fy) + bottom*fy)
	}
	return out[0], out[1], out[2]
}

// Report collects what went wrong, if anything, during a correction.
type Report struct {
	Solve SolveReport `json:"solve"`
	Warp  WarpStats   `json:"warp"`
}

// Correct maps the quadrilateral corners of src onto a w×h rectangle. The
// transform is solved from the destination rectangle to the corners so
// that every destination pixel is sampled from the source.
func Correct(src *raster.Buffer, corners geom.Quad, w, h int, s Solver, wp Warper) (*raster.Buffer, Report, error) {
	if err := src.Validate(); err != nil {
		return nil, Report{}, err
	}
	if s == nil {
		s = GaussSolver{}
	}
	if wp == nil {
		wp = ReferenceWarper{}
	}

	m, solveReport := s.Solve(geom.Rect(float64(w), float64(h)), corners)
	out, stats, err := wp.Warp(src, m, w, h)
	if err != nil {
		return nil, Report{}, err
	}
	return out, Report{Solve: solveReport, Warp: stats}, nil
}

// Package accel implements the pipeline's heavy stages on top of bild and
// gonum. Each type satisfies the same capability interface as its plain
// counterpart in imaging or perspective and is meant to be chosen once, when
// a scanner is built.
//
// Results match the plain implementations to within one intensity level:
// bild truncates convolution sums where the plain convolver rounds.
package accel

import (
	"math"
	"sync"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/parallel"
	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/docscan-mcp/internal/geom"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
	"github.com/ironsheep/docscan-mcp/internal/perspective"
	"github.com/ironsheep/docscan-mcp/internal/raster"
)

// Convolver runs separable passes through bild's parallel convolution with
// edge-extend padding.
type Convolver struct{}

// Convolve implements imaging.Convolver.
func (Convolver) Convolve(src *raster.Buffer, k imaging.Kernel, axis imaging.Axis) *raster.Buffer {
	var kernel *convolution.Kernel
	if axis == imaging.Horizontal {
		kernel = convolution.NewKernel(len(k), 1)
	} else {
		kernel = convolution.NewKernel(1, len(k))
	}
	copy(kernel.Matrix, k)

	out := convolution.Convolve(src.RawRGBA(), kernel, &convolution.Options{Wrap: false, KeepAlpha: false})
	return raster.FromRGBA(out)
}

// Solver solves the homography system with gonum's LU solver. Singular or
// ill-conditioned systems are handed to the elimination solver so the
// skipped-pivot policy still applies.
type Solver struct{}

// Solve implements perspective.Solver.
func (Solver) Solve(from, to geom.Quad) (perspective.Matrix, perspective.SolveReport) {
	a, b := perspective.System(from, to)

	data := make([]float64, 0, 64)
	for _, row := range a {
		data = append(data, row[:]...)
	}
	A := mat.NewDense(8, 8, data)
	rhs := mat.NewVecDense(8, b[:])

	var x mat.VecDense
	if err := x.SolveVec(A, rhs); err == nil {
		var h [8]float64
		finite := true
		for i := range h {
			h[i] = x.AtVec(i)
			if math.IsNaN(h[i]) || math.IsInf(h[i], 0) {
				finite = false
			}
		}
		if finite {
			return perspective.FromCoefficients(h), perspective.SolveReport{}
		}
	}

	h, report := perspective.Eliminate(a, b)
	report.Fallback = true
	return perspective.FromCoefficients(h), report
}

// Warper renders destination rows in parallel with bild's line dispatcher.
type Warper struct{}

// Warp implements perspective.Warper.
func (Warper) Warp(src *raster.Buffer, m perspective.Matrix, w, h int) (*raster.Buffer, perspective.WarpStats, error) {
	if err := src.Validate(); err != nil {
		return nil, perspective.WarpStats{}, err
	}
	dst, err := raster.New(w, h)
	if err != nil {
		return nil, perspective.WarpStats{}, err
	}

	var (
		mu    sync.Mutex
		stats perspective.WarpStats
	)
	parallel.Line(h, func(start, end int) {
		var local perspective.WarpStats
		for y := start; y < end; y++ {
			local.Add(perspective.WarpRow(src, dst, m, y))
		}
		mu.Lock()
		stats.Add(local)
		mu.Unlock()
	})
	return dst, stats, nil
}

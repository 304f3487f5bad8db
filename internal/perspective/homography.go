package perspective

import (
	"fmt"
	"math"

	"github.com/ironsheep/docscan-mcp/internal/geom"
)

// PivotEpsilon is the magnitude below which a pivot is treated as zero.
const PivotEpsilon = 1e-10

// Matrix is a row-major 3×3 projective transform with Matrix[8] fixed at 1.
type Matrix [9]float64

// Identity is the transform that maps every point to itself.
var Identity = Matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}

// Apply maps (x, y) through m. ok is false when the projective denominator
// is within PivotEpsilon of zero, in which case (0, 0) is returned.
func (m Matrix) Apply(x, y float64) (px, py float64, ok bool) {
	denom := m[6]*x + m[7]*y + 1
	if math.Abs(denom) < PivotEpsilon {
		return 0, 0, false
	}
	return (m[0]*x + m[1]*y + m[2]) / denom, (m[3]*x + m[4]*y + m[5]) / denom, true
}

// SolveReport lists the columns Gaussian elimination skipped because no
// usable pivot was left. A non-empty report means the system was singular
// and the matrix is a best effort.
type SolveReport struct {
	SkippedColumns []int `json:"skipped_columns,omitempty"`
	Fallback       bool  `json:"fallback,omitempty"`
}

// Singular reports whether any column was skipped.
func (r SolveReport) Singular() bool {
	return len(r.SkippedColumns) > 0
}

func (r SolveReport) String() string {
	if !r.Singular() {
		return "ok"
	}
	return fmt.Sprintf("skipped pivot columns %v", r.SkippedColumns)
}

// Solver computes the projective transform taking each from[i] to to[i].
type Solver interface {
	Solve(from, to geom.Quad) (Matrix, SolveReport)
}

// System builds the 8×8 linear system for the correspondences from[i] →
// to[i]. Each pair contributes
//
//	[sx, sy, 1, 0, 0, 0, -dx·sx, -dx·sy] · h = dx
//	[0, 0, 0, sx, sy, 1, -dy·sx, -dy·sy] · h = dy
func System(from, to geom.Quad) (a [8][8]float64, b [8]float64) {
	for i := 0; i < 4; i++ {
		s, d := from[i], to[i]
		a[2*i] = [8]float64{s.X, s.Y, 1, 0, 0, 0, -d.X * s.X, -d.X * s.Y}
		a[2*i+1] = [8]float64{0, 0, 0, s.X, s.Y, 1, -d.Y * s.X, -d.Y * s.Y}
		b[2*i] = d.X
		b[2*i+1] = d.Y
	}
	return a, b
}

// FromCoefficients appends the fixed ninth coefficient.
func FromCoefficients(h [8]float64) Matrix {
	var m Matrix
	copy(m[:8], h[:])
	m[8] = 1
	return m
}

// GaussSolver solves the system by Gaussian elimination with partial
// pivoting.
type GaussSolver struct{}

// Solve implements Solver.
func (GaussSolver) Solve(from, to geom.Quad) (Matrix, SolveReport) {
	a, b := System(from, to)
	h, report := Eliminate(a, b)
	return FromCoefficients(h), report
}

// Eliminate solves a·x = b in place on copies of its arguments.
//
// For each column the row with the largest magnitude at or below the
// diagonal is swapped up. A pivot below PivotEpsilon skips that column
// and is recorded in the report. Back-substitution only divides by
// diagonal entries above PivotEpsilon; other unknowns stay zero.
func Eliminate(a [8][8]float64, b [8]float64) ([8]float64, SolveReport) {
	const n = 8
	var report SolveReport

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		if math.Abs(a[col][col]) < PivotEpsilon {
			report.SkippedColumns = append(report.SkippedColumns, col)
			continue
		}

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}

	var x [8]float64
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= a[i][j] * x[j]
		}
		if math.Abs(a[i][i]) > PivotEpsilon {
			x[i] = sum / a[i][i]
		}
	}
	return x, report
}

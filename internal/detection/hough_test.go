package detection

import (
	"math"
	"testing"

	"github.com/ironsheep/docscan-mcp/internal/imaging"
)

// diagonalPoints returns the edge set of the line y = x across an n×n canvas.
func diagonalPoints(n int) []imaging.EdgePoint {
	points := make([]imaging.EdgePoint, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, imaging.EdgePoint{X: i, Y: i, Kind: imaging.Strong})
	}
	return points
}

func TestHoughLines_Diagonal(t *testing.T) {
	lines := HoughLines(diagonalPoints(400), 400, 400, 10)
	if len(lines) < 2 {
		t.Fatalf("got %d lines, want at least 2", len(lines))
	}

	top := lines[0]
	// y = x has its normal at 135° and passes through the origin.
	if math.Abs(top.Degrees()-135) > 1 {
		t.Errorf("theta: got %.2f°, want 135° ±1°", top.Degrees())
	}
	if math.Abs(top.Rho) > 1 {
		t.Errorf("rho: got %.3f, want 0 ±1", top.Rho)
	}
	if top.Votes != 400 {
		t.Errorf("votes: got %d, want 400", top.Votes)
	}
	if lines[1].Votes*2 >= top.Votes {
		t.Errorf("runner-up has %d votes against %d, want clear dominance", lines[1].Votes, top.Votes)
	}
}

func TestHoughLines_ThresholdIsStrict(t *testing.T) {
	points := diagonalPoints(400)

	if got := HoughLines(points, 400, 400, 400); len(got) != 0 {
		t.Errorf("threshold 400: got %d lines, want 0", len(got))
	}
	if got := HoughLines(points, 400, 400, 399); len(got) != 1 {
		t.Errorf("threshold 399: got %d lines, want 1", len(got))
	}
}

func TestHoughLines_SortedByVotes(t *testing.T) {
	var points []imaging.EdgePoint
	// Long vertical line at x=20, short horizontal line at y=70.
	for y := 0; y < 90; y++ {
		points = append(points, imaging.EdgePoint{X: 20, Y: y})
	}
	for x := 40; x < 80; x++ {
		points = append(points, imaging.EdgePoint{X: x, Y: 70})
	}

	lines := HoughLines(points, 100, 100, 30)
	for i := 1; i < len(lines); i++ {
		if lines[i].Votes > lines[i-1].Votes {
			t.Fatalf("lines[%d] has %d votes after %d", i, lines[i].Votes, lines[i-1].Votes)
		}
	}
	if len(lines) == 0 || lines[0].Degrees() != 0 || math.Abs(lines[0].Rho-20) > 1 {
		t.Errorf("strongest line: got %+v, want x=20 at 0°", lines)
	}
}

func TestHoughLines_Empty(t *testing.T) {
	if got := HoughLines(nil, 100, 100, 0); got != nil {
		t.Errorf("no points: got %v, want nil", got)
	}
	if got := HoughLines(diagonalPoints(1), 1, 1, 0); len(got) == 0 {
		t.Error("1x1 canvas with one point should produce lines at threshold 0")
	}
}

package perspective

import (
	"image/color"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ironsheep/docscan-mcp/internal/geom"
	"github.com/ironsheep/docscan-mcp/internal/raster"
)

// gradientBuffer returns an opaque buffer whose colour varies with x and y.
func gradientBuffer(t *testing.T, w, h int) *raster.Buffer {
	t.Helper()
	b, err := raster.New(w, h)
	if err != nil {
		t.Fatalf("raster.New failed: %v", err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b.SetNRGBA(x, y, color.NRGBA{uint8(x * 37), uint8(y * 53), uint8((x + y) * 11), 255})
		}
	}
	return b
}

func TestGaussSolver_MapsCorrespondences(t *testing.T) {
	from := geom.Quad{{0, 0}, {800, 0}, {800, 1000}, {0, 1000}}
	to := geom.Quad{{112, 40}, {690, 95}, {655, 870}, {80, 790}}

	m, report := GaussSolver{}.Solve(from, to)
	if report.Singular() {
		t.Fatalf("unexpected singular report: %v", report)
	}
	if m[8] != 1 {
		t.Errorf("m[8]: got %v, want 1", m[8])
	}

	for i := range from {
		x, y, ok := m.Apply(from[i].X, from[i].Y)
		if !ok {
			t.Fatalf("corner %d: degenerate denominator", i)
		}
		got := geom.Point{X: x, Y: y}
		if diff := cmp.Diff(to[i], got, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
			t.Errorf("corner %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestGaussSolver_IdentityAndSingular(t *testing.T) {
	r := geom.Rect(10, 10)
	m, _ := GaussSolver{}.Solve(r, r)
	if diff := cmp.Diff(Identity, m, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("identity mismatch (-want +got):\n%s", diff)
	}

	collapsed := geom.Quad{{5, 5}, {5, 5}, {5, 5}, {5, 5}}
	_, report := GaussSolver{}.Solve(collapsed, r)
	if !report.Singular() {
		t.Error("collapsed source quad should be reported singular")
	}
}

func TestCorrect_IdentityReproducesInput(t *testing.T) {
	src := gradientBuffer(t, 7, 5)

	out, report, err := Correct(src, geom.Rect(7, 5), 7, 5, GaussSolver{}, ReferenceWarper{})
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}
	if report.Warp.OutOfBounds != 0 {
		t.Errorf("out of bounds: got %d, want 0", report.Warp.OutOfBounds)
	}
	if diff := cmp.Diff(src.Pix, out.Pix); diff != "" {
		t.Errorf("pixels mismatch (-want +got):\n%s", diff)
	}
}

func TestCorrect_Dimensions(t *testing.T) {
	src := gradientBuffer(t, 40, 30)
	corners := geom.Quad{{3, 2}, {37, 5}, {35, 28}, {1, 26}}

	for _, size := range [][2]int{{1, 1}, {1, 9}, {17, 3}, {DefaultWidth, DefaultHeight}} {
		out, _, err := Correct(src, corners, size[0], size[1], nil, nil)
		if err != nil {
			t.Fatalf("%v: Correct failed: %v", size, err)
		}
		if out.Width != size[0] || out.Height != size[1] {
			t.Errorf("%v: got %dx%d", size, out.Width, out.Height)
		}
		if len(out.Pix) != size[0]*size[1]*4 {
			t.Errorf("%v: pix length %d", size, len(out.Pix))
		}
	}
}

func TestCorrect_DegenerateCornersStillRender(t *testing.T) {
	src := gradientBuffer(t, 1, 1)
	collapsed := geom.Quad{{0, 0}, {0, 0}, {0, 0}, {0, 0}}

	out, report, err := Correct(src, collapsed, 4, 4, nil, nil)
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}
	if !report.Solve.Singular() {
		t.Error("expected a singular solve report")
	}
	if out.Width != 4 || out.Height != 4 {
		t.Errorf("size: got %dx%d", out.Width, out.Height)
	}
}

func TestCorrect_InvalidSource(t *testing.T) {
	if _, _, err := Correct(nil, geom.Rect(1, 1), 10, 10, nil, nil); err == nil {
		t.Error("nil source should be rejected")
	}
}

func TestWarp_OutOfBoundsAndDegenerate(t *testing.T) {
	src := gradientBuffer(t, 3, 3)
	src.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})

	// denom = 1 - x: x=0 is normal, x=1 is degenerate, x=2 lands at -2.
	m := Matrix{1, 0, 0, 0, 1, 0, -1, 0, 1}
	out, stats, err := ReferenceWarper{}.Warp(src, m, 3, 1)
	if err != nil {
		t.Fatalf("Warp failed: %v", err)
	}

	want := WarpStats{Degenerate: 1, OutOfBounds: 1}
	if stats != want {
		t.Errorf("stats: got %+v, want %+v", stats, want)
	}
	red := color.NRGBA{255, 0, 0, 255}
	if got := out.NRGBAAt(0, 0); got != red {
		t.Errorf("x=0: got %v, want %v", got, red)
	}
	if got := out.NRGBAAt(1, 0); got != red {
		t.Errorf("degenerate pixel: got %v, want source (0,0) %v", got, red)
	}
	if got := out.NRGBAAt(2, 0); got != (color.NRGBA{}) {
		t.Errorf("out of bounds pixel: got %v, want transparent", got)
	}
}

func TestWarp_NonFiniteCoordinates(t *testing.T) {
	src := gradientBuffer(t, 4, 4)
	tests := []struct {
		name string
		m    Matrix
	}{
		{"nan x", Matrix{0, 0, math.NaN(), 0, 1, 0, 0, 0, 1}},
		{"nan y", Matrix{1, 0, 0, 0, 0, math.NaN(), 0, 0, 1}},
		{"inf x", Matrix{0, 0, math.Inf(1), 0, 1, 0, 0, 0, 1}},
		{"-inf y", Matrix{1, 0, 0, 0, 0, math.Inf(-1), 0, 0, 1}},
		{"nan denominator", Matrix{1, 0, 0, 0, 1, 0, math.NaN(), 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, stats, err := ReferenceWarper{}.Warp(src, tt.m, 3, 2)
			if err != nil {
				t.Fatalf("Warp failed: %v", err)
			}
			if stats.OutOfBounds != 6 {
				t.Errorf("OutOfBounds: got %d, want 6", stats.OutOfBounds)
			}
			for i, v := range out.Pix {
				if v != 0 {
					t.Fatalf("pixel byte %d: got %d, want transparent output", i, v)
				}
			}
		})
	}
}

func TestCorrect_HugeCornersReportOutOfBounds(t *testing.T) {
	src := gradientBuffer(t, 8, 8)
	corners := geom.Quad{{-1e308, -1e308}, {1e308, -1e308}, {1e308, 1e308}, {-1e308, 1e308}}

	_, report, err := Correct(src, corners, 4, 4, GaussSolver{}, ReferenceWarper{})
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}
	if report.Warp.OutOfBounds+report.Warp.Degenerate == 0 {
		t.Errorf("report: got %+v, want unsampled pixels counted", report.Warp)
	}
}

func TestBilinear(t *testing.T) {
	src, _ := raster.FromPix(2, 1, []uint8{0, 0, 0, 255, 200, 100, 50, 255})

	r, g, b := Bilinear(src, 0.5, 0)
	if r != 100 || g != 50 || b != 25 {
		t.Errorf("midpoint: got %d,%d,%d, want 100,50,25", r, g, b)
	}
	// Past the last column the read is clamped.
	r, _, _ = Bilinear(src, 1.7, 0)
	if r != 200 {
		t.Errorf("clamped read: got %d, want 200", r)
	}
}

func TestSuggestSizeAndMeasure(t *testing.T) {
	q := geom.Quad{{0, 0}, {300, 0}, {310, 400}, {0, 390}}

	w, h := SuggestSize(q)
	if w != 310 || h != 400 {
		t.Errorf("SuggestSize: got %dx%d, want 310x400", w, h)
	}

	m := Measure(q)
	if m.Top != 300 || m.Left != 390 {
		t.Errorf("Measure sides: got %+v", m)
	}
	if math.Abs(m.AspectRatio-0.78) > 0.01 {
		t.Errorf("AspectRatio: got %v, want ~0.78", m.AspectRatio)
	}

	w, h = SuggestSize(geom.Quad{})
	if w != 1 || h != 1 {
		t.Errorf("collapsed quad: got %dx%d, want 1x1", w, h)
	}
}

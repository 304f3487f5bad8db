package perspective

import (
	"math"

	"github.com/ironsheep/docscan-mcp/internal/geom"
)

// Measurement describes the sides and shape of a corner quadrilateral.
type Measurement struct {
	Top         float64 `json:"top"`
	Right       float64 `json:"right"`
	Bottom      float64 `json:"bottom"`
	Left        float64 `json:"left"`
	Area        float64 `json:"area"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// Measure returns side lengths, area and width/height ratio of q, rounded
// to two decimals.
func Measure(q geom.Quad) Measurement {
	m := Measurement{
		Top:    geom.Distance(q[geom.TopLeft], q[geom.TopRight]),
		Right:  geom.Distance(q[geom.TopRight], q[geom.BottomRight]),
		Bottom: geom.Distance(q[geom.BottomRight], q[geom.BottomLeft]),
		Left:   geom.Distance(q[geom.BottomLeft], q[geom.TopLeft]),
		Area:   q.Area(),
	}
	if h := math.Max(m.Left, m.Right); h > 0 {
		m.AspectRatio = math.Max(m.Top, m.Bottom) / h
	}

	m.Top = round2(m.Top)
	m.Right = round2(m.Right)
	m.Bottom = round2(m.Bottom)
	m.Left = round2(m.Left)
	m.Area = round2(m.Area)
	m.AspectRatio = round2(m.AspectRatio)
	return m
}

// SuggestSize returns an output size that keeps the document's proportions:
// the longer of each pair of opposite sides, rounded, at least 1.
func SuggestSize(q geom.Quad) (w, h int) {
	width := math.Max(
		geom.Distance(q[geom.TopLeft], q[geom.TopRight]),
		geom.Distance(q[geom.BottomRight], q[geom.BottomLeft]),
	)
	height := math.Max(
		geom.Distance(q[geom.TopLeft], q[geom.BottomLeft]),
		geom.Distance(q[geom.TopRight], q[geom.BottomRight]),
	)
	return max(1, int(math.Round(width))), max(1, int(math.Round(height)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
